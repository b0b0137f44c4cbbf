package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/adaxtools/adaxctl/config"
	"github.com/adaxtools/adaxctl/internal/provision"
	"github.com/adaxtools/adaxctl/internal/transport/goble"
)

// provisionCmd represents the provision command
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Pair a heater onto your WiFi network",
	Long: `Pair a nearby Adax heater onto your WiFi network over Bluetooth.

The heater must be in pairing mode: press and hold its OK button until the
blue LED starts flashing. The command scans for the heater, transfers the
WiFi credentials, and prints the heater's IP address and access token once
the heater confirms it joined the network.

Keep the access token: it is the credential for all later status and
set-temp commands, and it is only shown here.`,
	RunE: runProvision,
}

var (
	provisionSSID        string
	provisionPSK         string
	provisionScanWindow  time.Duration
	provisionScanRetries int
)

func init() {
	provisionCmd.Flags().StringVar(&provisionSSID, "ssid", "", "WiFi network name (required)")
	provisionCmd.Flags().StringVar(&provisionPSK, "psk", "", "WiFi password (prompted when omitted)")
	provisionCmd.Flags().DurationVar(&provisionScanWindow, "scan-window", 0, "Duration of one discovery pass (default from config, 60s)")
	provisionCmd.Flags().IntVar(&provisionScanRetries, "retries", -1, "Extra discovery passes when nothing is found (default from config, 1)")
	_ = provisionCmd.MarkFlagRequired("ssid")
}

func runProvision(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	psk := provisionPSK
	if psk == "" {
		psk, err = promptPSK(provisionSSID)
		if err != nil {
			return err
		}
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts := cfg.SessionOptions()
	if provisionScanWindow > 0 {
		opts.ScanWindow = provisionScanWindow
	}
	if provisionScanRetries >= 0 {
		opts.ScanRetries = provisionScanRetries
	}

	session, err := provision.NewSession(goble.New(logger), provision.Credentials{
		SSID: provisionSSID,
		PSK:  psk,
	}, opts, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling...")
		cancel()
	}()

	color.Yellow("Press and hold the heater's OK button until the blue LED flashes.")

	// The scan budget dominates the pairing time, so the countdown runs over
	// the full retry budget plus the result wait.
	budget := time.Duration(opts.ScanRetries+1)*opts.ScanWindow +
		time.Duration(opts.ResultTicks)*opts.TickInterval
	progress := NewProgressPrinter("Pairing heater", "scanning", budget)
	progress.Start()

	result, err := session.Run(ctx)
	progress.Stop()
	if err != nil {
		return err
	}

	color.Green("Heater paired successfully.")
	fmt.Printf("  IP address:   %s\n", result.IP)
	fmt.Printf("  Hardware id:  %012X\n", result.MACID)
	fmt.Printf("  Access token: %s\n", result.Token)
	fmt.Println()
	fmt.Printf("Save the token - you will need it for every control command:\n")
	fmt.Printf("  adaxctl status --ip %s --token %s\n", result.IP, result.Token)
	return nil
}

// promptPSK asks for the WiFi password, without echo when stdin is a
// terminal.
func promptPSK(ssid string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Printf("WiFi password for %q: ", ssid)
		psk, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(psk), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
