package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/adaxtools/adaxctl/config"
	"github.com/adaxtools/adaxctl/internal/provision"
	"github.com/adaxtools/adaxctl/internal/transport"
	"github.com/adaxtools/adaxctl/internal/transport/goble"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find nearby Adax heaters",
	Long: `Scan for nearby Adax heaters over Bluetooth and show their pairing state.

Heaters in pairing mode show as "available"; heaters already claimed by an
account or another controller cannot be paired until factory-reset.`,
	RunE: runScan,
}

var (
	scanWindow time.Duration
	scanFormat string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanWindow, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
}

// heaterEntry is one discovered heater, keyed by address in first-seen order.
type heaterEntry struct {
	Address    string `json:"address"`
	HardwareID string `json:"hardware_id,omitempty"`
	RSSI       int    `json:"rssi"`
	State      string `json:"state"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", scanFormat)
	}

	cfg, err := config.LoadDefault()
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling scan...")
		cancel()
	}()

	progress := NewProgressPrinter("Scanning for heaters", "scanning", scanWindow)
	progress.Start()

	advs, err := goble.New(logger).Discover(ctx, scanWindow)
	progress.Stop()
	if err != nil && ctx.Err() == nil {
		return err
	}

	heaters := orderedmap.New[string, heaterEntry]()
	for _, adv := range advs {
		if !advertisesHeaterService(adv.Services()) {
			continue
		}
		entry := heaterEntry{
			Address: adv.Addr(),
			RSSI:    adv.RSSI(),
			State:   "unknown",
		}
		if record, ok := provision.ParseManufacturerRecord(adv.ManufacturerData()); ok {
			entry.HardwareID = fmt.Sprintf("%012X", record.MACID)
			entry.State = heaterState(record)
		}
		heaters.Set(adv.Addr(), entry)
	}

	switch scanFormat {
	case "json":
		return displayHeatersJSON(heaters)
	default:
		return displayHeatersTable(heaters)
	}
}

func advertisesHeaterService(services []string) bool {
	for _, svc := range services {
		if transport.UUIDEqual(svc, provision.ServiceUUID) {
			return true
		}
	}
	return false
}

func heaterState(record provision.ManufacturerRecord) string {
	if eligible, reason := record.Eligible(); !eligible {
		switch reason {
		case provision.ReasonAlreadyRegistered:
			return "registered"
		case provision.ReasonAlreadyManaged:
			return "managed"
		default:
			return "unsupported"
		}
	}
	return "available"
}

func displayHeatersTable(heaters *orderedmap.OrderedMap[string, heaterEntry]) error {
	if heaters.Len() == 0 {
		fmt.Println("No heaters discovered")
		return nil
	}

	var base io.Writer = os.Stdout
	w := tabwriter.NewWriter(base, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tHARDWARE ID\tRSSI\tSTATE")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	for pair := heaters.Oldest(); pair != nil; pair = pair.Next() {
		e := pair.Value
		hwid := e.HardwareID
		if hwid == "" {
			hwid = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\n", e.Address, hwid, e.RSSI, e.State)
	}
	return w.Flush()
}

func displayHeatersJSON(heaters *orderedmap.OrderedMap[string, heaterEntry]) error {
	entries := make([]heaterEntry, 0, heaters.Len())
	for pair := heaters.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, pair.Value)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}
