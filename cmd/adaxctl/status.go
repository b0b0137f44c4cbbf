package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adaxtools/adaxctl/config"
	"github.com/adaxtools/adaxctl/heater"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a heater's current and target temperature",
	Long: `Query a provisioned heater over its local HTTP API.

Requires the heater's IP address and the access token printed when the
heater was paired.`,
	RunE: runStatus,
}

var (
	heaterIP    string
	heaterToken string
)

func init() {
	for _, cmd := range []*cobra.Command{statusCmd, setTempCmd} {
		cmd.Flags().StringVar(&heaterIP, "ip", "", "Heater IP address (required)")
		cmd.Flags().StringVar(&heaterToken, "token", "", "Access token from pairing (required)")
		_ = cmd.MarkFlagRequired("ip")
		_ = cmd.MarkFlagRequired("token")
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	client := heater.NewClient(heaterIP, heaterToken, cfg.HTTPTimeout, logger)
	status, err := client.Status(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Current temperature: %s\n", color.CyanString("%.2f°C", status.CurrentTemperature))
	fmt.Printf("Target temperature:  %s\n", color.CyanString("%.2f°C", status.TargetTemperature))
	return nil
}
