package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/adaxtools/adaxctl/config"
	"github.com/adaxtools/adaxctl/heater"
)

// setTempCmd represents the set-temp command
var setTempCmd = &cobra.Command{
	Use:   "set-temp <degrees>",
	Short: "Set a heater's target temperature",
	Long: `Set a provisioned heater's target temperature in degrees Celsius.

Requires the heater's IP address and the access token printed when the
heater was paired. Adax heaters accept targets between 5 and 35 degrees.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetTemp,
}

func runSetTemp(cmd *cobra.Command, args []string) error {
	degrees, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid temperature %q: %w", args[0], err)
	}
	if degrees < 5 || degrees > 35 {
		return fmt.Errorf("temperature %.1f out of range: must be between 5 and 35 degrees", degrees)
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

	client := heater.NewClient(heaterIP, heaterToken, cfg.HTTPTimeout, logger)
	if err := client.SetTargetTemperature(context.Background(), degrees); err != nil {
		return err
	}

	color.Green("Target temperature set to %.2f°C", degrees)
	return nil
}
