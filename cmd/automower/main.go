// Automower talks to Husqvarna and Gardena robotic mowers over BLE.
//
// The mower is reached through a BLE bridge, either a websocket bridge on
// the local network (found with mDNS when no URL is configured) or a UART
// bridge on a serial port. Commands query status, decode captured frames,
// watch a live dashboard and export Prometheus metrics.
//
// Usage:
//
//	automower [command] [flags]
//
// See 'automower --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/enicky/automower-ble/internal/config"
	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath    string
	mowerAddress  string
	bridgeURL     string
	transportKind string
	serialPort    string
	baudRate      int
	timeout       int
	retries       int
	channelFlag   string
	brandFlag     string
	outputFormat  string
)

// registry is loaded before every command runs
var registry *config.Registry

var rootCmd = &cobra.Command{
	Use:   "automower",
	Short: "Husqvarna and Gardena robotic mower BLE client",
	Long: `A client for the BLE protocol spoken by Husqvarna and Gardena robotic
mowers.

The mower is reached through a BLE bridge: a websocket bridge on the local
network (discovered over mDNS unless --bridge is given) or a UART bridge on a
serial port (--transport serial --serial-port /dev/ttyUSB0).

Known mowers, preferences and request command ids are kept in the config
file; see 'automower config show'.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless AUTOMOWER_LOG_LEVEL is set
		if err := logging.InitializeFromEnv(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (logging disabled)\n", err)
		}

		var err error
		registry, err = loadRegistry()
		return err
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/automower/config.yaml)")
	pf.StringVarP(&mowerAddress, "address", "a", "", "Mower BLE address or nickname")
	pf.StringVar(&bridgeURL, "bridge", "", "Websocket URL of the BLE bridge (skips discovery)")
	pf.StringVar(&transportKind, "transport", "", "Transport: websocket or serial")
	pf.StringVar(&serialPort, "serial-port", "", "Serial port of a UART bridge")
	pf.IntVar(&baudRate, "baud", 0, "Serial baud rate")
	pf.IntVar(&timeout, "timeout", 0, "Seconds to wait for each response")
	pf.IntVar(&retries, "retries", -1, "Retries for transient failures")
	pf.StringVar(&channelFlag, "channel", "", "Session channel id, e.g. 0x47603bb6")
	pf.StringVar(&brandFlag, "brand", "", "State numbering: husqvarna or gardena")
	pf.StringVar(&outputFormat, "format", "box", "Output format (box, plain, json)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "automower %s\n", version.Full())
	},
}

func loadRegistry() (*config.Registry, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadRegistry()
}

func saveRegistry() error {
	if configPath != "" {
		return registry.SaveFile(configPath)
	}
	return registry.Save()
}
