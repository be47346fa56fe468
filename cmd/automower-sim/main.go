// Automower-sim is a websocket BLE bridge with a simulated mower behind it.
//
// It answers the same request frames a real controller does, so the
// automower client, dashboard and exporter can be exercised without a mower
// or a BLE adapter. Request command ids that are not built in are read from
// the automower config file.
//
// Usage:
//
//	automower-sim [flags]
//
// See 'automower-sim --help' for available options.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enicky/automower-ble/internal/config"
	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/simulator"
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

// Flags
var (
	configPath string
	host       string
	port       int
	path       string
	mtu        int
	certPath   string
	keyPath    string
	instance   string
	modelName  string
	battery    uint8
	pin        uint16
	step       time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "automower-sim",
	Short: "Simulated mower behind a websocket BLE bridge",
	Long: `Serve a websocket BLE bridge with a simulated mower behind it.

Responses are split into --mtu sized binary messages the way BLE
notifications arrive. Override-mow and park requests change the simulated
state; the battery drains while mowing and charges while docked.

Request command ids missing from the built-in table are read from the
automower config file (commands.<kind>), so client and simulator agree.`,
	Example: `  # Serve on :8080 and advertise over mDNS
  automower-sim --advertise garage-sim

  # Gardena model, TLS, debug logging
  automower-sim --model minimo --cert cert.pem --key key.pem --log-level debug

  # Then, from another terminal
  automower status -a 60:2C:11:22:33:44 --bridge ws://localhost:8080/ble`,
	Version:       version.Get().Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSimulator,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "automower config file with extra command ids")
	f.StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	f.IntVar(&port, "port", 8080, "Listen port")
	f.StringVar(&path, "path", "/ble", "Websocket endpoint path")
	f.IntVar(&mtu, "mtu", simulator.DefaultMTU, "Bytes per websocket message")
	f.StringVar(&certPath, "cert", "", "TLS certificate file (serves wss when set with --key)")
	f.StringVar(&keyPath, "key", "", "TLS private key file")
	f.StringVar(&instance, "advertise", "", "mDNS instance name (empty = no advertisement)")
	f.StringVar(&modelName, "model", "305", "Simulated model: "+strings.Join(modelNames(), ", "))
	f.Uint8Var(&battery, "battery", 100, "Initial battery level")
	f.Uint16Var(&pin, "pin", 0, "Operator PIN required before mode changes (0 = logged in from the start)")
	f.DurationVar(&step, "step", 5*time.Second, "Simulation step interval (0 = frozen)")
	f.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func modelNames() []string {
	var names []string
	for _, m := range protocol.Models() {
		names = append(names, strings.ToLower(m.Name))
	}
	return names
}

// findModel matches a model name case-insensitively
func findModel(name string) (protocol.MowerModel, error) {
	for _, m := range protocol.Models() {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return protocol.MowerModel{}, fmt.Errorf("unknown model %q (expected one of %s)", name, strings.Join(modelNames(), ", "))
}

func runSimulator(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}

	model, err := findModel(modelName)
	if err != nil {
		return err
	}

	var registry *config.Registry
	if configPath != "" {
		registry, err = config.LoadFile(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return err
	}
	commands, err := registry.CommandOverrides()
	if err != nil {
		return err
	}

	m, err := simulator.NewMower(model.Code, commands)
	if err != nil {
		return err
	}
	m.SetBattery(battery)
	if pin != 0 {
		m.SetPin(pin)
	}

	logging.Info("Simulating mower",
		zap.String("model", model.String()),
		zap.Int("extra_commands", len(commands)),
	)

	srv := simulator.NewServer(simulator.Config{
		Host:         host,
		Port:         port,
		Path:         path,
		MTU:          mtu,
		CertPath:     certPath,
		KeyPath:      keyPath,
		Instance:     instance,
		StepInterval: step,
	}, m)
	return srv.Start(cmd.Context())
}
