package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/enicky/automower-ble/internal/discovery"
	"github.com/enicky/automower-ble/internal/transport"
	"github.com/enicky/automower-ble/internal/ui"
)

var (
	scanTimeout int
	scanSerial  bool
)

// scanCmd discovers BLE bridges
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find BLE bridges on the network",
	Long: `Browse for BLE bridges advertising ` + discovery.ServiceType + ` over mDNS.

With --serial, list the serial ports a UART bridge could be attached to
instead.`,
	Example: `  # Scan for 5 seconds (default)
  automower scan

  # Longer scan for slow networks
  automower scan --scan-timeout 15

  # List serial ports
  automower scan --serial`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "scan-timeout", 0, "Scan timeout in seconds (default from config)")
	scanCmd.Flags().BoolVar(&scanSerial, "serial", false, "List serial ports instead of browsing mDNS")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	if scanSerial {
		ports, err := transport.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			p.PrintWarning("No serial ports found")
			return nil
		}
		fields := make([]ui.Field, 0, len(ports))
		for i, port := range ports {
			fields = append(fields, ui.F(strconv.Itoa(i+1), port))
		}
		p.PrintSuccess(fmt.Sprintf("%d serial port(s)", len(ports)), fields...)
		return nil
	}

	timeout := time.Duration(registry.Preferences.DiscoverTimeout) * time.Second
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	p.Println(ui.NoteStyle.Render(fmt.Sprintf("Browsing for %s (timeout: %s)...", discovery.ServiceType, timeout)))

	bridges, err := discovery.ScanForBridges(cmd.Context(), timeout)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(bridges) == 0 {
		p.PrintError("No bridges found", nil,
			"Ensure the bridge is powered on and on the same network",
			"Check that multicast DNS is not blocked by the router",
			"Try increasing --scan-timeout",
			"Use --bridge ws://host:port/path to skip discovery",
		)
		return nil
	}

	for _, b := range bridges {
		details := []ui.Field{
			ui.F("URL", b.URL()),
			ui.F("Host", b.Hostname),
		}
		if fw := b.GetMetadata("version"); fw != "" {
			details = append(details, ui.F("Version", fw))
		}
		p.PrintSuccess(b.Instance, details...)
	}
	p.Println(ui.NoteStyle.Render("Use 'automower config set bridge_url <url>' to remember a bridge"))
	return nil
}
