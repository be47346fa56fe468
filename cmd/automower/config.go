package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/enicky/automower-ble/internal/config"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/ui"
)

// configCmd groups the config file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the config file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the config file and the request command ids in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := currentConfigPath()
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(registry)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		p.Println(ui.NoteStyle.Render("# " + path))
		p.Print(string(data))
		p.Newline()

		overrides, err := registry.CommandOverrides()
		if err != nil {
			return err
		}
		fields := make([]ui.Field, 0, len(protocol.ResponseKinds()))
		for _, kind := range protocol.ResponseKinds() {
			value := "unknown"
			if cmdID, ok := overrides[kind]; ok {
				value = cmdID.String() + " (config)"
			} else if cmdID, ok := protocol.KnownCommand(kind); ok {
				value = cmdID.String()
			}
			fields = append(fields, ui.F(kind.String(), value))
		}
		p.Println("Request command ids:")
		p.PrintFields(fields...)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Change one setting and save the config file.

Keys: transport, bridge_url, serial_port, baud_rate, request_timeout, retries,
discover_timeout, poll_interval, and commands.<kind> for request command ids
given as six hex digits.`,
	Example: `  automower config set bridge_url ws://192.168.1.20:8080/ble
  automower config set commands.battery-level 0a1014`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := registry.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := saveRegistry(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Saved", ui.F(args[0], args[1]))
		return nil
	},
}

var configNameCmd = &cobra.Command{
	Use:   "name <address> <nickname>",
	Short: "Give a mower a nickname usable with --address",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry.SetMowerNickname(args[0], args[1])
		if err := saveRegistry(); err != nil {
			return err
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Saved", ui.F(args[1], registry.Resolve(args[1])))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configNameCmd)
	rootCmd.AddCommand(configCmd)
}

func currentConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}
