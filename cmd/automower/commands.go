package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/ui"
)

// Command flags
var (
	queryPayload  string
	mowDuration   time.Duration
	mowConfirmed  bool
	watchInterval time.Duration
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(parkCmd)
	rootCmd.AddCommand(mowCmd)
	rootCmd.AddCommand(watchCmd)
}

// statusCmd prints a one-shot status summary
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mower status",
	Long: `Connect to the mower and print its model, battery, state, activity and
next scheduled start.

Queries whose request command id is unknown are skipped. Add ids with
'automower config set commands.<kind> <hex>'.`,
	Example: `  # Status of a mower by address
  automower status --address 60:2C:11:22:33:44

  # By nickname, through a known bridge
  automower status -a "Front lawn" --bridge ws://192.168.1.20:8080/ble

  # JSON for scripting
  automower status -a "Front lawn" --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	snap, err := s.client.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	out := cmd.OutOrStdout()
	switch outputFormat {
	case "json":
		return writeJSON(out, snapshotJSON(s.address, snap))
	case "plain":
		fields, failures := ui.SnapshotFields(snap)
		p := ui.NewPrinter(out)
		p.PrintFields(append(fields, failures...)...)
	default:
		p := ui.NewPrinter(out)
		p.PrintHeader("Mower status", "automower status", ui.F("Mower", s.displayName()), ui.F("Via", s.target))
		title := "Unidentified mower"
		if snap.Model.Name != "" {
			title = snap.Model.String()
		}
		p.PrintSnapshot(title, snap)
	}
	return nil
}

type statusOutput struct {
	Address       string            `json:"address"`
	Model         string            `json:"model,omitempty"`
	BatteryLevel  *uint8            `json:"battery_level,omitempty"`
	Charging      *bool             `json:"charging,omitempty"`
	State         string            `json:"state,omitempty"`
	Activity      string            `json:"activity,omitempty"`
	Mode          string            `json:"mode,omitempty"`
	Restriction   string            `json:"restriction,omitempty"`
	NextStartTime *time.Time        `json:"next_start_time,omitempty"`
	Taken         time.Time         `json:"taken"`
	Errors        map[string]string `json:"errors,omitempty"`
}

func snapshotJSON(address string, s *mower.Snapshot) statusOutput {
	ok := s.Has

	out := statusOutput{
		Address:     address,
		Model:       s.Model.Name,
		Mode:        string(s.Mode),
		Restriction: string(s.Restriction),
		Taken:       s.Taken,
	}
	if ok(protocol.KindBatteryLevel) {
		out.BatteryLevel = &s.BatteryLevel
	}
	if ok(protocol.KindIsCharging) {
		out.Charging = &s.Charging
	}
	if ok(protocol.KindMowerState) {
		out.State = string(s.State)
	}
	if ok(protocol.KindMowerActivity) {
		out.Activity = string(s.Activity)
	}
	if ok(protocol.KindStartTime) && !s.NextStartTime.IsZero() {
		out.NextStartTime = &s.NextStartTime
	}
	if len(s.Errors) > 0 {
		out.Errors = make(map[string]string, len(s.Errors))
		for kind, err := range s.Errors {
			out.Errors[kind.String()] = err.Error()
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// queryCmd sends a single request
var queryCmd = &cobra.Command{
	Use:   "query <kind>",
	Short: "Send one request and print the decoded response",
	Long: `Send the request for one response kind and print the decoded response.

Kinds: device-type, battery-level, is-charging, start-time, mower-state,
mower-activity, keepalive, park, startup-sequence-required, operator-logged-in,
mode, serial-number, restriction-reason, number-of-tasks, task-info and
override-mow.

Only some kinds have a known request command id; see 'automower config show'.`,
	Example: `  automower query battery-level -a "Front lawn"
  automower query task-info --payload 00 -a "Front lawn"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryPayload, "payload", "", "Request payload as hex")
}

func runQuery(cmd *cobra.Command, args []string) error {
	kind, err := protocol.ParseResponseKind(args[0])
	if err != nil {
		return err
	}
	var payload []byte
	if queryPayload != "" {
		if payload, err = parseHex(queryPayload); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if kind == protocol.KindTaskInfo && len(payload) == 1 {
		// Typed path so the task is rendered readably
		task, err := s.client.Task(ctx, payload[0])
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), kind, ui.FormatTask(task))
	}

	resp, err := s.client.Query(ctx, kind, payload)
	if err != nil {
		return err
	}
	return printResponse(cmd.OutOrStdout(), kind, resp.String())
}

func printResponse(out io.Writer, kind protocol.ResponseKind, value string) error {
	switch outputFormat {
	case "json":
		return writeJSON(out, map[string]string{"kind": kind.String(), "response": value})
	case "plain":
		ui.NewPrinter(out).PrintFields(ui.F(kind.String(), value))
	default:
		ui.NewPrinter(out).PrintSuccess(kind.String(), ui.F("Response", value))
	}
	return nil
}

// tasksCmd lists the mowing schedule
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the mowing schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		tasks, err := s.client.Tasks(ctx)
		if err != nil {
			return fmt.Errorf("failed to read schedule: %w", err)
		}

		fields := make([]ui.Field, 0, len(tasks))
		for i, t := range tasks {
			fields = append(fields, ui.F("Task "+strconv.Itoa(i), ui.FormatTask(t)))
		}

		p := ui.NewPrinter(cmd.OutOrStdout())
		switch {
		case outputFormat == "plain":
			p.PrintFields(fields...)
		case len(tasks) == 0:
			p.PrintWarning("No tasks scheduled")
		default:
			p.PrintSuccess(fmt.Sprintf("%d task(s)", len(tasks)), fields...)
		}
		return nil
	},
}

// parkCmd sends the mower home
var parkCmd = &cobra.Command{
	Use:   "park",
	Short: "Send the mower to its charging station",
	Long: `Log in with the operator PIN, switch to manual mode and send the mower
home.

The PIN is read from AUTOMOWER_PIN or prompted without echo. It is never
saved.`,
	Example: `  automower park -a "Front lawn"
  AUTOMOWER_PIN=1234 automower park -a "Front lawn"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, err := getPin()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		if err := s.client.Manual(ctx, pin, s.client.Park); err != nil {
			return fmt.Errorf("park failed: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Parking", ui.F("Mower", s.displayName()))
		return nil
	},
}

// mowCmd overrides the schedule and starts mowing
var mowCmd = &cobra.Command{
	Use:   "mow",
	Short: "Start mowing for a fixed duration",
	Long: `Override the schedule and mow for the given duration.

The blades start as soon as the mower reaches the lawn, so a typed
confirmation is required unless --yes is given. The operator PIN is read
from AUTOMOWER_PIN or prompted without echo.`,
	Example: `  automower mow --duration 2h -a "Front lawn"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mowDuration <= 0 {
			return fmt.Errorf("--duration must be positive")
		}
		if !mowConfirmed && !ui.ConfirmMowStart(os.Stdin, cmd.OutOrStdout(), mowerAddress) {
			return nil
		}

		pin, err := getPin()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		override := func(ctx context.Context) error { return s.client.OverrideMow(ctx, mowDuration) }
		if err := s.client.Manual(ctx, pin, override); err != nil {
			return fmt.Errorf("override failed: %w", err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Mowing",
			ui.F("Mower", s.displayName()),
			ui.F("Duration", mowDuration.String()),
		)
		return nil
	},
}

func init() {
	mowCmd.Flags().DurationVar(&mowDuration, "duration", time.Hour, "How long to mow")
	mowCmd.Flags().BoolVarP(&mowConfirmed, "yes", "y", false, "Skip the confirmation prompt")
}

// watchCmd runs the live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live status dashboard",
	Long: `Show a full screen dashboard that refreshes the mower status on an
interval. Press r to refresh now and q to quit.

Set AUTOMOWER_LOG_FILE to keep log output off the screen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer s.close()

		interval := watchInterval
		if interval <= 0 {
			interval = registry.Preferences.PollIntervalDuration()
		}
		return ui.RunDashboard(ctx, s.client, s.displayName(), interval)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Refresh interval (default from config)")
}
