package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/protocol"
)

// TimeLayout is used for every timestamp shown to the user
const TimeLayout = "Mon 2006-01-02 15:04 MST"

// FormatStartTime renders a next start time in local time. The zero value
// means the mower has nothing scheduled.
func FormatStartTime(t time.Time) string {
	if t.IsZero() || t.Unix() == 0 {
		return "not scheduled"
	}
	return t.Local().Format(TimeLayout)
}

// FormatBattery renders a battery percentage with its charging state
func FormatBattery(level uint8, charging bool) string {
	if charging {
		return fmt.Sprintf("%d%% (charging)", level)
	}
	return fmt.Sprintf("%d%%", level)
}

// FormatBool renders a flag as yes or no
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatTask renders one schedule entry as "16:00 for 3h30m0s on Mon,Wed"
func FormatTask(t protocol.TaskInformation) string {
	days := make([]string, 0, 7)
	for _, d := range t.Weekdays() {
		days = append(days, d.String()[:3])
	}
	if len(days) == 0 {
		days = append(days, "no days")
	}
	return fmt.Sprintf("%s for %s on %s", t.NextStartTime.UTC().Format("15:04"), t.Duration(), strings.Join(days, ","))
}

// SnapshotFields lists the values in a snapshot, leaving out kinds that
// failed or were never asked. Failed kinds are returned separately in sorted
// order.
func SnapshotFields(s *mower.Snapshot) (fields []Field, failures []Field) {
	add := func(kind protocol.ResponseKind, key, value string) {
		if s.Has(kind) {
			fields = append(fields, F(key, value))
		}
	}

	if s.Model.Name != "" {
		add(protocol.KindDeviceType, "Model", s.Model.String())
	}
	switch {
	case s.Has(protocol.KindBatteryLevel):
		add(protocol.KindBatteryLevel, "Battery", FormatBattery(s.BatteryLevel, s.Has(protocol.KindIsCharging) && s.Charging))
	case s.Has(protocol.KindIsCharging):
		add(protocol.KindIsCharging, "Charging", FormatBool(s.Charging))
	}
	add(protocol.KindMowerState, "State", StateStyle(s.State).Render(string(s.State)))
	add(protocol.KindMowerActivity, "Activity", string(s.Activity))
	if s.Mode != "" {
		add(protocol.KindMode, "Mode", string(s.Mode))
	}
	if s.Restriction != "" {
		add(protocol.KindRestrictionReason, "Restriction", string(s.Restriction))
	}
	add(protocol.KindStartTime, "Next start", FormatStartTime(s.NextStartTime))

	kinds := make([]protocol.ResponseKind, 0, len(s.Errors))
	for kind := range s.Errors {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, kind := range kinds {
		failures = append(failures, F(kind.String(), s.Errors[kind].Error()))
	}
	return fields, failures
}

// RenderSnapshot renders a snapshot as a result box. Partial snapshots are
// shown as a warning listing the failed queries.
func RenderSnapshot(title string, s *mower.Snapshot, width int) string {
	fields, failures := SnapshotFields(s)
	fields = append(fields, F("Taken", s.Taken.Local().Format(TimeLayout)))

	r := NewSuccessResult(title, fields...)
	if len(failures) > 0 {
		r.Type = ResultWarning
		for _, f := range failures {
			r.AddDetail(f.Key, ErrorMessageStyle.Render(f.Value))
		}
	}
	return r.SetWidth(width).Render()
}
