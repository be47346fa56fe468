package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/enicky/automower-ble/internal/mower"
	"github.com/enicky/automower-ble/internal/protocol"
)

func testSnapshot() *mower.Snapshot {
	return &mower.Snapshot{
		Taken:        time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		Model:        protocol.MowerModel{Manufacturer: "Husqvarna", Name: "305", IsHusqvarna: true},
		BatteryLevel: 80,
		Charging:     true,
		State:        protocol.StateInOperation,
		Activity:     protocol.ActivityMowing,
		Errors: map[protocol.ResponseKind]error{
			protocol.KindMode: errors.New("timeout"),
		},
	}
}

func TestHeader_KeepsParamOrder(t *testing.T) {
	out := NewHeader("Mower status", "automower status",
		F("Address", "AA:BB"), F("Bridge", "ws://bridge/ble"), F("Channel", "0x47603bb6"),
	).SetWidth(80).Render()

	if !strings.Contains(out, "MOWER STATUS") {
		t.Errorf("header missing upper-cased title:\n%s", out)
	}
	a, b, c := strings.Index(out, "Address"), strings.Index(out, "Bridge"), strings.Index(out, "Channel")
	if a < 0 || b < 0 || c < 0 || !(a < b && b < c) {
		t.Errorf("params out of order (%d, %d, %d):\n%s", a, b, c, out)
	}
}

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Parked", F("Address", "AA:BB")),
			want:   []string{"OK", "Parked", "Address:", "AA:BB"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Query failed", errors.New("bridge unreachable"), "Check the bridge URL"),
			want:   []string{"FAILED", "Query failed", "bridge unreachable", "Troubleshooting:", "Check the bridge URL"},
		},
		{
			name:   "warning",
			result: NewWarningResult("Partial status").AddDetail("mode", "timeout"),
			want:   []string{"WARNING", "Partial status", "mode:", "timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).Render()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("Render() missing %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestSnapshotFields(t *testing.T) {
	fields, failures := SnapshotFields(testSnapshot())

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	if got := strings.Join(keys, ","); got != "Model,Battery,State,Activity,Next start" {
		t.Errorf("field keys = %s", got)
	}
	if fields[1].Value != "80% (charging)" {
		t.Errorf("battery = %q", fields[1].Value)
	}
	if fields[4].Value != "not scheduled" {
		t.Errorf("next start = %q", fields[4].Value)
	}
	if len(failures) != 1 || failures[0].Key != "mode" || failures[0].Value != "timeout" {
		t.Errorf("failures = %+v", failures)
	}
}

func TestSnapshotFields_SkippedKinds(t *testing.T) {
	snap := testSnapshot()
	snap.Errors = nil
	snap.Skipped = map[protocol.ResponseKind]struct{}{
		protocol.KindBatteryLevel: {},
		protocol.KindStartTime:    {},
	}

	fields, failures := SnapshotFields(snap)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	if got := strings.Join(keys, ","); got != "Model,Charging,State,Activity" {
		t.Errorf("field keys = %s", got)
	}
	if fields[1].Value != "yes" {
		t.Errorf("charging = %q", fields[1].Value)
	}
	if len(failures) != 0 {
		t.Errorf("failures = %+v", failures)
	}
}

func TestFormatStartTime(t *testing.T) {
	if got := FormatStartTime(time.Time{}); got != "not scheduled" {
		t.Errorf("zero time = %q", got)
	}
	if got := FormatStartTime(time.Unix(0, 0)); got != "not scheduled" {
		t.Errorf("epoch = %q", got)
	}
	start := time.Unix(1700000000, 0)
	if got := FormatStartTime(start); got != start.Local().Format(TimeLayout) {
		t.Errorf("FormatStartTime() = %q", got)
	}
}

func TestFormatTask(t *testing.T) {
	task := protocol.TaskInformation{
		NextStartTime:   time.Unix(57600, 0),
		DurationSeconds: 12600,
		OnMonday:        true,
		OnSunday:        true,
	}
	if got := FormatTask(task); got != "16:00 for 3h30m0s on Mon,Sun" {
		t.Errorf("FormatTask() = %q", got)
	}
	if got := FormatTask(protocol.TaskInformation{}); !strings.HasSuffix(got, "on no days") {
		t.Errorf("FormatTask(empty) = %q", got)
	}
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(10)
	if p.Width() != MinTerminalWidth {
		t.Errorf("Width() = %d, want clamped to %d", p.Width(), MinTerminalWidth)
	}

	p.PrintFields(F("battery-level", "80"), F("state", "inOperation"))
	want := "battery-level: 80\nstate:         inOperation\n"
	if buf.String() != want {
		t.Errorf("PrintFields() = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	p.PrintSnapshot("Husqvarna 305", testSnapshot())
	for _, w := range []string{"WARNING", "Husqvarna 305", "80% (charging)", "inOperation", "mode:", "timeout"} {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("PrintSnapshot() missing %q:\n%s", w, buf.String())
		}
	}
}

func TestConfirmOperation(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "yes\n", want: true},
		{input: "  YES  \n", want: true},
		{input: "yes", want: true},
		{input: "no\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got := ConfirmMowStart(strings.NewReader(tt.input), &out, "AA:BB")
			if got != tt.want {
				t.Errorf("ConfirmMowStart(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "START MOWING") {
				t.Errorf("warning box not shown:\n%s", out.String())
			}
		})
	}
}

type fakeSource struct {
	snapshot *mower.Snapshot
	err      error
	calls    int
}

func (f *fakeSource) Snapshot(ctx context.Context) (*mower.Snapshot, error) {
	f.calls++
	return f.snapshot, f.err
}

func TestDashboard_Polling(t *testing.T) {
	src := &fakeSource{snapshot: testSnapshot()}
	m := NewDashboard(context.Background(), src, "AA:BB", time.Minute)

	if !strings.Contains(m.View(), "Connecting to mower") {
		t.Errorf("initial view:\n%s", m.View())
	}

	// A refresh while the first poll is in flight is ignored
	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Error("refresh during poll started another poll")
	}
	m = model.(Dashboard)

	msg := m.poll()()
	model, cmd = m.Update(msg)
	m = model.(Dashboard)
	if cmd == nil {
		t.Error("no tick scheduled after a poll")
	}
	if m.Polls() != 1 || m.Snapshot() == nil || m.Err() != nil {
		t.Fatalf("after poll: polls=%d snapshot=%v err=%v", m.Polls(), m.Snapshot(), m.Err())
	}

	view := m.View()
	for _, w := range []string{"Husqvarna 305", "80% (charging)", "inOperation", "mowing", "timeout", "refresh"} {
		if !strings.Contains(view, w) {
			t.Errorf("View() missing %q:\n%s", w, view)
		}
	}

	// Tick starts the next poll
	model, cmd = m.Update(pollTickMsg(time.Now()))
	m = model.(Dashboard)
	if cmd == nil {
		t.Fatal("tick did not start a poll")
	}
	if _, ok := cmd().(snapshotMsg); !ok {
		t.Error("tick command did not poll")
	}
	if src.calls != 2 {
		t.Errorf("Snapshot() calls = %d, want 2", src.calls)
	}
}

func TestDashboard_ErrorKeepsLastSnapshot(t *testing.T) {
	src := &fakeSource{snapshot: testSnapshot()}
	m := NewDashboard(context.Background(), src, "AA:BB", time.Minute)

	model, _ := m.Update(snapshotMsg{snapshot: testSnapshot()})
	model, _ = model.Update(snapshotMsg{err: errors.New("bridge unreachable")})
	m = model.(Dashboard)

	if m.Snapshot() == nil {
		t.Fatal("error discarded the previous snapshot")
	}
	if m.Err() == nil || !strings.Contains(m.View(), "bridge unreachable") {
		t.Errorf("error not shown:\n%s", m.View())
	}
}

func TestDashboard_Quit(t *testing.T) {
	m := NewDashboard(context.Background(), &fakeSource{}, "AA:BB", time.Minute)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m = NewDashboard(ctx, &fakeSource{}, "AA:BB", time.Minute)
	_, cmd = m.Update(snapshotMsg{err: context.Canceled})
	if cmd == nil {
		t.Fatal("cancelled poll returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("cancelled context did not quit")
	}
}
