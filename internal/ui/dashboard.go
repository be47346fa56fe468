package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/enicky/automower-ble/internal/mower"
)

// Snapshotter is the part of a mower session the dashboard needs
type Snapshotter interface {
	Snapshot(ctx context.Context) (*mower.Snapshot, error)
}

// Message types for async operations
type snapshotMsg struct {
	snapshot *mower.Snapshot
	err      error
}

type pollTickMsg time.Time

// dashboardKeyMap defines key bindings for the dashboard
type dashboardKeyMap struct {
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k dashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k dashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Refresh, k.Quit}}
}

// Dashboard is a live status view of one mower. It polls the session on a
// fixed interval and on demand; a poll is never started while another is in
// flight.
type Dashboard struct {
	ctx      context.Context
	source   Snapshotter
	title    string
	interval time.Duration

	Width  int
	Height int

	spinner spinner.Model
	battery progress.Model
	help    help.Model
	keys    dashboardKeyMap

	snapshot *mower.Snapshot
	err      error
	polling  bool
	polls    int
	lastPoll time.Time
}

// NewDashboard creates a dashboard polling source every interval
func NewDashboard(ctx context.Context, source Snapshotter, title string, interval time.Duration) Dashboard {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	bar := progress.New(progress.WithGradient("#FF5555", string(SuccessColor)))
	bar.Width = 30

	width, height := GetTerminalSize()

	return Dashboard{
		ctx:      ctx,
		source:   source,
		title:    title,
		interval: interval,
		Width:    width,
		Height:   height,
		spinner:  s,
		battery:  bar,
		help:     help.New(),
		keys: dashboardKeyMap{
			Refresh: key.NewBinding(
				key.WithKeys("r"),
				key.WithHelp("r", "refresh"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		polling: true,
	}
}

// Init starts the first poll
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m Dashboard) poll() tea.Cmd {
	return func() tea.Msg {
		s, err := m.source.Snapshot(m.ctx)
		return snapshotMsg{snapshot: s, err: err}
	}
}

func (m Dashboard) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = msg.Height
		m.help.Width = m.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			if !m.polling {
				m.polling = true
				return m, m.poll()
			}
		}

	case snapshotMsg:
		m.polling = false
		m.polls++
		m.lastPoll = time.Now()
		if msg.err != nil {
			if m.ctx.Err() != nil {
				return m, tea.Quit
			}
			m.err = msg.err
		} else {
			m.snapshot = msg.snapshot
			m.err = nil
		}
		return m, m.scheduleTick()

	case pollTickMsg:
		if !m.polling {
			m.polling = true
			return m, m.poll()
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the dashboard
func (m Dashboard) View() string {
	var b strings.Builder

	b.WriteString(NewHeader("Mower "+m.title, "automower watch").SetWidth(m.Width).Render())
	b.WriteString("\n\n")

	if m.snapshot == nil {
		if m.err != nil {
			b.WriteString(ErrorMessageStyle.Render("  " + FailureMarker + " " + m.err.Error()))
		} else {
			b.WriteString("  " + m.spinner.View() + " Connecting to mower...")
		}
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	fields, failures := SnapshotFields(m.snapshot)
	for _, f := range fields {
		b.WriteString(ResultKeyStyle.Render("  "+f.Key+":") + " " + ResultValueStyle.Render(f.Value) + "\n")
		if f.Key == "Battery" {
			b.WriteString(ResultKeyStyle.Render("") + " " + m.battery.ViewAs(float64(m.snapshot.BatteryLevel)/100) + "\n")
		}
	}

	if len(failures) > 0 {
		b.WriteString("\n")
		for _, f := range failures {
			b.WriteString(ResultKeyStyle.Render("  "+f.Key+":") + " " + ErrorMessageStyle.Render(f.Value) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Dashboard) statusLine() string {
	var parts []string
	if m.polling {
		parts = append(parts, m.spinner.View()+" refreshing")
	}
	parts = append(parts, NoteStyle.Render(fmt.Sprintf("updated %s, every %s", m.lastPoll.Format("15:04:05"), m.interval)))
	if m.err != nil {
		parts = append(parts, ErrorMessageStyle.Render(FailureMarker+" "+m.err.Error()))
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(strings.Join(parts, "  "))
}

// Snapshot returns the latest snapshot, or nil before the first poll
// completes
func (m Dashboard) Snapshot() *mower.Snapshot {
	return m.snapshot
}

// Err returns the error of the latest poll
func (m Dashboard) Err() error {
	return m.err
}

// Polls returns how many polls have completed
func (m Dashboard) Polls() int {
	return m.polls
}

// RunDashboard runs the dashboard full screen until the user quits or ctx
// is cancelled.
func RunDashboard(ctx context.Context, source Snapshotter, title string, interval time.Duration) error {
	p := tea.NewProgram(
		NewDashboard(ctx, source, title, interval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
