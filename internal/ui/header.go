package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Field is one labelled value. Slices of fields keep their order when
// rendered, unlike maps.
type Field struct {
	Key   string
	Value string
}

// F is shorthand for building a Field
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Header represents a command header with title, command, and parameters.
// Used at the start of each command to show what is being talked to.
type Header struct {
	Title   string  // e.g., "MOWER STATUS"
	Command string  // e.g., "automower status"
	Params  []Field // e.g., Address, Bridge, Channel
	Width   int     // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Field) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) == 0 {
		return HeaderBorderStyle(width).Render(topSection)
	}

	dividerWidth := width - 6 // Account for border and padding
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := RenderHorizontalDivider(dividerWidth, "─")

	paramLines := make([]string, 0, len(h.Params))
	for _, p := range h.Params {
		paramLines = append(paramLines, HeaderParamKeyStyle.Render(p.Key+":")+" "+HeaderParamValueStyle.Render(p.Value))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	return HeaderBorderStyle(width).Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
