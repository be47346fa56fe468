package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConfirmPhrase is what the user must type to confirm an operation
const ConfirmPhrase = "yes"

// ConfirmOperation displays a warning box on out and reads one line from in.
// It returns true only if the line is ConfirmPhrase.
func ConfirmOperation(in io.Reader, out io.Writer, title string, warnings []string) bool {
	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf("   %s  WARNING  ─  %s", WarningMarker, title)), ""}
	bullet := lipgloss.NewStyle().Foreground(TextColor)
	for _, warning := range warnings {
		lines = append(lines, bullet.Render("   • "+warning))
	}
	lines = append(lines, "")
	box := ResultBoxStyle(GetTerminalWidth(), WarningColor).Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", ConfirmPhrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}

	if strings.EqualFold(strings.TrimSpace(input), ConfirmPhrase) {
		return true
	}

	_, _ = fmt.Fprintln(out, NoteStyle.Render("  Operation cancelled."))
	return false
}

// ConfirmMowStart asks before sending a command that starts the blades
func ConfirmMowStart(in io.Reader, out io.Writer, address string) bool {
	return ConfirmOperation(in, out, "START MOWING", []string{
		"The mower " + address + " will leave the charging station and start its blades",
		"Make sure nobody, including children and pets, is in the mowing area",
	})
}
