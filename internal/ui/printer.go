package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/enicky/automower-ble/internal/mower"
)

// Printer writes UI components to a writer. Every command prints through
// one so that output can be captured in tests.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the width this printer renders at
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = clampWidth(width)
	return p
}

// Print writes content to the output
func (p *Printer) Print(content string) {
	_, _ = fmt.Fprint(p.out, content)
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Field) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Field) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details ...Field) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting ...string) {
	p.Println(NewFailureResult(title, err, troubleshooting...).SetWidth(p.width).Render())
}

// PrintSnapshot prints a mower status snapshot
func (p *Printer) PrintSnapshot(title string, s *mower.Snapshot) {
	p.Println(RenderSnapshot(title, s, p.width))
}

// PrintFields prints aligned key/value lines without a box, for output that
// is likely to be piped.
func (p *Printer) PrintFields(fields ...Field) {
	keyWidth := 0
	for _, f := range fields {
		if len(f.Key) > keyWidth {
			keyWidth = len(f.Key)
		}
	}
	for _, f := range fields {
		_, _ = fmt.Fprintf(p.out, "%s:%s %s\n", f.Key, strings.Repeat(" ", keyWidth-len(f.Key)), f.Value)
	}
}
