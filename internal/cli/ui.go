package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent = lipgloss.Color("36")
	colorOK     = lipgloss.Color("35")
	colorWarn   = lipgloss.Color("220")
	colorFail   = lipgloss.Color("167")
	colorValue  = lipgloss.Color("255")
	colorLabel  = lipgloss.Color("245")
	colorMuted  = lipgloss.Color("240")
)

var (
	styleAccent = lipgloss.NewStyle().Foreground(colorAccent)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleValue  = lipgloss.NewStyle().Foreground(colorValue)
	styleLabel  = lipgloss.NewStyle().Foreground(colorLabel).Width(10)
)

// markers prefix each kind of status line.
var (
	markOK   = lipgloss.NewStyle().Foreground(colorOK).Render("✓")
	markFail = lipgloss.NewStyle().Foreground(colorFail).Render("✗")
	markWarn = lipgloss.NewStyle().Foreground(colorWarn).Render("!")
	markInfo = lipgloss.NewStyle().Foreground(colorLabel).Render("›")
)

// printer writes human-oriented command output. Commands create one from
// cmd.OutOrStdout() so the output can be captured in tests.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) printer { return printer{w: w} }

func (p printer) line(mark, format string, args ...any) {
	fmt.Fprintln(p.w, mark+" "+fmt.Sprintf(format, args...))
}

func (p printer) ok(format string, args ...any)   { p.line(markOK, format, args...) }
func (p printer) fail(format string, args ...any) { p.line(markFail, format, args...) }
func (p printer) info(format string, args ...any) { p.line(markInfo, format, args...) }

func (p printer) warn(format string, args ...any) {
	fmt.Fprintln(p.w, markWarn+" "+lipgloss.NewStyle().Foreground(colorWarn).Render(fmt.Sprintf(format, args...)))
}

// detail prints an indented, muted line.
func (p printer) detail(format string, args ...any) {
	fmt.Fprintln(p.w, "  "+styleMuted.Render(fmt.Sprintf(format, args...)))
}

// path prints an output location under the preceding line.
func (p printer) path(path string) {
	fmt.Fprintln(p.w, "  "+styleMuted.Render("→")+" "+styleValue.Render(path))
}

// field prints a labeled value. An empty label continues the previous field.
func (p printer) field(label, value string) {
	fmt.Fprintln(p.w, styleLabel.Render(label)+" "+styleValue.Render(value))
}
