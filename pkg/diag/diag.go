// Package diag renders compiler errors for people: the message, the
// offending source line and a marker under it.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"vencc/pkg/compiler"
)

// Printer writes diagnostics to Out. Colour follows fatih/color's
// detection unless NoColor is set.
type Printer struct {
	Out     io.Writer
	NoColor bool
}

func (p Printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.NoColor {
		c.DisableColor()
	}
	return c
}

// Print renders every error in errs against src, in order.
func (p Printer) Print(src string, errs []compiler.VarError) {
	lines := strings.Split(src, "\n")
	kind := p.paint(color.FgRed, color.Bold)
	gutter := p.paint(color.FgBlue)
	marker := p.paint(color.FgYellow)

	for _, err := range errs {
		kind.Fprintf(p.Out, "%s", err.Kind())
		fmt.Fprintf(p.Out, ": %s\n", err.Error())

		idx := err.Line()
		if idx < 0 || idx >= len(lines) {
			continue
		}
		text := strings.TrimRight(lines[idx], "\r\n\t ")
		num := fmt.Sprintf("%d", idx+1)

		gutter.Fprintf(p.Out, "%s |", num)
		fmt.Fprintf(p.Out, " %s\n", text)

		// The marker gutter is blank but as wide as the line number.
		lead := len(text) - len(strings.TrimLeft(text, " \t"))
		width := max(len([]rune(strings.TrimLeft(text, " \t"))), 1)
		gutter.Fprintf(p.Out, "%*s |", len(num), "")
		fmt.Fprintf(p.Out, " %s", text[:lead])
		marker.Fprintf(p.Out, "%s\n", "^"+strings.Repeat("~", width-1))
	}
}

// Summary is a one-line count such as "2 errors".
func Summary(errs []compiler.VarError) string {
	if len(errs) == 1 {
		return "1 error"
	}
	return fmt.Sprintf("%d errors", len(errs))
}
