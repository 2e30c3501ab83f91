// Package printer writes human facing command output. Colours are dropped
// automatically when the destination is not a terminal.
package printer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hay-kot/criterio"
	"github.com/hay-kot/enso/internal/styles"
	"github.com/hay-kot/enso/pkg/executil"
)

// Symbols
const (
	Check = "✔"
	Cross = "✘"
	Dot   = "•"
)

// stderrLines bounds how much of a failed command's stderr FatalError shows.
const stderrLines = 10

type ctxKey struct{}

// Printer handles formatted output with colors and styles
type Printer struct {
	writer io.Writer

	red, green, yellow, gray, section lipgloss.Style
}

// New creates a new Printer that writes to the given writer
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		writer:  w,
		red:     r.NewStyle().Foreground(styles.ColorRed),
		green:   r.NewStyle().Foreground(styles.ColorGreen),
		yellow:  r.NewStyle().Foreground(styles.ColorYellow),
		gray:    r.NewStyle().Foreground(styles.ColorGray),
		section: r.NewStyle().Bold(true).Underline(true),
	}
}

// NewContext returns a context with the printer attached
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx retrieves the printer from context, or creates a default one
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stderr)
}

// FatalError prints a formatted error box and does NOT exit.
// Caller should handle exit code.
func (p *Printer) FatalError(err error) {
	if err == nil {
		return
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		p.printValidationErrors(err, fieldErrs)
		return
	}

	bar := p.red.Render("│")
	p.writeln(p.red.Render("╭ Error"))
	p.writeln(bar + " " + p.gray.Render(err.Error()))

	// show what a failed git or setup command printed
	var exitErr *executil.ExitError
	if errors.As(err, &exitErr) {
		detail := exitErr.Stderr
		if strings.TrimSpace(detail) == "" {
			detail = exitErr.Output
		}
		if strings.TrimSpace(detail) != "" {
			p.writeln(bar)
		}
		for _, line := range tail(detail, stderrLines) {
			p.writeln(bar + " " + line)
		}
	}

	p.writeln(p.red.Render("╵"))
}

// printValidationErrors lists criterio.FieldErrors one field per line.
func (p *Printer) printValidationErrors(wrappedErr error, fieldErrs criterio.FieldErrors) {
	// the text in front of the field errors, e.g. "load config"
	errStr := wrappedErr.Error()
	errContext := ""
	if idx := strings.Index(errStr, fieldErrs.Error()); idx > 0 {
		errContext = strings.TrimSuffix(errStr[:idx], ": ")
	}

	bar := p.red.Render("│")
	p.writeln(p.red.Render("╭ Validation Error"))

	if errContext != "" {
		p.writeln(bar + " " + p.gray.Render(errContext))
		p.writeln(bar)
	}

	for _, fe := range fieldErrs {
		line := bar + " " + p.red.Render(Cross) + " "
		if fe.Field != "" {
			line += p.gray.Render(fe.Field + ": ")
		}
		p.writeln(line + fe.Err.Error())
	}

	p.writeln(p.red.Render("╵"))
}

// Successf prints a success message in green
func (p *Printer) Successf(format string, args ...any) {
	p.writeln(p.green.Render(Check + " " + fmt.Sprintf(format, args...)))
}

// Success prints a success message with details on a separate line
func (p *Printer) Success(message string, details string) {
	p.writeln(p.green.Render(Check + " " + message))
	if details != "" {
		p.writeln("  " + p.gray.Render(details))
	}
}

// Infof prints an info message in gray
func (p *Printer) Infof(format string, args ...any) {
	p.writeln(p.gray.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Warnf prints a warning message in yellow
func (p *Printer) Warnf(format string, args ...any) {
	p.writeln(p.yellow.Render(Dot + " " + fmt.Sprintf(format, args...)))
}

// Printf prints a plain message without colors
func (p *Printer) Printf(format string, args ...any) {
	p.writeln(fmt.Sprintf(format, args...))
}

// Section prints a section header
func (p *Printer) Section(title string) {
	p.writeln(p.section.Render(title))
}

// CheckItem prints a success item with green checkmark
func (p *Printer) CheckItem(label, detail string) {
	p.printItem(p.green, Check, label, detail)
}

// WarnItem prints a warning item with yellow dot
func (p *Printer) WarnItem(label, detail string) {
	p.printItem(p.yellow, Dot, label, detail)
}

// FailItem prints a failure item with red cross
func (p *Printer) FailItem(label, detail string) {
	p.printItem(p.red, Cross, label, detail)
}

func (p *Printer) printItem(style lipgloss.Style, symbol, label, detail string) {
	line := "  " + style.Render(symbol) + " " + label
	if detail != "" {
		line += ": " + detail
	}
	p.writeln(line)
}

func (p *Printer) writeln(s string) {
	_, _ = io.WriteString(p.writer, s+"\n")
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) []string {
	var lines []string
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
