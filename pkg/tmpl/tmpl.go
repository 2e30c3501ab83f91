// Package tmpl renders the templated shell commands found in config, such
// as workspace setup steps.
package tmpl

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/hay-kot/enso/pkg/proc"
)

// Quoter quotes a single value for the shell a rendered command runs in.
type Quoter func(string) string

type options struct {
	quote Quoter
}

// Option configures Render.
type Option func(*options)

// WithQuoter sets the function behind q. The default is POSIX quoting.
func WithQuoter(q Quoter) Option {
	return func(o *options) {
		if q != nil {
			o.quote = q
		}
	}
}

func funcs(o options) template.FuncMap {
	return template.FuncMap{
		"q":    o.quote,
		"shq":  proc.QuotePOSIX,
		"winq": proc.QuoteWindows,
		"psq":  proc.QuotePowerShell,
	}
}

// Render executes a Go template string with the given data. Undefined keys
// are an error.
//
// Template functions:
//   - q: quote for the target shell (see WithQuoter)
//   - shq, winq, psq: quote for POSIX, the Windows command line and PowerShell
func Render(text string, data any, opts ...Option) (string, error) {
	o := options{quote: proc.QuotePOSIX}
	for _, opt := range opts {
		opt(&o)
	}

	t, err := template.New("").Funcs(funcs(o)).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}
