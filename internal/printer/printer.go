// Package printer writes styled status lines for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/colonyops/muster/internal/core/styles"
)

type ctxKey struct{}

// Printer writes status lines to a writer.
type Printer struct {
	w io.Writer
}

// New creates a printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stdout.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok {
		return p
	}
	return New(os.Stdout)
}

func (p *Printer) line(s string) {
	_, _ = fmt.Fprintln(p.w, s)
}

func (p *Printer) Printf(format string, args ...any) {
	p.line(fmt.Sprintf(format, args...))
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.SuccessStyle.Render("✓") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.MutedStyle.Render("•") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.WarningStyle.Render("!") + " " + fmt.Sprintf(format, args...))
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.ErrorStyle.Render("✗") + " " + fmt.Sprintf(format, args...))
}

// Section prints a bold heading.
func (p *Printer) Section(title string) {
	p.line(styles.HeaderStyle.Render(title))
}
