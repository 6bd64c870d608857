package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// PlainFormatter formats registrations as plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes registrations as plain text.
func (f *PlainFormatter) Format(w io.Writer, apps []model.Application) error {
	if len(apps) == 0 && f.template == nil {
		_, err := fmt.Fprintln(w, "no applications registered")
		return err
	}
	for i := range apps {
		if err := f.formatApplication(w, i+1, &apps[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatApplication(w io.Writer, index int, app *model.Application) error {
	if f.template != nil {
		data := templateData{
			Index:        index,
			Application:  app,
			RelativeTime: relativeTime(app.RegisteredAt),
		}
		if err := f.template.Execute(w, data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}

	sb.WriteString(app.ID)
	sb.WriteString(" ")
	sb.WriteString(statusLabel(app))

	if f.opts.ShowTime {
		sb.WriteString(fmt.Sprintf(" (registered %s)", relativeTime(app.RegisteredAt)))
	}

	sb.WriteString("\n")
	sb.WriteString("    " + app.MenuPath)
	if f.opts.ShowOwner && app.Owner != "" {
		sb.WriteString(" @ " + app.Owner)
	}
	sb.WriteString("\n")

	_, err := w.Write([]byte(sb.String()))
	return err
}

// statusLabel shows the status, marking one that was never reported.
func statusLabel(app *model.Application) string {
	if !app.StatusSet {
		return "(" + app.Status.String() + ")"
	}
	return app.Status.String()
}
