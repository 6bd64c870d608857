package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// DmenuFormatter formats registrations for dmenu/rofi/fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes registrations in dmenu format (one per line).
func (f *DmenuFormatter) Format(w io.Writer, apps []model.Application) error {
	for i := range apps {
		line := f.formatLine(i+1, &apps[i])
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(index int, app *model.Application) string {
	if f.template != nil {
		var buf strings.Builder
		data := templateData{
			Index:        index,
			Application:  app,
			RelativeTime: relativeTime(app.RegisteredAt),
		}
		if err := f.template.Execute(&buf, data); err == nil {
			return buf.String()
		}
	}

	// Default format: [index] [time] id status
	var parts []string
	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(app.RegisteredAt))
	}
	parts = append(parts, app.ID, app.Status.String())
	if f.opts.ShowOwner && app.Owner != "" {
		parts = append(parts, app.Owner)
	}

	return strings.Join(parts, sep)
}

// templateData provides data for custom templates.
type templateData struct {
	Index        int
	Application  *model.Application
	RelativeTime string
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			if maxLen <= 0 || len(s) <= maxLen {
				return s
			}
			if maxLen <= 3 {
				return s[:maxLen]
			}
			return s[:maxLen-3] + "..."
		},
		"reltime": relativeTime,
		"statusIcon": func(status model.Status) string {
			switch status {
			case model.StatusAvailable:
				return "+"
			case model.StatusAway:
				return "~"
			case model.StatusBusy:
				return "!"
			case model.StatusInvisible:
				return "."
			default:
				return "-"
			}
		},
	}
}

// relativeTime returns a human-readable relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.Time(t)
}
