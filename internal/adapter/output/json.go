package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// JSONFormatter formats registrations as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes registrations as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, apps []model.Application) error {
	if apps == nil {
		apps = []model.Application{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(apps)
}
