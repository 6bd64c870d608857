package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// YAMLFormatter formats registrations as a YAML sequence.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes registrations as YAML.
func (f *YAMLFormatter) Format(w io.Writer, apps []model.Application) error {
	if apps == nil {
		apps = []model.Application{}
	}
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(apps); err != nil {
		return err
	}
	return encoder.Close()
}
