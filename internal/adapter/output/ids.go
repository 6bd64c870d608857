package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/msgmenu/internal/model"
)

// IDsFormatter outputs just the desktop ids, one per line.
// Useful for piping to other commands (e.g., msgmenu unregister).
type IDsFormatter struct{}

// NewIDsFormatter creates a new IDs formatter.
func NewIDsFormatter() *IDsFormatter {
	return &IDsFormatter{}
}

// Format writes desktop ids to the writer, one per line.
func (f *IDsFormatter) Format(w io.Writer, apps []model.Application) error {
	for _, app := range apps {
		if _, err := fmt.Fprintln(w, app.ID); err != nil {
			return err
		}
	}
	return nil
}
