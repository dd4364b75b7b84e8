package formatting

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct{}

// Format writes fields as indented JSON grouped by section.
func (f *JSONFormatter) Format(w io.Writer, fields []Field) error {
	b, err := json.MarshalIndent(nest(fields), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
