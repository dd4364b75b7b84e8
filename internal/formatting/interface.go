// Package formatting renders labelled settings for the command line in one
// of several output formats.
package formatting

import (
	"fmt"
	"io"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// Field is one labelled value. Fields sharing a Section are grouped.
type Field struct {
	Section string
	Key     string
	Value   interface{}
}

// Formatter writes fields to w.
type Formatter interface {
	Format(w io.Writer, fields []Field) error
}

// New returns the formatter for options.Format.
func New(options Options) (Formatter, error) {
	switch options.Format {
	case FormatTable, "":
		return &TableFormatter{options: options}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (supported: %s, %s, %s)",
			options.Format, FormatTable, FormatJSON, FormatYAML)
	}
}

// nest groups fields into section -> key -> value, the shape used by the
// structured formats. Fields without a section sit at the top level.
func nest(fields []Field) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range fields {
		if f.Section == "" {
			out[f.Key] = f.Value
			continue
		}
		section, ok := out[f.Section].(map[string]interface{})
		if !ok {
			section = make(map[string]interface{})
			out[f.Section] = section
		}
		section[f.Key] = f.Value
	}
	return out
}
