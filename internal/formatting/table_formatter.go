package formatting

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	textutil "github.com/giantswarm/discord-oauth/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// Format renders fields as a SECTION / KEY / VALUE table in input order.
func (f *TableFormatter) Format(w io.Writer, fields []Field) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{f.color(text.FgHiCyan, "SECTION"), f.color(text.FgHiCyan, "KEY"), f.color(text.FgHiCyan, "VALUE")})

	prev := ""
	for _, field := range fields {
		section := field.Section
		if section == prev {
			section = ""
		} else {
			prev = section
		}

		value := textutil.Truncate(fmt.Sprintf("%v", field.Value), textutil.DefaultValueMaxLen)
		t.AppendRow(table.Row{f.color(text.FgHiBlue, section), field.Key, value})
	}

	t.Render()
	return nil
}

func (f *TableFormatter) color(c text.Color, s string) string {
	if !f.options.Color || s == "" {
		return s
	}
	return c.Sprint(s)
}
