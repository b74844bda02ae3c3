package formatting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"jarvis/internal/oauth"
	pkgstrings "jarvis/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// FormatIntegrations renders one row per integration.
func (f *TableFormatter) FormatIntegrations(w io.Writer, integrations []oauth.IntegrationView) error {
	if len(integrations) == 0 {
		_, err := fmt.Fprint(w, f.formatEmptyMessage("No integrations found"))
		return err
	}

	t := f.createTable(w)
	t.AppendHeader(table.Row{
		f.header("TYPE"),
		f.header("STATUS"),
		f.header("APP ID"),
		f.header("UPDATED"),
		f.header("REASON"),
	})

	for _, i := range integrations {
		t.AppendRow(table.Row{
			string(i.Type),
			f.status(i.Status),
			i.AppID,
			i.UpdatedAt.UTC().Format(time.RFC3339),
			pkgstrings.SingleLine(i.StatusReason, pkgstrings.DefaultReasonMaxLen),
		})
	}

	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	if !f.options.Color {
		return s
	}
	return text.FgHiCyan.Sprint(s)
}

func (f *TableFormatter) status(s oauth.IntegrationStatus) string {
	if !f.options.Color {
		return string(s)
	}
	if s == oauth.StatusActive {
		return text.FgGreen.Sprint(s)
	}
	return text.FgRed.Sprint(s)
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) string {
	if !f.options.Color {
		return message + "\n"
	}
	return text.FgYellow.Sprint(message) + "\n"
}
