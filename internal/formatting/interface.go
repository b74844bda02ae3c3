// Package formatting renders integration listings for the CLI in table,
// JSON or YAML form. Refresh tokens never reach this package: it only sees
// oauth.IntegrationView.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"jarvis/internal/oauth"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatTable OutputFormat = "table" // Rich table output
)

// ParseOutputFormat accepts json, yaml or table (case-insensitive).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: table, json, yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
}

// Formatter writes integration listings.
type Formatter interface {
	FormatIntegrations(w io.Writer, integrations []oauth.IntegrationView) error
}

// New returns the formatter for opts.Format.
func New(opts Options) Formatter {
	switch opts.Format {
	case FormatJSON:
		return jsonFormatter{}
	case FormatYAML:
		return yamlFormatter{}
	default:
		return &TableFormatter{options: opts}
	}
}
