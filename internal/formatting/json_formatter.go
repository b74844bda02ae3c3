package formatting

import (
	"encoding/json"
	"io"

	"jarvis/internal/oauth"
)

type jsonFormatter struct{}

func (jsonFormatter) FormatIntegrations(w io.Writer, integrations []oauth.IntegrationView) error {
	if integrations == nil {
		integrations = []oauth.IntegrationView{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(integrations)
}
