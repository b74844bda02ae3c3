package formatting

import (
	"io"

	"gopkg.in/yaml.v3"

	"jarvis/internal/oauth"
)

type yamlFormatter struct{}

func (yamlFormatter) FormatIntegrations(w io.Writer, integrations []oauth.IntegrationView) error {
	if integrations == nil {
		integrations = []oauth.IntegrationView{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(integrations); err != nil {
		return err
	}
	return enc.Close()
}
