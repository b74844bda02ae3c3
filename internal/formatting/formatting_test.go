package formatting

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"jarvis/internal/oauth"
)

func sampleViews() []oauth.IntegrationView {
	return []oauth.IntegrationView{
		{
			Type:      oauth.IntegrationOneDrive,
			AppID:     "client-1",
			Status:    oauth.StatusActive,
			UpdatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatTable, "table": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable}).FormatIntegrations(&buf, sampleViews()))

	out := buf.String()
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "OneDrive")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "2024-06-01T12:00:00Z")
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{}).FormatIntegrations(&buf, nil))
	assert.Equal(t, "No integrations found\n", buf.String())
}

func TestTableFormatter_TruncatesReason(t *testing.T) {
	views := sampleViews()
	views[0].Status = oauth.StatusRequiresReauth
	views[0].StatusReason = string(bytes.Repeat([]byte("x"), 100))

	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatTable}).FormatIntegrations(&buf, views))
	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), views[0].StatusReason)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatJSON}).FormatIntegrations(&buf, sampleViews()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "OneDrive", got[0]["type"])
	assert.Equal(t, "client-1", got[0]["appId"])

	buf.Reset()
	require.NoError(t, New(Options{Format: FormatJSON}).FormatIntegrations(&buf, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatYAML}).FormatIntegrations(&buf, sampleViews()))

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "OneDrive", got[0]["type"])
	assert.Equal(t, "active", got[0]["status"])
}
