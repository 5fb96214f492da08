package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/actionagent/core"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Equal(t, []string{"github", "gmail", "youtube", "googledocs", "googlecalendar"}, c.Apps())
	assert.Same(t, c, Default())
}

func TestAppName(t *testing.T) {
	c := Default()
	tests := map[string]string{
		"gmail":           "GMAIL",
		"GMail":           "GMAIL",
		" github ":        "GITHUB",
		"Google Calendar": "GOOGLECALENDAR",
		"google_docs":     "GOOGLEDOCS",
		"GOOGLEDOCS":      "GOOGLEDOCS",
		"slack":           "SLACK",
	}
	for in, want := range tests {
		assert.Equal(t, want, c.AppName(in), in)
	}

	assert.True(t, c.SameApp("gmail", "GMAIL"))
	assert.True(t, c.SameApp("google docs", "googledocs"))
	assert.False(t, c.SameApp("gmail", "github"))
}

func TestActionsKeepCatalogOrder(t *testing.T) {
	c := Default()

	actions := c.Actions("GITHUB")
	require.NotEmpty(t, actions)
	assert.Equal(t, "GITHUB_UNSTAR_REPO_FOR_AUTHENTICATED_USER", actions[0].ActionID)
	assert.Equal(t, "GITHUB_STAR_A_REPOSITORY_FOR_THE_AUTHENTICATED_USER", actions[1].ActionID)

	assert.Nil(t, c.Actions("slack"))
}

func TestActionsReturnsCopies(t *testing.T) {
	c := Default()
	actions := c.Actions("gmail")
	actions[0].Keywords[0] = "mutated"

	assert.Equal(t, "send email", c.Actions("gmail")[0].Keywords[0])
}

func TestParams(t *testing.T) {
	c := Default()

	p, ok := c.Params("GMAIL_SEND_EMAIL")
	require.True(t, ok)
	assert.Equal(t, []string{"recipient_email", "subject", "body"}, p.Required)
	assert.Contains(t, p.Optional, "cc")
	require.NotEmpty(t, p.Synonyms)
	assert.Equal(t, Synonym{Alias: "to", Canonical: "recipient_email"}, p.Synonyms[0])
	assert.Equal(t, "body", p.Synonyms.Map()["message_body"])
	assert.Contains(t, p.Hint, "recipient_email")

	star, ok := c.Params("GITHUB_STAR_A_REPOSITORY_FOR_THE_AUTHENTICATED_USER")
	require.True(t, ok)
	assert.Empty(t, star.Optional)

	_, ok = c.Params("GITHUB_FORK_A_REPOSITORY")
	assert.False(t, ok)
	assert.Empty(t, c.Hint("GITHUB_FORK_A_REPOSITORY"))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "apps: [\n"},
		{"app without name", "apps:\n  - connector_name: X\n"},
		{"action without id", "apps:\n  - name: a\n    actions:\n      - key: k\n        keywords: [x]\n"},
		{"action without keywords", "apps:\n  - name: a\n    actions:\n      - action: A_X\n"},
		{"duplicate alias", "apps:\n  - name: a\n    aliases: [b]\n  - name: b\n"},
		{"required and optional", "actions:\n  A_X:\n    required: [f]\n    optional: [f]\n"},
		{"self synonym", "actions:\n  A_X:\n    synonyms:\n      f: f\n"},
		{"synonyms not a map", "actions:\n  A_X:\n    synonyms: [f]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			assert.Error(t, err)
			if tt.name != "malformed" && tt.name != "synonyms not a map" {
				assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
			}
		})
	}
}

func TestLoadNormalisesKeywords(t *testing.T) {
	c, err := Load([]byte("apps:\n  - name: demo\n    actions:\n      - action: DEMO_RUN\n        keywords: [\" Run It \"]\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEMO", c.AppName("demo"))
	assert.Equal(t, []string{"run it"}, c.Actions("demo")[0].Keywords)
}
