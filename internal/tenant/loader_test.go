package tenant

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `tenant_id: acme
bot_id: acme_bot
brand:
  name: Acme School
features:
  reminders: true
integrations:
  alfacrm:
    enabled: true
    env:
      email: CRM_EMAIL
      api_key: CRM_API_KEY
  sheets:
    enabled: false
`

func writeDoc(t *testing.T, dir, tenantID, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, tenantID+".yaml"), []byte(content), 0o600)
	require.NoError(t, err)
}

func TestTenant_LoadConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "acme", validDoc)

	cfg, err := LoadConfig(dir, "acme")
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.TenantID)
	assert.Equal(t, "acme_bot", cfg.BotID)
	assert.Equal(t, "Acme School", cfg.Brand.Name)
	assert.True(t, cfg.Feature("reminders"))
	assert.True(t, cfg.IntegrationEnabled("alfacrm"))
	assert.False(t, cfg.IntegrationEnabled("sheets"))
	assert.False(t, cfg.IntegrationEnabled("unknown"))
	assert.Equal(t, "CRM_EMAIL", cfg.Integrations["alfacrm"].Env["email"])
}

func TestTenant_LoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(t.TempDir(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPurpose: Validates that a document failing any structural check is never returned.
// Scope: Unit Test
// Expected: Each malformed document yields a *ValidationError naming the offending path.
// Test Case ID: TEN-01
func TestTenant_LoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		doc      string
		path     string
	}{
		{
			name:     "not a mapping",
			tenantID: "acme",
			doc:      "- just\n- a\n- list\n",
		},
		{
			name:     "tenant id mismatch",
			tenantID: "acme",
			doc:      "tenant_id: other\nbot_id: b\nbrand: {name: x}\nfeatures: {}\nintegrations: {}\n",
			path:     "tenant_id",
		},
		{
			name:     "missing integrations",
			tenantID: "acme",
			doc:      "tenant_id: acme\nbot_id: b\nbrand: {name: x}\nfeatures: {}\n",
			path:     "integrations",
		},
		{
			name:     "missing brand name",
			tenantID: "acme",
			doc:      "tenant_id: acme\nbot_id: b\nbrand: {}\nfeatures: {}\nintegrations: {}\n",
			path:     "brand.name",
		},
		{
			name:     "integration block not a mapping",
			tenantID: "acme",
			doc:      "tenant_id: acme\nbot_id: b\nbrand: {name: x}\nfeatures: {}\nintegrations: {crm: yes}\n",
			path:     "integrations.crm",
		},
		{
			name:     "enabled without env",
			tenantID: "acme",
			doc:      "tenant_id: acme\nbot_id: b\nbrand: {name: x}\nfeatures: {}\nintegrations: {crm: {enabled: true}}\n",
			path:     "integrations.crm.env",
		},
		{
			name:     "enabled with empty env",
			tenantID: "acme",
			doc:      "tenant_id: acme\nbot_id: b\nbrand: {name: x}\nfeatures: {}\nintegrations: {crm: {enabled: true, env: {}}}\n",
			path:     "integrations.crm.env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, tt.tenantID, tt.doc)

			_, err := LoadConfig(dir, tt.tenantID)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %T: %v", err, err)
			assert.Equal(t, tt.path, verr.Path)
		})
	}
}

func TestTenant_LoadConfig_DisabledWithoutEnvIsFine(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "acme",
		"tenant_id: acme\nbot_id: b\nbrand: {name: x}\nfeatures: {}\nintegrations: {crm: {enabled: false}}\n")

	cfg, err := LoadConfig(dir, "acme")
	require.NoError(t, err)
	assert.False(t, cfg.IntegrationEnabled("crm"))
}
