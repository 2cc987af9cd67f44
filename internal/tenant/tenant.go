package tenant

// Config is the immutable per-deployment tenant document. It is loaded
// once at startup and never mutated afterwards.
type Config struct {
	TenantID     string                     `yaml:"tenant_id"`
	BotID        string                     `yaml:"bot_id"`
	Brand        Brand                      `yaml:"brand"`
	Features     map[string]bool            `yaml:"features"`
	Integrations map[string]IntegrationSpec `yaml:"integrations"`
}

// Brand holds tenant-facing branding
type Brand struct {
	Name string `yaml:"name"`
}

// IntegrationSpec declares one external system for a tenant. Env maps
// parameter names to the environment variables that carry their values.
type IntegrationSpec struct {
	Enabled bool              `yaml:"enabled"`
	Env     map[string]string `yaml:"env"`
}

// Feature reports whether a feature flag is switched on for the tenant.
func (c *Config) Feature(name string) bool {
	return c.Features[name]
}

// IntegrationEnabled reports whether the named integration is declared
// and switched on.
func (c *Config) IntegrationEnabled(name string) bool {
	spec, ok := c.Integrations[name]
	return ok && spec.Enabled
}
