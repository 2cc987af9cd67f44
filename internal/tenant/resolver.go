package tenant

import "os"

// Credentials maps integration name to its resolved parameter values.
// Disabled integrations are present with an empty map.
type Credentials map[string]map[string]string

// Integration returns the resolved parameters for one integration, or an
// empty map if it was disabled or never declared.
func (c Credentials) Integration(name string) map[string]string {
	if params, ok := c[name]; ok {
		return params
	}
	return map[string]string{}
}

// LookupFunc resolves one environment variable name to its value.
type LookupFunc func(name string) (string, bool)

// ResolveCredentials converts the enabled-integration declarations of cfg
// into concrete parameter values. lookup defaults to os.LookupEnv when nil.
//
// Resolution is fail-fast: the first enabled integration referencing an
// unset or empty environment variable aborts the whole resolution with a
// *MissingSecretError naming both the integration and the variable. This
// keeps structure validation (LoadConfig) usable at deploy time even when
// secrets are not yet provisioned.
func ResolveCredentials(cfg *Config, lookup LookupFunc) (Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	creds := make(Credentials, len(cfg.Integrations))
	for name, spec := range cfg.Integrations {
		if !spec.Enabled {
			creds[name] = map[string]string{}
			continue
		}

		resolved := make(map[string]string, len(spec.Env))
		for param, envVar := range spec.Env {
			value, ok := lookup(envVar)
			if !ok || value == "" {
				return nil, &MissingSecretError{Integration: name, Param: param, EnvVar: envVar}
			}
			resolved[param] = value
		}
		creds[name] = resolved
	}

	return creds, nil
}
