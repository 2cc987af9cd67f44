// Copyright 2026 The Bot Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// requiredKeys are the key paths every tenant document must carry.
var requiredKeys = [][]string{
	{"tenant_id"},
	{"bot_id"},
	{"brand", "name"},
	{"features"},
	{"integrations"},
}

// LoadConfig reads and validates the tenant document <tenantID>.yaml inside
// dir. It returns ErrNotFound (wrapped) when no document exists, and a
// *ValidationError when the document fails any structural check. There is
// no partial success: a document that fails a check is never returned.
func LoadConfig(dir, tenantID string) (*Config, error) {
	path := filepath.Join(dir, tenantID+".yaml")

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s (TENANT_ID=%q)", ErrNotFound, path, tenantID)
		}
		return nil, fmt.Errorf("failed to read tenant config %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &ValidationError{TenantID: tenantID, Reason: fmt.Sprintf("not a YAML mapping: %v", err)}
	}
	if doc == nil {
		return nil, &ValidationError{TenantID: tenantID, Reason: "document is empty, expected a YAML mapping"}
	}

	if got, _ := doc["tenant_id"].(string); got != tenantID {
		return nil, &ValidationError{
			TenantID: tenantID,
			Path:     "tenant_id",
			Reason:   fmt.Sprintf("embedded id %q does not match requested %q", got, tenantID),
		}
	}

	for _, keyPath := range requiredKeys {
		if err := checkKeyPath(doc, keyPath); err != nil {
			return nil, &ValidationError{
				TenantID: tenantID,
				Path:     strings.Join(keyPath, "."),
				Reason:   "required key is missing",
			}
		}
	}

	if verr := validateIntegrations(tenantID, doc); verr != nil {
		return nil, verr
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ValidationError{TenantID: tenantID, Reason: fmt.Sprintf("cannot decode document: %v", err)}
	}

	return &cfg, nil
}

// checkKeyPath walks one dotted key path through nested mappings.
func checkKeyPath(doc map[string]any, keyPath []string) error {
	var node any = doc
	for _, part := range keyPath {
		m, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("not a mapping at %q", part)
		}
		node, ok = m[part]
		if !ok {
			return fmt.Errorf("missing %q", part)
		}
	}
	return nil
}

func validateIntegrations(tenantID string, doc map[string]any) *ValidationError {
	integrations, ok := doc["integrations"].(map[string]any)
	if !ok {
		return &ValidationError{TenantID: tenantID, Path: "integrations", Reason: "must be a mapping"}
	}

	for name, raw := range integrations {
		block, ok := raw.(map[string]any)
		if !ok {
			return &ValidationError{
				TenantID: tenantID,
				Path:     "integrations." + name,
				Reason:   "must be a mapping",
			}
		}
		enabled, _ := block["enabled"].(bool)
		if !enabled {
			continue
		}
		env, ok := block["env"].(map[string]any)
		if !ok || len(env) == 0 {
			return &ValidationError{
				TenantID: tenantID,
				Path:     fmt.Sprintf("integrations.%s.env", name),
				Reason:   "must be a non-empty mapping when enabled=true",
			}
		}
	}

	return nil
}
