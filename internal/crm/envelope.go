package crm

import (
	"strconv"
	"strings"
)

// The CRM wraps results in several envelope shapes depending on endpoint
// and deployment version. idMatchers is the ordered list of shapes probed
// for a created-object id: model.id, then top-level id, then data.id.
var idMatchers = []func(map[string]any) (int64, bool){
	matchModelID,
	matchTopLevelID,
	matchDataID,
}

// extractID probes the known envelope shapes in order and returns the
// first id found.
func extractID(payload map[string]any) (int64, bool) {
	if payload == nil {
		return 0, false
	}
	for _, match := range idMatchers {
		if id, ok := match(payload); ok {
			return id, true
		}
	}
	return 0, false
}

func matchModelID(payload map[string]any) (int64, bool) {
	model, ok := payload["model"].(map[string]any)
	if !ok {
		return 0, false
	}
	return coerceID(model["id"])
}

func matchTopLevelID(payload map[string]any) (int64, bool) {
	if _, ok := payload["id"]; !ok {
		return 0, false
	}
	return coerceID(payload["id"])
}

func matchDataID(payload map[string]any) (int64, bool) {
	data, ok := payload["data"].(map[string]any)
	if !ok {
		return 0, false
	}
	return coerceID(data["id"])
}

// coerceID normalizes the id value: numbers arrive as float64 from the
// JSON decoder, some deployments return them as strings.
func coerceID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		return int64(id), true
	case int64:
		return id, true
	case int:
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// isModelError reports whether a 2xx envelope actually carries a model
// validation failure.
func isModelError(payload map[string]any) bool {
	if payload == nil {
		return false
	}
	if truthy(payload["model_error"]) || truthy(payload["errors"]) || truthy(payload["error"]) {
		return true
	}
	if msg, ok := payload["message"].(string); ok {
		return strings.Contains(strings.ToLower(msg), "model")
	}
	return false
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	case float64:
		return val != 0
	default:
		return true
	}
}

// items extracts a list payload from the conventional envelope keys.
func items(payload map[string]any) []map[string]any {
	for _, key := range []string{"items", "data"} {
		list, ok := payload[key].([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, entry := range list {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}
