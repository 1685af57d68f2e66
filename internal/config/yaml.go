package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// asJSON returns file content ready for the strict JSON decoder. Files
// with a YAML extension are decoded and re-encoded as JSON so a single
// decoder (with DisallowUnknownFields) covers both formats; everything
// else passes through untouched.
func asJSON(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	out, err := json.Marshal(stringKeyed(doc))
	if err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return out, nil
}

// stringKeyed rewrites every map key in a decoded YAML document to a
// string. YAML allows non-string keys; json.Marshal does not.
func stringKeyed(v any) any {
	switch x := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = stringKeyed(val)
		}
		return m
	case map[string]any:
		for k, val := range x {
			x[k] = stringKeyed(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = stringKeyed(val)
		}
		return x
	}
	return v
}
