package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// toFlatMap round-trips the config through JSON into a flat key map.
func toFlatMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return Flatten(nested), nil
}

// ListValues returns all config keys in sorted order with secrets masked.
func ListValues(cfg *Config) ([]string, map[string]any, error) {
	flat, err := toFlatMap(cfg)
	if err != nil {
		return nil, nil, err
	}
	masked := MaskSecrets(flat)
	keys := make([]string, 0, len(masked))
	for k := range masked {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, masked, nil
}

// GetValue returns the value for a dot-separated key, masked if secret.
func GetValue(cfg *Config, key string) (any, error) {
	flat, err := toFlatMap(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	if IsSecretKey(key) {
		return MaskSecrets(map[string]any{key: v})[key], nil
	}
	return v, nil
}

// SetValue sets a dot-separated key to a string value, coercing it to the
// field's JSON type, and returns the updated config.
func SetValue(cfg *Config, key, value string) (*Config, error) {
	flat, err := toFlatMap(cfg)
	if err != nil {
		return nil, err
	}
	current, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}

	switch current.(type) {
	case float64: // all JSON numbers
		var n float64
		if err := json.Unmarshal([]byte(value), &n); err != nil {
			return nil, fmt.Errorf("key %s expects a number: %w", key, err)
		}
		flat[key] = n
	case bool:
		var b bool
		if err := json.Unmarshal([]byte(value), &b); err != nil {
			return nil, fmt.Errorf("key %s expects a bool: %w", key, err)
		}
		flat[key] = b
	default:
		flat[key] = value
	}

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var updated Config
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, fmt.Errorf("apply config value: %w", err)
	}
	return &updated, nil
}
