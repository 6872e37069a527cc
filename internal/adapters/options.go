package adapters

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Options reads typed values out of a seed's free-form config block. Values decoded
// from YAML or JSON arrive as interface{} so every accessor accepts the usual shapes.
type Options map[string]interface{}

// String returns the string at key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Int returns the integer at key or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the boolean at key or def.
func (o Options) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Strings returns the string list at key. A single comma-separated string is split.
func (o Options) Strings(key string) []string {
	var out []string
	switch v := o[key].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = strings.Split(v, ",")
	}

	cleaned := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Maps returns the list of objects at key.
func (o Options) Maps(key string) []map[string]interface{} {
	var out []map[string]interface{}
	switch v := o[key].(type) {
	case []map[string]interface{}:
		out = v
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	}
	return out
}
