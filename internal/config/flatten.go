package config

import (
	"strings"
)

// secretKeys lists the flattened keys printed masked by `config list`.
var secretKeys = map[string]bool{
	"line.channel_secret":       true,
	"line.channel_access_token": true,
	"dedupe.redis.password":     true,
	"storage.minio.access_key":  true,
	"storage.minio.secret_key":  true,
}

func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns {"line": {"timeout": "10s"}} into {"line.timeout": "10s"}.
// Lists are kept as leaf values.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto("", m, out)
	return out
}

func flattenInto(prefix string, m map[string]any, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(key, child, out)
			continue
		}
		out[key] = v
	}
}

// Unflatten reverses Flatten. A leaf that collides with a deeper key is
// replaced by a map.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with non-empty secret strings shown
// as "***" plus their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			continue
		}
		if len(s) > 4 {
			s = s[len(s)-4:]
		}
		out[k] = "***" + s
	}
	return out
}
