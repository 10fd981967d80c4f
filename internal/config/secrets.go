package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ResolveSecret returns the first non-empty value of: the explicit value, the
// file dir/name, the environment variable env. All are whitespace-trimmed.
func ResolveSecret(value, dir, name, env string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if dir != "" && name != "" {
		if b, err := os.ReadFile(filepath.Join(dir, name)); err == nil { // #nosec G304 - secrets mount
			if v := strings.TrimSpace(string(b)); v != "" {
				return v
			}
		}
	}
	if env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
