package cache

import "strings"

// GenerateKey joins a prefix and parts with ':'. Parts are used verbatim.
func GenerateKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}
