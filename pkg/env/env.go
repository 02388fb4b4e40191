package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the first set variable in keys, or
// fallback when none is set.
func Get(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
