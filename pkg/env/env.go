package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the given environment variable or a
// fallback. Mobile shells tend to inject trailing newlines when they export
// device properties, so raw values are never trusted as-is.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
