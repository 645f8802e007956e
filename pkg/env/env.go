package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable, treating a
// blank value as unset, or the fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
