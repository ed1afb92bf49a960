package env

import (
	"os"
	"strings"
)

// First returns the first non-blank value among keys, or "" when none is set.
func First(keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return ""
}

// Get returns the variable's value or fallback when it is blank.
func Get(key, fallback string) string {
	if val := First(key); val != "" {
		return val
	}
	return fallback
}
