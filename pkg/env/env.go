package env

import "os"

// Get returns the value of the environment variable or the fallback.
func Get(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
