package env

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok && val != "" {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetDuration parses a Go duration string and falls back to def when the key
// is unset or unparsable.
func GetDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SetupEnvFile loads the first .env file it finds. Unlike a web app with
// templates, the relay can run purely from the process environment, so a
// missing file is not fatal here; RequireEnv decides what is.
func SetupEnvFile() {
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/accessrelay to project root
		"../../../.env", // Fallback for deeper nesting
	}

	for _, envFile := range envFiles {
		loaded, err := godotenv.Read(envFile)
		if err == nil {
			Env = loaded
			return
		}
	}
	Env = map[string]string{}
}

// RequireEnv returns an error listing every key that has no value.
func RequireEnv(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(GetEnv(k, "")) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequireOneOf fails when none of the given keys has a value.
func RequireOneOf(keys ...string) error {
	for _, k := range keys {
		if strings.TrimSpace(GetEnv(k, "")) != "" {
			return nil
		}
	}
	return fmt.Errorf("missing required configuration: one of %s", strings.Join(keys, ", "))
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
