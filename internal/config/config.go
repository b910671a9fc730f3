package config

import (
	"os"
)

// Config is the process configuration, read from the environment. The
// .env file, if any, is loaded by main before this runs.
type Config struct {
	DatabaseURL   string
	Port          string
	SessionSecret string
	SeedDevData   bool
}

func Load() Config {
	return Config{
		DatabaseURL:   getenv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=restkit port=5432 sslmode=disable"),
		Port:          getenv("PORT", "8080"),
		SessionSecret: getenv("SESSION_SECRET", "secret_key_change_me"),
		SeedDevData:   os.Getenv("SEED_DEV_DATA") == "true",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
