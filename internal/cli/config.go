package cli

import "os"

// Config holds CLI configuration
type Config struct {
	// ServerAddr is the control-channel (TCP) address.
	ServerAddr string

	// WorldAddr is the world-channel (UDP) address.
	WorldAddr string

	Username string
	Password string
}

// DefaultConfig returns CLI defaults, honouring environment overrides.
func DefaultConfig() *Config {
	return &Config{
		ServerAddr: envOr("SKYARENA_ADDR", "localhost:33445"),
		WorldAddr:  envOr("SKYARENA_WORLD_ADDR", "localhost:33446"),
		Username:   os.Getenv("SKYARENA_USERNAME"),
		Password:   os.Getenv("SKYARENA_PASSWORD"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
