package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL  = "LEVQUOTE_RPC_URL"
	EnvChainID = "LEVQUOTE_CHAIN_ID"
)

// LoadEnv loads environment variables from .env files. A missing file is
// not an error; variables already set are not overridden.
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// ApplyEnv overrides cfg fields that have an environment variable set.
func ApplyEnv(cfg *Config) error {
	cfg.RPCEndpoint = GetEnvWithDefault(EnvRPCURL, cfg.RPCEndpoint)

	if v := os.Getenv(EnvChainID); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvChainID, v, err)
		}
		cfg.ChainID = id
	}
	return nil
}
