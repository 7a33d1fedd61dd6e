package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load resolves the Config from the process environment. The sequence:
//
//  1. Load a .env file if present (non-fatal when absent; OS environment
//     always wins over dotenv values).
//  2. Process envconfig struct tags to populate the Config.
//  3. Validate the struct with go-playground/validator and fail fast.
func Load() (*Config, error) {
	// godotenv does not overwrite variables already set in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
