package config

import (
	"os"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ConfigFileFromEnv returns the config file named by PUNCHFLOW_CONFIG, if any.
func ConfigFileFromEnv() string {
	return GetEnv("PUNCHFLOW_CONFIG", "")
}

// GetEnvironment returns the current environment (development, staging, production).
// Defaults to development if not set.
func GetEnvironment() string {
	env := GetEnv("PUNCHFLOW_SERVER_ENVIRONMENT", EnvDevelopment)
	return strings.ToLower(env)
}

// IsProductionLike reports whether environment is staging or production.
func IsProductionLike(environment string) bool {
	return environment == EnvStaging || environment == EnvProduction
}
