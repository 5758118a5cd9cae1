// Package config loads store-directory location, thread-count, and
// deployment-mode defaults from environment variables, in the same style
// as the teacher package's EnvConfig: a thin prefix-scoped wrapper around
// os.Getenv with typed Get accessors.
package config

import (
	"os"
	"strconv"
)

// EnvConfig retrieves typed values from environment variables, optionally
// scoped by a prefix (e.g. "WEATHER" turns key "DATA" into "WEATHER_DATA").
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a loader scoped to prefix. An empty prefix reads
// bare variable names.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return ec.prefix + "_" + key
}

// GetString retrieves a string value, or defaultValue if unset/empty.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// GetInt retrieves an integer value, or defaultValue if unset or unparsable.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value, or defaultValue if unset or unparsable.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// StoreConfig holds the values needed to open a store directory and drive
// the ingest pipeline, loaded from the environment with CLI-flag override
// taking precedence (callers apply flags after calling Load).
type StoreConfig struct {
	Directory  string // store directory root
	Threads    int    // ingest worker pool size, capped at 16 by weatherapp.AdminInit
	Deployment string // "hybrid" or "normalized"
	LogLevel   string
	LogJSON    bool
}

// Load reads a StoreConfig from environment variables under prefix (e.g.
// "WEATHER" or "FSVIEW"). Directory falls back to "" when unset, which
// callers should treat as "no directory configured."
func Load(prefix string) StoreConfig {
	env := NewEnvConfig(prefix)
	return StoreConfig{
		Directory:  env.GetString("DATA", ""),
		Threads:    env.GetInt("THREADS", 4),
		Deployment: env.GetString("DEPLOYMENT", "hybrid"),
		LogLevel:   env.GetString("LOG_LEVEL", "info"),
		LogJSON:    env.GetBool("LOG_JSON", false),
	}
}
