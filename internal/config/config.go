// Package config provides server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the interview server configuration.
type Config struct {
	Port       string
	PromptFile string

	// DataDir roots the file-backed progress/results store.
	DataDir string

	// DBPath is the SQLite database path. Empty means the default
	// per-user data location.
	DBPath string

	// SortItems orders catalog items by the numeric suffix in their id
	// instead of source order.
	SortItems bool

	// SkipItemID and SkipThreshold configure the conditional skip rule.
	SkipItemID    string
	SkipThreshold int

	// RequireAgentID rejects respondent ids that don't match the
	// AI001-AI099 harness contract.
	RequireAgentID bool

	AllowedOrigin string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("MINDSCALE_PORT", "8080"),
		PromptFile:     getEnv("MINDSCALE_PROMPT_FILE", "prompts.txt"),
		DataDir:        getEnv("MINDSCALE_DATA_DIR", "./data"),
		DBPath:         getEnv("MINDSCALE_DB", ""),
		SortItems:      getEnvBool("MINDSCALE_SORT_ITEMS", false),
		SkipItemID:     getEnv("MINDSCALE_SKIP_ITEM", "hamd17"),
		SkipThreshold:  getEnvInt("MINDSCALE_SKIP_THRESHOLD", 8),
		RequireAgentID: getEnvBool("MINDSCALE_REQUIRE_AGENT_ID", false),
		AllowedOrigin:  getEnv("MINDSCALE_ALLOWED_ORIGIN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("MINDSCALE_PORT cannot be empty")
	}
	if c.PromptFile == "" {
		return fmt.Errorf("MINDSCALE_PROMPT_FILE cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("MINDSCALE_DATA_DIR cannot be empty")
	}
	if c.SkipThreshold < 0 {
		return fmt.Errorf("MINDSCALE_SKIP_THRESHOLD must be >= 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
