package config

import (
	"os"
)

// TestConfig provides configuration for test environments.
type TestConfig struct {
	DatabaseURL string
}

// NewTestConfig creates a new test configuration, defaulting to a local
// test database and honoring TEST_DATABASE_URL for CI.
func NewTestConfig() *TestConfig {
	dbURL := "host=localhost user=postgres password=postgres dbname=courtkeeper_test port=5432 sslmode=disable"

	if envURL := os.Getenv("TEST_DATABASE_URL"); envURL != "" {
		dbURL = envURL
	}

	return &TestConfig{DatabaseURL: dbURL}
}

func (c *TestConfig) GetDatabaseURL() string {
	return c.DatabaseURL
}

// IsCI returns true if running in a CI environment.
func IsCI() bool {
	return os.Getenv("CI") == "true" || os.Getenv("GITHUB_ACTIONS") == "true"
}
