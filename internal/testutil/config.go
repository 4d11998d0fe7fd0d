package testutil

import (
	"os"
	"strconv"
)

const (
	// Test environment variables
	TestDatabaseURL  = "TEST_DATABASE_URL"
	TestRefreshToken = "TEST_SPAPI_REFRESH_TOKEN"
	TestChromePath   = "TEST_CHROME_PATH"

	// Default test values when environment variables are not set
	DefaultTestToken = "test-token"
	DefaultTestKey   = "test-key"
)

// GetTestValue returns the environment variable or defaultValue
func GetTestValue(envVar, defaultValue string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultValue
}

// GetTestRefreshToken returns the refresh token used against fake identity servers
func GetTestRefreshToken() string {
	return GetTestValue(TestRefreshToken, DefaultTestToken)
}

// PostgresURL returns the Postgres DSN for ledger tests, or "" when the
// Postgres tests should be skipped.
func PostgresURL() string {
	return os.Getenv(TestDatabaseURL)
}

// BrowserTestsEnabled reports whether tests that launch Chrome may run.
func BrowserTestsEnabled() bool {
	enabled, _ := strconv.ParseBool(os.Getenv("TEST_BROWSER"))
	return enabled
}
