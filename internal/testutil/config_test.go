package testutil

import "testing"

func TestGetTestValue(t *testing.T) {
	t.Setenv("JANPRICE_TEST_VAR", "env-value")

	if got := GetTestValue("JANPRICE_TEST_VAR", "default-value"); got != "env-value" {
		t.Errorf("expected env-value, got %s", got)
	}
	if got := GetTestValue("JANPRICE_UNSET_VAR", "default-value"); got != "default-value" {
		t.Errorf("expected default-value, got %s", got)
	}
}

func TestGetTestRefreshToken(t *testing.T) {
	t.Setenv(TestRefreshToken, "")
	if got := GetTestRefreshToken(); got != DefaultTestToken {
		t.Errorf("expected %s, got %s", DefaultTestToken, got)
	}
}

func TestPostgresURL(t *testing.T) {
	t.Setenv(TestDatabaseURL, "postgres://localhost/janprice_test")
	if got := PostgresURL(); got != "postgres://localhost/janprice_test" {
		t.Errorf("unexpected DSN %q", got)
	}
}

func TestBrowserTestsEnabled(t *testing.T) {
	t.Setenv("TEST_BROWSER", "")
	if BrowserTestsEnabled() {
		t.Error("browser tests should default to disabled")
	}
	t.Setenv("TEST_BROWSER", "true")
	if !BrowserTestsEnabled() {
		t.Error("expected browser tests enabled")
	}
}
