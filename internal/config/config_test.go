package config

import (
	"testing"
	"time"
)

func TestRequireEnv(t *testing.T) {
	t.Run("variable set", func(t *testing.T) {
		t.Setenv("TEST_VAR", "test_value")
		if got := requireEnv("TEST_VAR"); got != "test_value" {
			t.Errorf("requireEnv() = %q, want %q", got, "test_value")
		}
	})

	t.Run("variable not set", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("requireEnv() should panic when variable is missing")
			}
		}()
		requireEnv("TEST_VAR_DEFINITELY_MISSING")
	})
}

func TestGetenv(t *testing.T) {
	t.Setenv("TEST_GETENV", "value")
	if got := getenv("TEST_GETENV", "default"); got != "value" {
		t.Errorf("getenv() = %q, want %q", got, "value")
	}
	if got := getenv("TEST_GETENV_MISSING", "default"); got != "default" {
		t.Errorf("getenv() = %q, want default", got)
	}
}

func TestGetenvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   int
		want  int
	}{
		{name: "valid int", value: "42", def: 1, want: 42},
		{name: "invalid int", value: "nope", def: 7, want: 7},
		{name: "empty", value: "", def: 3, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				t.Setenv("TEST_INT", tt.value)
			}
			if got := getenvInt("TEST_INT", tt.def); got != tt.want {
				t.Errorf("getenvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMustDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "250ms")
	if got := mustDuration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("mustDuration() = %v, want 250ms", got)
	}
	if got := mustDuration("TEST_DURATION_MISSING", time.Second); got != time.Second {
		t.Errorf("mustDuration() = %v, want fallback 1s", got)
	}
	t.Setenv("TEST_DURATION_BAD", "soon")
	if got := mustDuration("TEST_DURATION_BAD", 2*time.Second); got != 2*time.Second {
		t.Errorf("mustDuration() = %v, want fallback 2s", got)
	}
}

func TestMustBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	if !mustBool("TEST_BOOL", false) {
		t.Error("mustBool() = false, want true")
	}
	t.Setenv("TEST_BOOL_BAD", "maybe")
	if !mustBool("TEST_BOOL_BAD", true) {
		t.Error("mustBool() should fall back to default on invalid value")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKS_JWT_SECRET", "test-secret")
	t.Setenv("MARKS_REDIS_ADDR", "localhost:6379")

	cfg := Load()

	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.PageSize)
	}
	if cfg.ReconnectBackoff != 2*time.Second {
		t.Errorf("ReconnectBackoff = %v, want 2s", cfg.ReconnectBackoff)
	}
	if cfg.ReloadDelay != 100*time.Millisecond {
		t.Errorf("ReloadDelay = %v, want 100ms", cfg.ReloadDelay)
	}
	if cfg.NoticeTTL != 3*time.Second {
		t.Errorf("NoticeTTL = %v, want 3s", cfg.NoticeTTL)
	}
	if cfg.SeedFile != "" {
		t.Errorf("SeedFile = %q, want empty (disabled)", cfg.SeedFile)
	}
}
