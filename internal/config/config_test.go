package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOrDefaultValue(t *testing.T) {
	t.Setenv("IC_TEST_STRING", "value")
	t.Setenv("IC_TEST_INT", "42")
	t.Setenv("IC_TEST_BAD_INT", "forty-two")
	t.Setenv("IC_TEST_BOOL", "true")
	t.Setenv("IC_TEST_DURATION", "250ms")

	if got := EnvOrDefaultValue("IC_TEST_STRING", "default"); got != "value" {
		t.Errorf("Expected value, got %s", got)
	}
	if got := EnvOrDefaultValue("IC_TEST_UNSET", "default"); got != "default" {
		t.Errorf("Expected default, got %s", got)
	}
	if got := EnvOrDefaultValue("IC_TEST_INT", 1); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
	if got := EnvOrDefaultValue("IC_TEST_BAD_INT", 1); got != 1 {
		t.Errorf("Expected fallback 1, got %d", got)
	}
	if got := EnvOrDefaultValue("IC_TEST_BOOL", false); !got {
		t.Errorf("Expected true")
	}
	if got := EnvOrDefaultValue("IC_TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Run("LoadsWithoutOverriding", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("IC_DOTENV_NEW=from-file\nIC_DOTENV_SET=from-file\n"), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("IC_DOTENV_SET", "from-env")
		t.Setenv("IC_DOTENV_NEW", "")
		os.Unsetenv("IC_DOTENV_NEW")

		if err := LoadDotEnv(path); err != nil {
			t.Fatal(err)
		}

		if got := os.Getenv("IC_DOTENV_NEW"); got != "from-file" {
			t.Errorf("Expected from-file, got %q", got)
		}
		if got := os.Getenv("IC_DOTENV_SET"); got != "from-env" {
			t.Errorf("Expected from-env, got %q", got)
		}
	})

	t.Run("MissingFileIgnored", func(t *testing.T) {
		if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Errorf("Expected missing file to be ignored, got %v", err)
		}
	})
}
