package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("HELIOS_PORT")
	os.Unsetenv("HELIOS_API_KEY")
	os.Unsetenv("HELIOS_DATA_DIR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.DefaultQuotaMS != 1000 {
		t.Errorf("expected default quota 1000ms, got %d", cfg.DefaultQuotaMS)
	}
	if cfg.DefaultQuotaMemB != 10_000_000 {
		t.Errorf("expected default quota mem 10000000, got %d", cfg.DefaultQuotaMemB)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("HELIOS_PORT", "9999")
	os.Setenv("HELIOS_API_KEY", "test-key")
	os.Setenv("HELIOS_DEFAULT_SLICE_MS", "25")
	defer func() {
		os.Unsetenv("HELIOS_PORT")
		os.Unsetenv("HELIOS_API_KEY")
		os.Unsetenv("HELIOS_DEFAULT_SLICE_MS")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("expected API key test-key, got %s", cfg.APIKey)
	}
	if cfg.DefaultSliceMS != 25 {
		t.Errorf("expected slice ms 25, got %d", cfg.DefaultSliceMS)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	os.Setenv("HELIOS_PORT", "not-a-number")
	defer os.Unsetenv("HELIOS_PORT")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}
