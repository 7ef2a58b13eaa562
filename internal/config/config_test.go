package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tempoline/internal/config"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Catalog.SearchLimit <= 0 {
		t.Fatalf("search limit: %d", cfg.Catalog.SearchLimit)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level: %q", cfg.Log.Level)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("auth:\n  jwt_secret: s3cret\ncatalog:\n  search_limit: 5\nlog:\n  level: debug\n")
	if err := os.WriteFile(filepath.Join(dir, "tempoline.yml"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Catalog.SearchLimit != 5 || cfg.Log.Level != "debug" {
		t.Fatalf("cfg: %+v", cfg)
	}
}

func TestFromYAMLRejectsBadLevel(t *testing.T) {
	if _, err := config.FromYAML([]byte("log:\n  level: loud\n")); err == nil {
		t.Fatalf("expected validation error")
	}
}
