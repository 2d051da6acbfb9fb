package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RuntimeImport != DefaultConfig.RuntimeImport {
		t.Errorf("expected default runtime import, got %q", cfg.RuntimeImport)
	}
	if cfg.CacheDir != ".modelgen" {
		t.Errorf("expected default cache dir, got %q", cfg.CacheDir)
	}
	if cfg.DefaultScope != "singleton" {
		t.Errorf("expected default scope singleton, got %q", cfg.DefaultScope)
	}
}

func TestLoadConfigPartialFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `{"runtime_import": "example.com/custom/reactive"}`
	if err := os.WriteFile(filepath.Join(dir, "modelgen.json"), []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RuntimeImport != "example.com/custom/reactive" {
		t.Errorf("explicit value lost: %q", cfg.RuntimeImport)
	}
	if len(cfg.ExcludedDirs) == 0 {
		t.Error("missing fields should fall back to defaults")
	}
	if cfg.DefaultScope != "singleton" {
		t.Errorf("expected default scope, got %q", cfg.DefaultScope)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "modelgen.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected an error for malformed config")
	}
}
