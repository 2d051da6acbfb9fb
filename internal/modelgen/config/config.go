package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config represents the configuration for a modelgen run.
// It controls directory exclusion, the runtime import path compiled into
// generated code, and persistence settings.
type Config struct {
	ExcludedDirs  []string `json:"excluded_dirs"`  // Directory names to exclude from discovery.
	RuntimeImport string   `json:"runtime_import"` // Import path of the reactive runtime package.
	CacheDir      string   `json:"cache_dir"`      // Directory path for the SQLite pass cache.
	DefaultScope  string   `json:"default_scope"`  // Lifetime applied to models without a scope argument.
}

// DefaultConfig provides a standard configuration used when no config file is found.
var DefaultConfig = Config{
	ExcludedDirs:  []string{"node_modules", "dist", "build", ".git", "vendor", "testdata"},
	RuntimeImport: "github.com/reactiveui/modelgen/reactive",
	CacheDir:      ".modelgen",
	DefaultScope:  "singleton",
}

// LoadConfig reads and parses the `modelgen.json` configuration file from the
// specified root directory. If the file does not exist the defaults are
// returned; a file that exists but cannot be parsed is an error. Missing
// fields fall back to defaults.
func LoadConfig(rootDir string) (*Config, error) {
	path := filepath.Join(rootDir, "modelgen.json")
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig
			return &cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	// Apply defaults if empty
	if len(cfg.ExcludedDirs) == 0 {
		cfg.ExcludedDirs = DefaultConfig.ExcludedDirs
	}
	if cfg.RuntimeImport == "" {
		cfg.RuntimeImport = DefaultConfig.RuntimeImport
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultConfig.CacheDir
	}
	if cfg.DefaultScope == "" {
		cfg.DefaultScope = DefaultConfig.DefaultScope
	}

	return &cfg, nil
}
