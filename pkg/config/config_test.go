package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "querybook.yaml")
	data := []byte("collection: library\nexplain: true\nlog:\n  level: debug\ncache:\n  size: 10\n  ttl: 30s\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("QUERYBOOK_LOG_FORMAT", "json")
	t.Setenv("QUERYBOOK_CACHE_SIZE", "20")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Config{
		Collection: "library",
		Explain:    true,
		Log:        LogConfig{Level: "debug", Format: "json"},
		Cache:      CacheConfig{Size: 20, TTL: 30 * time.Second},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist for missing file, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Expected a not found message, got %v", err)
	}

	t.Setenv("QUERYBOOK_LOG_LEVEL", "chatty")
	if _, err := Load(""); err == nil {
		t.Error("Expected error for invalid log level")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty collection": func(c *Config) { c.Collection = "" },
		"bad format":       func(c *Config) { c.Log.Format = "xml" },
		"negative size":    func(c *Config) { c.Cache.Size = -1 },
		"negative ttl":     func(c *Config) { c.Cache.TTL = -time.Second },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Log.Level = "debug"
	clone.Cache.Size = 1

	if cfg.Log.Level != "info" || cfg.Cache.Size != 1000 {
		t.Errorf("Clone shares state with original: %+v", cfg)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Original changed (-want +got):\n%s", diff)
	}
}

func TestDatabaseConfig(t *testing.T) {
	cfg := Default()
	cfg.Cache.Size = 0

	dbCfg := cfg.DatabaseConfig(nil)
	if dbCfg.CacheSize != 0 || dbCfg.CacheTTL != 5*time.Minute {
		t.Errorf("Unexpected database config: %+v", dbCfg)
	}
}
