package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:            "8080",
		SnapshotBackend: "memory",
		SnapshotDir:     "./data",
		SQLiteDBPath:    "./data/chartscope.db",
		DefaultCountry:  "Global",
		CacheSize:       256,
		CacheTTL:        10 * time.Minute,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid memory backend config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid sqlite backend config",
			mutate: func(c *Config) {
				c.SnapshotBackend = "sqlite"
			},
		},
		{
			name: "valid sheets backend config",
			mutate: func(c *Config) {
				c.SnapshotBackend = "sheets"
				c.GoogleSpreadsheetID = "sheet-id"
			},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid snapshot backend",
			mutate:      func(c *Config) { c.SnapshotBackend = "parquet" },
			wantErr:     true,
			errorString: "invalid snapshot backend 'parquet'",
		},
		{
			name:        "memory backend without snapshot dir",
			mutate:      func(c *Config) { c.SnapshotDir = "" },
			wantErr:     true,
			errorString: "snapshot directory cannot be empty",
		},
		{
			name: "sqlite backend without db path",
			mutate: func(c *Config) {
				c.SnapshotBackend = "sqlite"
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name: "sheets backend without spreadsheet id",
			mutate: func(c *Config) {
				c.SnapshotBackend = "sheets"
			},
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required",
		},
		{
			name:        "cache size too small",
			mutate:      func(c *Config) { c.CacheSize = 0 },
			wantErr:     true,
			errorString: "invalid cache size 0",
		},
		{
			name:        "cache TTL too small",
			mutate:      func(c *Config) { c.CacheTTL = 10 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid cache TTL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.errorString)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.SnapshotBackend = "parquet"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"invalid port", "invalid snapshot backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.SnapshotBackend != "memory" {
		t.Errorf("SnapshotBackend = %s, want memory", cfg.SnapshotBackend)
	}
	if cfg.DefaultCountry != "Global" {
		t.Errorf("DefaultCountry = %s, want Global", cfg.DefaultCountry)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
