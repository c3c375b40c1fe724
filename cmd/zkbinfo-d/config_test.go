package main

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		expectError bool
		errorSubstr string
	}{
		{
			name:        "valid sweep interval from flag",
			args:        []string{"-sweep-interval", "1h"},
			expectError: false,
		},
		{
			name:        "zero sweep interval from flag",
			args:        []string{"-sweep-interval", "0s"},
			expectError: true,
			errorSubstr: "sweep-interval must be positive",
		},
		{
			name:        "invalid sweep interval format from flag",
			args:        []string{"-sweep-interval", "invalid"},
			expectError: true,
			errorSubstr: "invalid sweep interval",
		},
		{
			name:        "invalid sweep interval from env",
			envVars:     map[string]string{"ZKBINFO_SWEEP_INTERVAL": "invalid"},
			expectError: true,
			errorSubstr: "invalid ZKBINFO_SWEEP_INTERVAL",
		},
		{
			name:        "zero lookback from flag",
			args:        []string{"-lookback-days", "0"},
			expectError: true,
			errorSubstr: "lookback-days must be positive",
		},
		{
			name:        "negative retention from flag",
			args:        []string{"-retention-days", "-1"},
			expectError: true,
			errorSubstr: "retention-days must be positive",
		},
		{
			name:        "invalid pool size from env",
			envVars:     map[string]string{"ZKBINFO_POOL_SIZE": "big"},
			expectError: true,
			errorSubstr: "invalid ZKBINFO_POOL_SIZE",
		},
		{
			name:        "zero pool size from flag",
			args:        []string{"-pool-size", "0"},
			expectError: true,
			errorSubstr: "pool-size must be positive",
		},
		{
			name:        "empty addr",
			args:        []string{"-addr", "  "},
			expectError: true,
			errorSubstr: "addr cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			_, err := LoadConfig(tt.args)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errorSubstr)
				} else if !strings.Contains(err.Error(), tt.errorSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr != "127.0.0.1:8080" {
		t.Errorf("expected default addr 127.0.0.1:8080, got %s", cfg.Addr)
	}
	if cfg.Lookback != 30*24*time.Hour {
		t.Errorf("expected 30 day lookback, got %v", cfg.Lookback)
	}
	if cfg.Retention != 90*24*time.Hour {
		t.Errorf("expected 90 day retention, got %v", cfg.Retention)
	}
	if cfg.SweepInterval != 48*time.Hour {
		t.Errorf("expected 48h sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.PoolSize != 4 {
		t.Errorf("expected pool size 4, got %d", cfg.PoolSize)
	}
}

func TestLoadConfig_HostPortEnv(t *testing.T) {
	os.Setenv("ZKBINFO_HOST", "0.0.0.0")
	os.Setenv("ZKBINFO_PORT", "9000")
	defer os.Unsetenv("ZKBINFO_HOST")
	defer os.Unsetenv("ZKBINFO_PORT")

	cfg, err := LoadConfig([]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("expected addr 0.0.0.0:9000, got %s", cfg.Addr)
	}
}
