package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unban.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenFile != DefaultTokenFile {
		t.Errorf("TokenFile = %q, want %q", cfg.TokenFile, DefaultTokenFile)
	}
	if cfg.Discord.BaseURL != "https://discord.com/api/v10" {
		t.Errorf("BaseURL = %q", cfg.Discord.BaseURL)
	}
	if cfg.Discord.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Discord.MaxRetries)
	}
	if _, ok := cfg.Guild(); ok {
		t.Error("Guild() should be unset by default")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
guild_id: "123456789012345678"
count: 1500
output_dir: reports
discord:
  timeout: 10s
  max_retries: 5
redis:
  url: redis://localhost:6379/0
log:
  level: debug
`)

	t.Setenv("UNBAN_COUNT", "20")
	t.Setenv("UNBAN_DISCORD_INITIAL_BACKOFF", "250ms")
	t.Setenv("UNBAN_METRICS_ADDR", ":9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{name: "count from env", got: cfg.Count, want: 20},
		{name: "output dir from file", got: cfg.OutputDir, want: "reports"},
		{name: "timeout from file", got: cfg.Discord.Timeout, want: 10 * time.Second},
		{name: "retries from file", got: cfg.Discord.MaxRetries, want: 5},
		{name: "backoff from env", got: cfg.Discord.InitialBackoff, want: 250 * time.Millisecond},
		{name: "redis from file", got: cfg.Redis.URL, want: "redis://localhost:6379/0"},
		{name: "metrics from env", got: cfg.Metrics.Addr, want: ":9090"},
		{name: "log level from file", got: cfg.Log.Level, want: "debug"},
		{name: "untouched default", got: cfg.TokenFile, want: DefaultTokenFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	id, ok := cfg.Guild()
	if !ok || id != 123456789012345678 {
		t.Errorf("Guild() = %d, %v", id, ok)
	}

	clientCfg := cfg.ClientConfig("secret")
	if clientCfg.Token != "secret" || clientCfg.Timeout != 10*time.Second || clientCfg.MaxRetries != 5 {
		t.Errorf("ClientConfig() = %+v", clientCfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "count: [1, 2\n")
		if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config file") {
			t.Errorf("Load() error = %v, want parse error", err)
		}
	})

	t.Run("malformed env", func(t *testing.T) {
		t.Setenv("UNBAN_COUNT", "many")
		if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "parse env:") {
			t.Errorf("Load() error = %v, want env parse error", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "no token source", modify: func(c *Config) { c.TokenFile = ""; c.Token = "" }},
		{name: "bad guild id", modify: func(c *Config) { c.GuildID = "guild" }},
		{name: "negative count", modify: func(c *Config) { c.Count = -1 }},
		{name: "empty base url", modify: func(c *Config) { c.Discord.BaseURL = "" }},
		{name: "zero timeout", modify: func(c *Config) { c.Discord.Timeout = 0 }},
		{name: "negative retries", modify: func(c *Config) { c.Discord.MaxRetries = -1 }},
		{name: "zero backoff", modify: func(c *Config) { c.Discord.InitialBackoff = 0 }},
		{name: "unknown log level", modify: func(c *Config) { c.Log.Level = "loud" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}
