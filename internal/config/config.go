// Package config loads the unban tool configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// UNBAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/guild-unban/pkg/client"
	"github.com/Sternrassler/guild-unban/pkg/logging"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"gopkg.in/yaml.v3"
)

// PathEnv names the environment variable holding the YAML config path.
const PathEnv = "UNBAN_CONFIG"

// DefaultTokenFile is where the bot token is persisted between runs.
const DefaultTokenFile = "token.txt"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// DiscordConfig configures the REST client.
type DiscordConfig struct {
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	UserAgent      string        `yaml:"user_agent" env:"USER_AGENT"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries     int           `yaml:"max_retries" env:"MAX_RETRIES"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"INITIAL_BACKOFF"`
	AuditLogReason string        `yaml:"audit_log_reason" env:"AUDIT_LOG_REASON"`
}

// RedisConfig configures the shared rate-limit store. An empty URL keeps
// rate-limit state in memory.
type RedisConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Pretty bool   `yaml:"pretty" env:"PRETTY"`
	File   string `yaml:"file" env:"FILE"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

// Config is the complete tool configuration.
type Config struct {
	// TokenFile holds the bot token; it is created on first run.
	TokenFile string `yaml:"token_file" env:"UNBAN_TOKEN_FILE"`

	// Token bypasses the token file when set.
	Token string `yaml:"token" env:"UNBAN_TOKEN"`

	// GuildID and Count are prompted for when empty/zero.
	GuildID string `yaml:"guild_id" env:"UNBAN_GUILD_ID"`
	Count   int    `yaml:"count" env:"UNBAN_COUNT"`

	// OutputDir receives the audit report files.
	OutputDir string `yaml:"output_dir" env:"UNBAN_OUTPUT_DIR"`

	Discord DiscordConfig `yaml:"discord" envPrefix:"UNBAN_DISCORD_"`
	Redis   RedisConfig   `yaml:"redis" envPrefix:"UNBAN_REDIS_"`
	Log     LogConfig     `yaml:"log" envPrefix:"UNBAN_LOG_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"UNBAN_METRICS_"`
}

// Default returns the built-in configuration.
func Default() Config {
	clientDefaults := client.DefaultConfig("")
	return Config{
		TokenFile: DefaultTokenFile,
		OutputDir: ".",
		Discord: DiscordConfig{
			BaseURL:        clientDefaults.BaseURL,
			UserAgent:      clientDefaults.UserAgent,
			Timeout:        clientDefaults.Timeout,
			MaxRetries:     clientDefaults.MaxRetries,
			InitialBackoff: clientDefaults.InitialBackoff,
			AuditLogReason: "Bulk unban",
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. GuildID and Count may be left unset.
func (c Config) Validate() error {
	if c.Token == "" && c.TokenFile == "" {
		return fmt.Errorf("%w: token or token_file is required", ErrInvalid)
	}
	if c.GuildID != "" {
		if _, err := snowflake.Parse(c.GuildID); err != nil {
			return fmt.Errorf("%w: guild_id %q is not a snowflake", ErrInvalid, c.GuildID)
		}
	}
	if c.Count < 0 {
		return fmt.Errorf("%w: count must be positive, got %d", ErrInvalid, c.Count)
	}
	if c.Discord.BaseURL == "" {
		return fmt.Errorf("%w: discord.base_url is required", ErrInvalid)
	}
	if c.Discord.Timeout <= 0 {
		return fmt.Errorf("%w: discord.timeout must be positive", ErrInvalid)
	}
	if c.Discord.MaxRetries < 0 {
		return fmt.Errorf("%w: discord.max_retries must be >= 0", ErrInvalid)
	}
	if c.Discord.InitialBackoff <= 0 {
		return fmt.Errorf("%w: discord.initial_backoff must be positive", ErrInvalid)
	}
	if !logging.ValidLevel(logging.LogLevel(c.Log.Level)) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// Guild returns the configured guild ID, if any.
func (c Config) Guild() (snowflake.ID, bool) {
	if c.GuildID == "" {
		return 0, false
	}
	id, err := snowflake.Parse(c.GuildID)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ClientConfig converts the Discord section into a client configuration.
func (c Config) ClientConfig(token string) client.Config {
	cfg := client.DefaultConfig(token)
	cfg.BaseURL = c.Discord.BaseURL
	cfg.UserAgent = c.Discord.UserAgent
	cfg.Timeout = c.Discord.Timeout
	cfg.MaxRetries = c.Discord.MaxRetries
	cfg.InitialBackoff = c.Discord.InitialBackoff
	cfg.AuditLogReason = c.Discord.AuditLogReason
	return cfg
}

// LoggingConfig converts the log section into a logging configuration.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.File.Path = c.Log.File
	return cfg
}
