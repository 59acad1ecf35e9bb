package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Voice     VoiceConfig     `yaml:"voice"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// AuthConfig holds the API key for machine clients (MCP) and the login used
// for every request when Tailscale is off.
type AuthConfig struct {
	APIKey   string `yaml:"api_key"`
	DevLogin string `yaml:"dev_login"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// VoiceConfig tunes the voice command driver.
type VoiceConfig struct {
	Enabled bool `yaml:"enabled"`
	// SilenceTimeout ends an utterance when the transcript stops growing.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`
	// PhoneticTriggers enables sound-alike trigger matching when no exact
	// trigger phrase is found.
	PhoneticTriggers  bool    `yaml:"phonetic_triggers"`
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// OutboxConfig places the local queue for workout logs the database
// refused. Queued logs are retried every RetryInterval.
type OutboxConfig struct {
	Dir           string        `yaml:"dir"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

func defaults() *Config {
	return &Config{
		Auth:      AuthConfig{DevLogin: "dev@localhost"},
		Tailscale: TailscaleConfig{Hostname: "heytrainer", StateDir: "tsnet-state"},
		Voice: VoiceConfig{
			Enabled:           true,
			SilenceTimeout:    3 * time.Second,
			PhoneticThreshold: 0.85,
		},
		Outbox:  OutboxConfig{Dir: "data", RetryInterval: time.Minute},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. Env vars use the prefix HEYTRAINER_:
//
//	HEYTRAINER_SERVER_HOST, HEYTRAINER_SERVER_PORT,
//	HEYTRAINER_DB_HOST, HEYTRAINER_DB_PORT, HEYTRAINER_DB_NAME,
//	HEYTRAINER_DB_USER, HEYTRAINER_DB_PASSWORD, HEYTRAINER_DB_SSLMODE,
//	HEYTRAINER_AUTH_API_KEY, HEYTRAINER_AUTH_DEV_LOGIN,
//	HEYTRAINER_TAILSCALE_ENABLED, HEYTRAINER_TAILSCALE_HOSTNAME,
//	HEYTRAINER_VOICE_ENABLED, HEYTRAINER_VOICE_SILENCE_TIMEOUT,
//	HEYTRAINER_VOICE_PHONETIC_TRIGGERS, HEYTRAINER_OUTBOX_DIR
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("HEYTRAINER_SERVER_HOST", &cfg.Server.Host)
	envInt("HEYTRAINER_SERVER_PORT", &cfg.Server.Port)
	envString("HEYTRAINER_DB_HOST", &cfg.Database.Host)
	envInt("HEYTRAINER_DB_PORT", &cfg.Database.Port)
	envString("HEYTRAINER_DB_NAME", &cfg.Database.Name)
	envString("HEYTRAINER_DB_USER", &cfg.Database.User)
	envString("HEYTRAINER_DB_PASSWORD", &cfg.Database.Password)
	envString("HEYTRAINER_DB_SSLMODE", &cfg.Database.SSLMode)
	envString("HEYTRAINER_AUTH_API_KEY", &cfg.Auth.APIKey)
	envString("HEYTRAINER_AUTH_DEV_LOGIN", &cfg.Auth.DevLogin)
	envBool("HEYTRAINER_TAILSCALE_ENABLED", &cfg.Tailscale.Enabled)
	envString("HEYTRAINER_TAILSCALE_HOSTNAME", &cfg.Tailscale.Hostname)
	envBool("HEYTRAINER_VOICE_ENABLED", &cfg.Voice.Enabled)
	if v := os.Getenv("HEYTRAINER_VOICE_SILENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Voice.SilenceTimeout = d
		}
	}
	envBool("HEYTRAINER_VOICE_PHONETIC_TRIGGERS", &cfg.Voice.PhoneticTriggers)
	envString("HEYTRAINER_OUTBOX_DIR", &cfg.Outbox.Dir)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Voice.SilenceTimeout < 0 {
		return fmt.Errorf("voice.silence_timeout must not be negative")
	}
	if c.Voice.PhoneticThreshold <= 0 || c.Voice.PhoneticThreshold > 1 {
		return fmt.Errorf("voice.phonetic_threshold must be in (0, 1]")
	}
	if c.Outbox.Dir == "" {
		return fmt.Errorf("outbox.dir is required")
	}
	if c.Outbox.RetryInterval <= 0 {
		return fmt.Errorf("outbox.retry_interval must be positive")
	}
	return nil
}
