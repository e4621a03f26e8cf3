package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// HTTPConfig holds settings for the inbound webhook/API server.
type HTTPConfig struct {
	Listen string `yaml:"listen" envconfig:"HTTP_LISTEN"`
	// ShutdownTimeoutSeconds bounds graceful shutdown; 0 -> default (10s).
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" envconfig:"HTTP_SHUTDOWN_TIMEOUT_SECONDS"`
}

// TelegramConfig holds Telegram transport settings.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"TELEGRAM_ENABLED"`
	Token   string `yaml:"token" envconfig:"TELEGRAM_BOT_TOKEN"`
}

// TwilioConfig holds Twilio WhatsApp transport settings.
type TwilioConfig struct {
	Enabled    bool   `yaml:"enabled" envconfig:"TWILIO_ENABLED"`
	AccountSID string `yaml:"account_sid" envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `yaml:"auth_token" envconfig:"TWILIO_AUTH_TOKEN"`
	FromNumber string `yaml:"from_number" envconfig:"TWILIO_PHONE_NUMBER"`
}

const (
	// StrategyMulti keeps many records per user and answers against the most
	// recent non-completed one.
	StrategyMulti = "multi"
	// StrategySingle keeps exactly one record per user regardless of status.
	StrategySingle = "single"
)

// PromptsConfig carries the survey script texts. Empty fields fall back to defaults.
type PromptsConfig struct {
	Consent    string `yaml:"consent" envconfig:"SURVEY_CONSENT"`
	Question1  string `yaml:"question1" envconfig:"SURVEY_QUESTION1"`
	Question2  string `yaml:"question2" envconfig:"SURVEY_QUESTION2"`
	Thanks     string `yaml:"thanks" envconfig:"SURVEY_THANKS"`
	Completed  string `yaml:"completed" envconfig:"SURVEY_COMPLETED"`
	HowToStart string `yaml:"how_to_start" envconfig:"SURVEY_HOW_TO_START"`
}

// SurveyConfig selects the store strategy and conversation entry behaviour.
type SurveyConfig struct {
	Strategy string `yaml:"strategy" envconfig:"SURVEY_STRATEGY"`
	// StartCommand, when non-empty, forces a fresh survey on exact match (e.g. "/start").
	StartCommand string `yaml:"start_command" envconfig:"SURVEY_START_COMMAND"`
	// AutoStart begins a survey on first contact instead of requiring a start command.
	AutoStart bool          `yaml:"auto_start" envconfig:"SURVEY_AUTO_START"`
	Prompts   PromptsConfig `yaml:"prompts"`
}

// RateLimitConfig holds per-sender webhook rate limiting settings.
// RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" envconfig:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" envconfig:"RATE_LIMIT_BURST"`
}

// KeepWarmConfig configures the optional self-ping loop. Empty URL disables it.
type KeepWarmConfig struct {
	URL             string `yaml:"url" envconfig:"KEEPWARM_URL"`
	IntervalSeconds int    `yaml:"interval_seconds" envconfig:"KEEPWARM_INTERVAL_SECONDS"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	File        string `yaml:"file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// Config aggregates the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	Database  DatabaseConfig  `yaml:"database"`
	Survey    SurveyConfig    `yaml:"survey"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	KeepWarm  KeepWarmConfig  `yaml:"keepwarm"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required configuration fields and adjusts defaults.
// Missing credentials for an enabled transport abort startup.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if cfg.HTTP.ShutdownTimeoutSeconds < 0 {
		return fmt.Errorf("http.shutdown_timeout_seconds must be >= 0")
	}

	if !cfg.Telegram.Enabled && !cfg.Twilio.Enabled {
		return fmt.Errorf("at least one transport must be enabled (telegram or twilio)")
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required when telegram.enabled is true")
	}
	if cfg.Twilio.Enabled {
		if strings.TrimSpace(cfg.Twilio.AccountSID) == "" ||
			strings.TrimSpace(cfg.Twilio.AuthToken) == "" ||
			strings.TrimSpace(cfg.Twilio.FromNumber) == "" {
			return fmt.Errorf("twilio.account_sid, twilio.auth_token and twilio.from_number are required when twilio.enabled is true")
		}
	}

	if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.host and database.name are required")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}

	st := strings.ToLower(strings.TrimSpace(cfg.Survey.Strategy))
	if st == "" {
		st = StrategyMulti
	}
	switch st {
	case StrategyMulti, StrategySingle:
	default:
		return fmt.Errorf("invalid survey.strategy %q; allowed: multi, single", cfg.Survey.Strategy)
	}
	cfg.Survey.Strategy = st

	cfg.Survey.StartCommand = strings.TrimSpace(cfg.Survey.StartCommand)
	if cfg.Survey.StartCommand == "" && !cfg.Survey.AutoStart {
		// Without a start command the only way into a survey is auto-start.
		cfg.Survey.AutoStart = true
	}

	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}

	if cfg.KeepWarm.URL != "" && cfg.KeepWarm.IntervalSeconds <= 0 {
		cfg.KeepWarm.IntervalSeconds = int((10 * time.Minute).Seconds())
	}

	return nil
}

// ShutdownTimeout returns the configured graceful shutdown bound.
func (h HTTPConfig) ShutdownTimeout() time.Duration {
	if h.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.ShutdownTimeoutSeconds) * time.Second
}

// Interval returns the keep-warm period.
func (k KeepWarmConfig) Interval() time.Duration {
	if k.IntervalSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(k.IntervalSeconds) * time.Second
}
