// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type EmailConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	SupportAddress  string `yaml:"support_address"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

// Enabled reports whether SES delivery has everything it needs.
func (e EmailConfig) Enabled() bool {
	return e.AccessKeyID != "" && e.SecretAccessKey != "" && e.Region != "" && e.Sender != ""
}

type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	ClientID  string `yaml:"client_id"`
	Topic     string `yaml:"topic"`
}

func (m MQTTConfig) Enabled() bool {
	return strings.TrimSpace(m.BrokerURL) != ""
}

type SchedulerConfig struct {
	BookingLifecycle string `yaml:"booking_lifecycle"`
	BookingReminders string `yaml:"booking_reminders"`
	Housekeeping     string `yaml:"housekeeping"`
}

type Config struct {
	App struct {
		Name            string `yaml:"name"`
		Environment     string `yaml:"environment"`
		Port            int    `yaml:"port"`
		APIPrefix       string `yaml:"api_prefix"`
		CORSOrigin      string `yaml:"cors_origin"`
		BaseURL         string `yaml:"base_url"`
		UploadsDir      string `yaml:"uploads_dir"`
		ShutdownSeconds int    `yaml:"shutdown_timeout_seconds"`
		TrustProxy      bool   `yaml:"trust_proxy"`
		SecretKey       string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database  DatabaseConfig  `yaml:"database"`
	Email     EmailConfig     `yaml:"email"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	cfg.App.Name = "ChargeEase"
	cfg.App.Environment = EnvDevelopment
	cfg.App.Port = 5000
	cfg.App.APIPrefix = "/api/v1"
	cfg.App.CORSOrigin = "*"
	cfg.App.UploadsDir = "data/uploads"
	cfg.App.ShutdownSeconds = 30
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/chargeease.db"
	cfg.MQTT.ClientID = "chargeease-api"
	cfg.MQTT.Topic = "chargeease/stations/+/connectors"
	cfg.Scheduler.BookingLifecycle = "* * * * *"
	cfg.Scheduler.BookingReminders = "*/15 * * * *"
	cfg.Scheduler.Housekeeping = "0 * * * *"
	return &cfg
}

// Load loads .env, the optional yaml file, and environment overrides, in that order.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Environment-only deployments are fine.
	default:
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv("PORT"); ok && strings.TrimSpace(value) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("PORT must be a number: %w", err)
		}
		c.App.Port = port
	}
	if value, ok := os.LookupEnv("NODE_ENV"); ok && value != "" {
		c.App.Environment = value
	}
	if value, ok := os.LookupEnv("API_PREFIX"); ok && value != "" {
		c.App.APIPrefix = value
	}
	if value, ok := os.LookupEnv("CORS_ORIGIN"); ok && value != "" {
		c.App.CORSOrigin = value
	}
	if value, ok := os.LookupEnv("UPLOADS_DIR"); ok && value != "" {
		c.App.UploadsDir = value
	}
	if value, ok := os.LookupEnv("DATABASE_FILENAME"); ok && value != "" {
		c.Database.Filename = value
	}
	if value, ok := os.LookupEnv("MQTT_BROKER_URL"); ok {
		c.MQTT.BrokerURL = value
	}
	if value, ok := os.LookupEnv("SES_REGION"); ok && value != "" {
		c.Email.Region = value
	}
	if value, ok := os.LookupEnv("SES_SENDER"); ok && value != "" {
		c.Email.Sender = value
	}

	// Secrets only ever come from the environment.
	c.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	c.Email.AccessKeyID = os.Getenv("SES_ACCESS_KEY_ID")
	c.Email.SecretAccessKey = os.Getenv("SES_SECRET_ACCESS_KEY")
	return nil
}

func (c *Config) normalize() {
	prefix := "/" + strings.Trim(strings.TrimSpace(c.App.APIPrefix), "/")
	if prefix == "/" {
		prefix = ""
	}
	c.App.APIPrefix = prefix
	c.App.Environment = strings.ToLower(strings.TrimSpace(c.App.Environment))
	if c.App.BaseURL == "" {
		c.App.BaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app port must be between 1 and 65535")
	}
	if c.App.APIPrefix == "" {
		return fmt.Errorf("api prefix must not be the site root")
	}
	if c.App.Environment == EnvProduction && c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required in production")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}

	for name, expr := range map[string]string{
		"scheduler.booking_lifecycle": c.Scheduler.BookingLifecycle,
		"scheduler.booking_reminders": c.Scheduler.BookingReminders,
		"scheduler.housekeeping":      c.Scheduler.Housekeeping,
	} {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%s: invalid cron expression %q: %w", name, expr, err)
		}
	}

	if c.MQTT.Enabled() && c.MQTT.Topic == "" {
		return fmt.Errorf("mqtt topic is required when a broker is configured")
	}

	return nil
}

// IsProduction reports whether error responses must hide stack traces.
func (c *Config) IsProduction() bool {
	return c != nil && c.App.Environment == EnvProduction
}

// CORSOrigins splits the configured origin list.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.App.CORSOrigin, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
