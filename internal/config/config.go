// Package config provides YAML-based configuration loading for Carewire.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Carewire configuration, loaded from carewire.yaml.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Notify    NotifyConfig    `yaml:"notify"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig holds connection settings for the MySQL record store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RedisConfig holds connection settings for the change-feed bridge.
// An empty Addr disables the bridge; the in-process hub still runs.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DashboardConfig holds HTTP API settings.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig holds care-team notification settings. Adapters with
// empty tokens are not started.
type NotifyConfig struct {
	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// ReminderConfig controls the appointment reminder sweep.
type ReminderConfig struct {
	Schedule    string `yaml:"schedule"`     // 5-field cron expression
	LeadMinutes int    `yaml:"lead_minutes"` // how far ahead to remind
}

// LogConfig controls service logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment
// variables override file values so secrets can stay out of the file.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides fields from CW_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("CW_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("CW_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Database.Port = p
		}
	}
	if v := os.Getenv("CW_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("CW_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("CW_DB_NAME"); v != "" {
		c.Database.Database = v
	}
	if v := os.Getenv("CW_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CW_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CW_SLACK_BOT_TOKEN"); v != "" {
		c.Notify.SlackBotToken = v
	}
	if v := os.Getenv("CW_DISCORD_TOKEN"); v != "" {
		c.Notify.DiscordToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "carewire"
	}
	if c.Database.Database == "" {
		c.Database.Database = "carewire"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Reminders.Schedule == "" {
		c.Reminders.Schedule = "*/15 * * * *"
	}
	if c.Reminders.LeadMinutes == 0 {
		c.Reminders.LeadMinutes = 60
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not json or console", c.Log.Format))
	}
	if c.Notify.SlackBotToken != "" && c.Notify.SlackChannel == "" {
		errs = append(errs, "notify.slack_channel is required when slack_bot_token is set")
	}
	if c.Notify.DiscordToken != "" && c.Notify.DiscordChannel == "" {
		errs = append(errs, "notify.discord_channel is required when discord_token is set")
	}
	if c.Reminders.LeadMinutes < 0 {
		errs = append(errs, "reminders.lead_minutes must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
