package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
database:
  host: 10.0.0.5
  port: 3307
  user: clinic
  password: hunter2
  database: carewire_prod

redis:
  addr: 10.0.0.9:6379
  db: 2

dashboard:
  port: 9090

notify:
  slack_bot_token: xoxb-test
  slack_channel: C012CARETEAM

reminders:
  schedule: "0 * * * *"
  lead_minutes: 30

log:
  level: debug
  format: console
`

const minimalYAML = `
database:
  password: secret
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Database.Database != "carewire_prod" {
		t.Errorf("Database.Database = %q, want %q", cfg.Database.Database, "carewire_prod")
	}
	if cfg.Redis.Addr != "10.0.0.9:6379" {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Redis.Addr, "10.0.0.9:6379")
	}
	if cfg.Redis.DB != 2 {
		t.Errorf("Redis.DB = %d, want 2", cfg.Redis.DB)
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("Dashboard.Port = %d, want 9090", cfg.Dashboard.Port)
	}
	if cfg.Notify.SlackChannel != "C012CARETEAM" {
		t.Errorf("Notify.SlackChannel = %q, want C012CARETEAM", cfg.Notify.SlackChannel)
	}
	if cfg.Reminders.Schedule != "0 * * * *" {
		t.Errorf("Reminders.Schedule = %q, want %q", cfg.Reminders.Schedule, "0 * * * *")
	}
	if cfg.Reminders.LeadMinutes != 30 {
		t.Errorf("Reminders.LeadMinutes = %d, want 30", cfg.Reminders.LeadMinutes)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "console" {
		t.Errorf("Log.Format = %q, want console", cfg.Log.Format)
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want %q (default)", cfg.Database.Host, "127.0.0.1")
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want %d (default)", cfg.Database.Port, 3306)
	}
	if cfg.Database.User != "carewire" {
		t.Errorf("Database.User = %q, want %q (default)", cfg.Database.User, "carewire")
	}
	if cfg.Database.Database != "carewire" {
		t.Errorf("Database.Database = %q, want %q (default)", cfg.Database.Database, "carewire")
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("Dashboard.Port = %d, want %d (default)", cfg.Dashboard.Port, 8080)
	}
	if cfg.Reminders.Schedule != "*/15 * * * *" {
		t.Errorf("Reminders.Schedule = %q, want %q (default)", cfg.Reminders.Schedule, "*/15 * * * *")
	}
	if cfg.Reminders.LeadMinutes != 60 {
		t.Errorf("Reminders.LeadMinutes = %d, want 60 (default)", cfg.Reminders.LeadMinutes)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info (default)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json (default)", cfg.Log.Format)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Redis.Addr = %q, want empty (bridge disabled)", cfg.Redis.Addr)
	}
}

func TestParse_InvalidLogLevel(t *testing.T) {
	yaml := `
log:
  level: verbose
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error = %q, want to mention log.level", err.Error())
	}
}

func TestParse_InvalidLogFormat(t *testing.T) {
	yaml := `
log:
  format: xml
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log format")
	}
	if !strings.Contains(err.Error(), "log.format") {
		t.Errorf("error = %q, want to mention log.format", err.Error())
	}
}

func TestParse_SlackTokenWithoutChannel(t *testing.T) {
	yaml := `
notify:
  slack_bot_token: xoxb-test
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for slack token without channel")
	}
	if !strings.Contains(err.Error(), "notify.slack_channel is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "notify.slack_channel is required")
	}
}

func TestParse_DiscordTokenWithoutChannel(t *testing.T) {
	yaml := `
notify:
  discord_token: Bot.abc
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for discord token without channel")
	}
	if !strings.Contains(err.Error(), "notify.discord_channel is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "notify.discord_channel is required")
	}
}

func TestParse_NegativeLeadMinutes(t *testing.T) {
	yaml := `
reminders:
  lead_minutes: -5
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for negative lead_minutes")
	}
	if !strings.Contains(err.Error(), "lead_minutes") {
		t.Errorf("error = %q, want to mention lead_minutes", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("CW_DB_PASSWORD", "from-env")
	t.Setenv("CW_DB_PORT", "3310")
	t.Setenv("CW_REDIS_ADDR", "envhost:6379")

	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("Database.Password = %q, want from-env", cfg.Database.Password)
	}
	if cfg.Database.Port != 3310 {
		t.Errorf("Database.Port = %d, want 3310 (env override)", cfg.Database.Port)
	}
	if cfg.Redis.Addr != "envhost:6379" {
		t.Errorf("Redis.Addr = %q, want envhost:6379 (env override)", cfg.Redis.Addr)
	}
}

func TestParse_EnvBadPortIgnored(t *testing.T) {
	t.Setenv("CW_DB_PORT", "not-a-number")

	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want 3307 (bad env ignored)", cfg.Database.Port)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "carewire.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Password != "secret" {
		t.Errorf("Database.Password = %q, want secret", cfg.Database.Password)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/carewire.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}
