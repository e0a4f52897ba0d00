// Package config provides YAML-based configuration loading for Milepost.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Milepost configuration, loaded from milepost.yaml.
type Config struct {
	Marketplace string          `yaml:"marketplace"`
	Currency    string          `yaml:"currency"`
	DB          DBConfig        `yaml:"db"`
	HTTP        HTTPConfig      `yaml:"http"`
	Alerts      AlertsConfig    `yaml:"alerts"`
	Reminders   RemindersConfig `yaml:"reminders"`
}

// DBConfig holds connection settings for the milestone store.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "mysql" or "sqlite"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite file path
}

// HTTPConfig holds settings for the JSON API server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// AlertsConfig wires operator notification channels. Both sections are
// optional; with neither configured, alerts go to the process log.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack delivery settings.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// DiscordConfig holds Discord delivery settings.
type DiscordConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// RemindersConfig controls the due-date reminder sweep.
type RemindersConfig struct {
	Cron       string `yaml:"cron"`        // 5-field cron expression
	WindowDays int    `yaml:"window_days"` // how far ahead to look
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" && c.Marketplace != "" {
		c.DB.Database = "milepost_" + c.Marketplace
	}
	if c.DB.Path == "" && c.Marketplace != "" {
		c.DB.Path = "milepost_" + c.Marketplace + ".db"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Reminders.Cron == "" {
		c.Reminders.Cron = "0 9 * * *"
	}
	if c.Reminders.WindowDays == 0 {
		c.Reminders.WindowDays = 3
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Marketplace == "" {
		errs = append(errs, "marketplace is required")
	}
	if c.DB.Driver != "mysql" && c.DB.Driver != "sqlite" {
		errs = append(errs, fmt.Sprintf("db.driver %q must be mysql or sqlite", c.DB.Driver))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Sprintf("currency %q must be a 3-letter code", c.Currency))
	}
	if c.Reminders.WindowDays < 0 {
		errs = append(errs, "reminders.window_days must not be negative")
	}
	if c.Alerts.Slack.BotToken != "" && c.Alerts.Slack.Channel == "" {
		errs = append(errs, "alerts.slack.channel is required when a token is set")
	}
	if c.Alerts.Discord.BotToken != "" && c.Alerts.Discord.Channel == "" {
		errs = append(errs, "alerts.discord.channel is required when a token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
