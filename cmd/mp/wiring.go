package main

import (
	"fmt"

	"github.com/kestrane/milepost/internal/alert"
	"github.com/kestrane/milepost/internal/config"
	"github.com/kestrane/milepost/internal/db"
	"github.com/kestrane/milepost/internal/workflow"
	"gorm.io/gorm"
)

// openStore loads the config and connects to its milestone store.
func openStore(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// newCoordinator builds a Coordinator wired with the configured notifiers.
func newCoordinator(cfg *config.Config, gormDB *gorm.DB) (*workflow.Coordinator, error) {
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, err
	}
	return workflow.New(gormDB, workflow.Opts{Notifier: notifier}), nil
}

// buildNotifier assembles the alert fan-out from config. With no channels
// configured, alerts fall back to the process log.
func buildNotifier(cfg *config.Config) (alert.Notifier, error) {
	var targets alert.Multi

	if cfg.Alerts.Slack.BotToken != "" {
		s, err := alert.NewSlack(alert.SlackOpts{
			BotToken:  cfg.Alerts.Slack.BotToken,
			ChannelID: cfg.Alerts.Slack.Channel,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, s)
	}

	if cfg.Alerts.Discord.BotToken != "" {
		d, err := alert.NewDiscord(alert.DiscordOpts{
			BotToken:  cfg.Alerts.Discord.BotToken,
			ChannelID: cfg.Alerts.Discord.Channel,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, d)
	}

	if len(targets) == 0 {
		return alert.Log{}, nil
	}
	return targets, nil
}
