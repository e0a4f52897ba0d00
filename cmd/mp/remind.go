package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrane/milepost/internal/remind"
	"github.com/spf13/cobra"
)

func newRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Due-date reminder commands",
	}

	cmd.AddCommand(newRemindSweepCmd())
	return cmd
}

func newRemindSweepCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reminder sweep and exit",
		Long:  "Notifies about milestones overdue or due within the configured window.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemindSweep(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runRemindSweep(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	sweeper := remind.New(gormDB, notifier, cfg.Reminders.WindowDays)
	n, err := sweeper.Sweep(context.Background(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Sent %d reminder(s)\n", n)
	return nil
}
