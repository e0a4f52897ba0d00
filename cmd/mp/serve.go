package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kestrane/milepost/internal/api"
	"github.com/kestrane/milepost/internal/remind"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Milepost API server",
		Long:  "Launches the JSON API plus the due-date reminder sweep on its cron schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.HTTP.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	// Reminder sweep runs alongside the API until shutdown.
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	sweeper := remind.New(gormDB, notifier, cfg.Reminders.WindowDays)
	go func() {
		if err := sweeper.Run(ctx, cfg.Reminders.Cron); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "reminder sweep stopped: %v\n", err)
		}
	}()

	return api.Start(ctx, api.StartOpts{
		Coordinator: co,
		Port:        port,
		Out:         cmd.OutOrStdout(),
	})
}
