package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/kestrane/milepost/internal/models"
	"github.com/spf13/cobra"
)

func newLedgerCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ledger <job-id>",
		Short: "Show a job's escrow ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLedger(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runLedger(cmd *cobra.Command, configPath, jobID string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	snap, err := co.Ledger(jobID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Escrow ledger for job %s\n", jobID)
	fmt.Fprintf(out, "  Budget:   %s\n", models.FormatCents(cfg.Currency, snap.TotalBudgetCents))
	fmt.Fprintf(out, "  Released: %s\n", models.FormatCents(cfg.Currency, snap.ReleasedCents))
	fmt.Fprintf(out, "  Balance:  %s\n", models.FormatCents(cfg.Currency, snap.BalanceCents))
	return nil
}

func newEventsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "events <job-id>",
		Short: "Show a job's escrow audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runEvents(cmd *cobra.Command, configPath, jobID string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	evs, err := co.Events(jobID)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		fmt.Fprintf(out, "No events for job %s.\n", jobID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tACTION\tACTOR\tMILESTONE\tAMOUNT\tFEEDBACK")
	for _, ev := range evs {
		amount := "-"
		if ev.AmountCents != 0 {
			amount = models.FormatCents(cfg.Currency, ev.AmountCents)
		}
		milestone := ev.MilestoneID
		if milestone == "" {
			milestone = "-"
		}
		feedback := ev.Feedback
		if feedback == "" {
			feedback = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Action, ev.ActorID, milestone, amount, feedback)
	}
	return w.Flush()
}
