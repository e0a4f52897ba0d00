package main

import (
	"fmt"

	"github.com/kestrane/milepost/internal/models"
	"github.com/kestrane/milepost/internal/workflow"
	"github.com/spf13/cobra"
)

func newMilestoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "milestone",
		Short: "Drive milestones through their lifecycle",
	}

	cmd.AddCommand(newMilestoneStartCmd())
	cmd.AddCommand(newMilestoneRequestApprovalCmd())
	cmd.AddCommand(newMilestoneApproveCmd())
	cmd.AddCommand(newMilestoneRejectCmd())
	cmd.AddCommand(newMilestoneResumeCmd())
	return cmd
}

// milestoneAction builds one lifecycle subcommand; they differ only in
// which Coordinator method runs.
func milestoneAction(use, short string, run func(co *workflow.Coordinator, actor, id, feedback string) (*models.Milestone, error)) *cobra.Command {
	var (
		configPath string
		actor      string
		feedback   string
	)

	cmd := &cobra.Command{
		Use:   use + " <milestone-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, gormDB, err := openStore(configPath)
			if err != nil {
				return err
			}
			co, err := newCoordinator(cfg, gormDB)
			if err != nil {
				return err
			}

			m, err := run(co, actor, args[0], feedback)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Milestone %s (%s) is now %s\n", m.ID, m.Title, m.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	cmd.Flags().StringVarP(&actor, "actor", "a", "", "acting party ID (required)")
	cmd.Flags().StringVarP(&feedback, "feedback", "m", "", "feedback message")
	cmd.MarkFlagRequired("actor")
	return cmd
}

func newMilestoneStartCmd() *cobra.Command {
	return milestoneAction("start", "Begin work on a pending milestone",
		func(co *workflow.Coordinator, actor, id, _ string) (*models.Milestone, error) {
			return co.Start(actor, id)
		})
}

func newMilestoneRequestApprovalCmd() *cobra.Command {
	return milestoneAction("request-approval", "Mark a milestone completed and ask for review",
		func(co *workflow.Coordinator, actor, id, _ string) (*models.Milestone, error) {
			return co.RequestApproval(actor, id)
		})
}

func newMilestoneRejectCmd() *cobra.Command {
	return milestoneAction("reject", "Send a completed milestone back for rework",
		func(co *workflow.Coordinator, actor, id, feedback string) (*models.Milestone, error) {
			return co.Reject(actor, id, feedback)
		})
}

func newMilestoneResumeCmd() *cobra.Command {
	return milestoneAction("resume", "Resume work on a rejected milestone",
		func(co *workflow.Coordinator, actor, id, _ string) (*models.Milestone, error) {
			return co.Resume(actor, id)
		})
}

func newMilestoneApproveCmd() *cobra.Command {
	var (
		configPath string
		actor      string
		feedback   string
	)

	cmd := &cobra.Command{
		Use:   "approve <milestone-id>",
		Short: "Approve a completed milestone and release its funds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMilestoneApprove(cmd, configPath, actor, args[0], feedback)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	cmd.Flags().StringVarP(&actor, "actor", "a", "", "acting employer ID (required)")
	cmd.Flags().StringVarP(&feedback, "feedback", "m", "", "feedback message")
	cmd.MarkFlagRequired("actor")
	return cmd
}

func runMilestoneApprove(cmd *cobra.Command, configPath, actor, milestoneID, feedback string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	res, err := co.Approve(actor, milestoneID, feedback)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Approved milestone %s (%s)\n", res.Milestone.ID, res.Milestone.Title)
	fmt.Fprintf(out, "  Released: %s\n", models.FormatCents(cfg.Currency, res.Milestone.AmountCents))
	fmt.Fprintf(out, "  Total released: %s\n", models.FormatCents(cfg.Currency, res.Ledger.ReleasedCents))
	fmt.Fprintf(out, "  In escrow: %s\n", models.FormatCents(cfg.Currency, res.Ledger.BalanceCents))
	return nil
}
