package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kestrane/milepost/internal/models"
	"github.com/kestrane/milepost/internal/plan"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage milestone plans",
	}

	cmd.AddCommand(newPlanCreateCmd())
	cmd.AddCommand(newPlanShowCmd())
	return cmd
}

// planFile is the YAML shape of a milestone plan on disk.
type planFile struct {
	Milestones []struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Percentage  int    `yaml:"percentage"`
		DueDate     string `yaml:"due_date"` // YYYY-MM-DD
	} `yaml:"milestones"`
}

func newPlanCreateCmd() *cobra.Command {
	var (
		configPath string
		planPath   string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "create <job-id>",
		Short: "Create or replace a job's milestone plan from a YAML file",
		Long: `Validates the plan (percentages sum to 100, every milestone titled)
and persists it. A plan can be replaced until any milestone starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanCreate(cmd, configPath, planPath, actor, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	cmd.Flags().StringVarP(&planPath, "file", "f", "", "path to plan YAML file (required)")
	cmd.Flags().StringVarP(&actor, "actor", "a", "", "acting employer ID (required)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("actor")
	return cmd
}

func runPlanCreate(cmd *cobra.Command, configPath, planPath, actor, jobID string) error {
	out := cmd.OutOrStdout()

	drafts, err := loadPlanFile(planPath)
	if err != nil {
		return err
	}

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	ms, err := co.CreatePlan(actor, jobID, drafts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created plan with %d milestones for job %s\n\n", len(ms), jobID)
	return printMilestones(out, cfg.Currency, ms)
}

// loadPlanFile reads plan drafts from a YAML file.
func loadPlanFile(path string) ([]plan.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file %s: %w", path, err)
	}

	var pf planFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", path, err)
	}

	drafts := make([]plan.Draft, len(pf.Milestones))
	for i, m := range pf.Milestones {
		drafts[i] = plan.Draft{
			Title:       m.Title,
			Description: m.Description,
			Percentage:  m.Percentage,
		}
		if m.DueDate != "" {
			due, err := time.Parse("2006-01-02", m.DueDate)
			if err != nil {
				return nil, fmt.Errorf("milestone %d: invalid due_date %q (want YYYY-MM-DD)", i+1, m.DueDate)
			}
			drafts[i].DueDate = &due
		}
	}
	return drafts, nil
}

func newPlanShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's milestone plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runPlanShow(cmd *cobra.Command, configPath, jobID string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}
	co, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}

	ms, err := co.Milestones(jobID)
	if err != nil {
		return err
	}
	if len(ms) == 0 {
		fmt.Fprintf(out, "Job %s has no milestone plan.\n", jobID)
		return nil
	}
	return printMilestones(out, cfg.Currency, ms)
}

func printMilestones(out io.Writer, currency string, ms []models.Milestone) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tID\tTITLE\tPCT\tAMOUNT\tSTATUS\tDUE")
	for _, m := range ms {
		due := "-"
		if m.DueDate != nil {
			due = m.DueDate.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			m.Position, m.ID, m.Title, m.Percentage,
			models.FormatCents(currency, m.AmountCents), m.Status, due)
	}
	return w.Flush()
}
