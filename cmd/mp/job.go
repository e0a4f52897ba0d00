package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/kestrane/milepost/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage marketplace jobs",
	}

	cmd.AddCommand(newJobAddCmd())
	cmd.AddCommand(newJobAssignCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobAddCmd() *cobra.Command {
	var (
		configPath string
		title      string
		budget     string
		employer   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a job with an escrowed budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobAdd(cmd, configPath, title, budget, employer)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	cmd.Flags().StringVarP(&title, "title", "t", "", "job title (required)")
	cmd.Flags().StringVarP(&budget, "budget", "b", "", "escrowed budget, e.g. 1000.00 (required)")
	cmd.Flags().StringVarP(&employer, "employer", "e", "", "employer ID (required)")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("budget")
	cmd.MarkFlagRequired("employer")
	return cmd
}

func runJobAdd(cmd *cobra.Command, configPath, title, budget, employer string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}

	cents, err := models.ParseCents(budget)
	if err != nil {
		return err
	}
	if cents <= 0 {
		return fmt.Errorf("budget must be positive, got %s", budget)
	}

	job := models.Job{
		ID:          uuid.NewString(),
		Title:       title,
		BudgetCents: cents,
		Currency:    cfg.Currency,
		EmployerID:  employer,
		Status:      models.JobOpen,
	}
	if err := gormDB.Create(&job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	fmt.Fprintf(out, "Created job %s\n", job.ID)
	fmt.Fprintf(out, "  Title:  %s\n", job.Title)
	fmt.Fprintf(out, "  Budget: %s\n", models.FormatCents(job.Currency, job.BudgetCents))
	return nil
}

func newJobAssignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assign <job-id> <freelancer-id>",
		Short: "Assign a freelancer to an open job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobAssign(cmd, configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runJobAssign(cmd *cobra.Command, configPath, jobID, freelancerID string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}

	var job models.Job
	if err := gormDB.Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("job %s not found", jobID)
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != models.JobOpen {
		return fmt.Errorf("job %s is %s, only open jobs can be assigned", jobID, job.Status)
	}

	// Status-guarded so a racing assignment cannot double-book the job.
	result := gormDB.Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobOpen).
		Updates(map[string]interface{}{
			"freelancer_id": freelancerID,
			"status":        models.JobInProgress,
		})
	if result.Error != nil {
		return fmt.Errorf("assign job %s: %w", jobID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s was assigned concurrently", jobID)
	}

	fmt.Fprintf(out, "Assigned %s to job %s\n", freelancerID, jobID)
	return nil
}

func newJobListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "milepost.yaml", "path to Milepost config file")
	return cmd
}

func runJobList(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := openStore(configPath)
	if err != nil {
		return err
	}

	var jobs []models.Job
	if err := gormDB.Order("created_at ASC").Find(&jobs).Error; err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tBUDGET\tSTATUS\tFREELANCER")
	for _, j := range jobs {
		freelancer := "-"
		if j.FreelancerID != nil {
			freelancer = *j.FreelancerID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Title, models.FormatCents(j.Currency, j.BudgetCents), j.Status, freelancer)
	}
	return w.Flush()
}
