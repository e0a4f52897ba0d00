// Package workflow orchestrates the milestone escrow lifecycle for one
// job: plan creation, status transitions, and fund release. It is the
// only package permitted to release escrowed funds, and only as the
// direct consequence of a successful approve transition.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kestrane/milepost/internal/alert"
	"github.com/kestrane/milepost/internal/escrow"
	"github.com/kestrane/milepost/internal/lifecycle"
	"github.com/kestrane/milepost/internal/models"
	"github.com/kestrane/milepost/internal/plan"
	"gorm.io/gorm"
)

var (
	// ErrJobNotFound is returned when the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrMilestoneNotFound is returned when the referenced milestone does not exist.
	ErrMilestoneNotFound = errors.New("milestone not found")
	// ErrJobNotAssigned is returned when a plan is created before a
	// freelancer is assigned to the job.
	ErrJobNotAssigned = errors.New("job has no assigned freelancer")
	// ErrJobClosed is returned when the job is cancelled or completed.
	ErrJobClosed = errors.New("job is closed")
	// ErrPlanLocked is returned when a plan write is attempted after any
	// milestone has left pending. A plan in motion is never replaced.
	ErrPlanLocked = errors.New("milestone plan already in progress")
	// ErrPlanConflict is returned when a concurrent plan write won the
	// version check first.
	ErrPlanConflict = errors.New("concurrent plan modification")
)

// Coordinator runs workflow operations against the store. Each operation
// is a single transaction: on any failure nothing is persisted.
type Coordinator struct {
	db       *gorm.DB
	notifier alert.Notifier
}

// Opts holds optional Coordinator collaborators.
type Opts struct {
	// Notifier receives workflow events; defaults to log output.
	Notifier alert.Notifier
}

// New creates a Coordinator.
func New(db *gorm.DB, opts Opts) *Coordinator {
	n := opts.Notifier
	if n == nil {
		n = alert.Log{}
	}
	return &Coordinator{db: db, notifier: n}
}

// ApproveResult pairs the approved milestone with the post-release ledger.
type ApproveResult struct {
	Milestone models.Milestone
	Ledger    escrow.Snapshot
}

// CreatePlan validates and persists the milestone plan for a job. Only the
// job's employer may create a plan, and only once a freelancer is
// assigned. An existing plan is replaced if and only if every milestone in
// it is still pending; after that the plan is locked. Concurrent plan
// writes are serialized by a version-guarded update on the job row.
func (c *Coordinator) CreatePlan(actorID, jobID string, drafts []plan.Draft) ([]models.Milestone, error) {
	var created []models.Milestone

	err := c.db.Transaction(func(tx *gorm.DB) error {
		job, err := loadJob(tx, jobID)
		if err != nil {
			return err
		}
		if job.EmployerID != actorID {
			return fmt.Errorf("workflow: only the employer may create a plan for job %s: %w",
				jobID, lifecycle.ErrUnauthorized)
		}
		if !job.Assigned() {
			return fmt.Errorf("workflow: job %s: %w", jobID, ErrJobNotAssigned)
		}
		if job.Status == models.JobCancelled || job.Status == models.JobCompleted {
			return fmt.Errorf("workflow: job %s is %s: %w", jobID, job.Status, ErrJobClosed)
		}

		items, err := plan.Validate(job.BudgetCents, drafts)
		if err != nil {
			return fmt.Errorf("workflow: %w", err)
		}

		// Replace is only allowed while the whole plan is still pending.
		var moved int64
		if err := tx.Model(&models.Milestone{}).
			Where("job_id = ? AND status != ?", jobID, string(lifecycle.StatusPending)).
			Count(&moved).Error; err != nil {
			return fmt.Errorf("workflow: count active milestones: %w", err)
		}
		if moved > 0 {
			return fmt.Errorf("workflow: job %s: %w", jobID, ErrPlanLocked)
		}
		if err := tx.Where("job_id = ?", jobID).Delete(&models.Milestone{}).Error; err != nil {
			return fmt.Errorf("workflow: clear pending plan: %w", err)
		}

		// Optimistic stamp: lose the race, lose the write.
		result := tx.Model(&models.Job{}).
			Where("id = ? AND plan_version = ?", job.ID, job.PlanVersion).
			Update("plan_version", job.PlanVersion+1)
		if result.Error != nil {
			return fmt.Errorf("workflow: bump plan version: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("workflow: job %s: %w", jobID, ErrPlanConflict)
		}

		created = make([]models.Milestone, len(items))
		for i, it := range items {
			created[i] = models.Milestone{
				ID:          uuid.NewString(),
				JobID:       job.ID,
				Position:    i + 1,
				Title:       it.Title,
				Description: it.Description,
				Percentage:  it.Percentage,
				AmountCents: it.AmountCents,
				DueDate:     it.DueDate,
				Status:      string(lifecycle.StatusPending),
			}
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("workflow: create milestones: %w", err)
		}

		return appendEvent(tx, models.EscrowEvent{
			JobID:       job.ID,
			ActorID:     actorID,
			ActorRole:   string(lifecycle.RoleEmployer),
			Action:      models.EventPlanCreated,
			AmountCents: job.BudgetCents,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Start moves a pending milestone to in_progress when work begins.
func (c *Coordinator) Start(actorID, milestoneID string) (*models.Milestone, error) {
	return c.transition(actorID, milestoneID, lifecycle.TriggerStart, "")
}

// RequestApproval marks an in_progress milestone completed, asking the
// employer to review and release funds.
func (c *Coordinator) RequestApproval(actorID, milestoneID string) (*models.Milestone, error) {
	return c.transition(actorID, milestoneID, lifecycle.TriggerRequestApproval, "")
}

// Reject sends a completed milestone back for rework with feedback.
func (c *Coordinator) Reject(actorID, milestoneID, feedback string) (*models.Milestone, error) {
	return c.transition(actorID, milestoneID, lifecycle.TriggerReject, feedback)
}

// Resume moves a rejected milestone back to in_progress.
func (c *Coordinator) Resume(actorID, milestoneID string) (*models.Milestone, error) {
	return c.transition(actorID, milestoneID, lifecycle.TriggerResume, "")
}

// Approve releases a completed milestone's funds. The release runs in the
// same transaction as the status change; of two concurrent approvals
// exactly one succeeds and the other fails with escrow.ErrAlreadyReleased.
// A ledger overrun aborts the transaction, is recorded in the audit
// trail, and raises an operator alert.
func (c *Coordinator) Approve(actorID, milestoneID, feedback string) (*ApproveResult, error) {
	var (
		m    *models.Milestone
		job  *models.Job
		snap escrow.Snapshot
	)

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var role lifecycle.Role
		var err error
		m, job, role, err = loadForTransition(tx, milestoneID, actorID)
		if err != nil {
			return err
		}
		if role != lifecycle.RoleEmployer {
			return fmt.Errorf("workflow: role %q cannot approve milestone %s: %w",
				role, milestoneID, lifecycle.ErrUnauthorized)
		}

		// The release's status-guarded update is the single authoritative
		// state check; a second approve surfaces ErrAlreadyReleased here.
		snap, err = escrow.Release(tx, job, m, feedback)
		if err != nil {
			return fmt.Errorf("workflow: %w", err)
		}

		return appendEvent(tx, models.EscrowEvent{
			JobID:       job.ID,
			MilestoneID: m.ID,
			ActorID:     actorID,
			ActorRole:   string(lifecycle.RoleEmployer),
			Action:      models.EventApproved,
			AmountCents: m.AmountCents,
			Feedback:    feedback,
		})
	})
	if err != nil {
		if errors.Is(err, escrow.ErrLedgerOverrun) {
			c.recordOverrun(actorID, milestoneID, err)
		}
		return nil, err
	}

	c.notify(alert.Event{
		Title:    fmt.Sprintf("Milestone approved: %s", m.Title),
		Body:     fmt.Sprintf("Released %s for job %s", models.FormatCents(job.Currency, m.AmountCents), job.ID),
		Severity: alert.SeverityInfo,
		Fields: []alert.Field{
			{Name: "Job", Value: job.ID},
			{Name: "Released", Value: models.FormatCents(job.Currency, snap.ReleasedCents)},
			{Name: "Balance", Value: models.FormatCents(job.Currency, snap.BalanceCents)},
		},
	})

	return &ApproveResult{Milestone: *m, Ledger: snap}, nil
}

// Ledger returns the escrow snapshot for a job.
func (c *Coordinator) Ledger(jobID string) (escrow.Snapshot, error) {
	job, err := loadJob(c.db, jobID)
	if err != nil {
		return escrow.Snapshot{}, err
	}
	snap, err := escrow.Ledger(c.db, job)
	if err != nil {
		if errors.Is(err, escrow.ErrLedgerOverrun) {
			c.recordOverrun("", "", err)
		}
		return escrow.Snapshot{}, fmt.Errorf("workflow: %w", err)
	}
	return snap, nil
}

// Milestones lists a job's milestones in plan order.
func (c *Coordinator) Milestones(jobID string) ([]models.Milestone, error) {
	if _, err := loadJob(c.db, jobID); err != nil {
		return nil, err
	}
	var ms []models.Milestone
	if err := c.db.Where("job_id = ?", jobID).Order("position ASC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("workflow: list milestones for job %s: %w", jobID, err)
	}
	return ms, nil
}

// Events returns the audit trail for a job, oldest first.
func (c *Coordinator) Events(jobID string) ([]models.EscrowEvent, error) {
	if _, err := loadJob(c.db, jobID); err != nil {
		return nil, err
	}
	var evs []models.EscrowEvent
	if err := c.db.Where("job_id = ?", jobID).Order("id ASC").Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("workflow: list events for job %s: %w", jobID, err)
	}
	return evs, nil
}

// transition applies a non-releasing trigger to a milestone inside one
// transaction. The status-guarded update makes re-applied or racing
// transitions fail instead of double-applying.
func (c *Coordinator) transition(actorID, milestoneID string, trigger lifecycle.Trigger, feedback string) (*models.Milestone, error) {
	var m *models.Milestone

	err := c.db.Transaction(func(tx *gorm.DB) error {
		var job *models.Job
		var role lifecycle.Role
		var err error
		m, job, role, err = loadForTransition(tx, milestoneID, actorID)
		if err != nil {
			return err
		}

		from := lifecycle.Status(m.Status)
		next, err := lifecycle.Next(from, trigger, role)
		if err != nil {
			return fmt.Errorf("workflow: %s milestone %s: %w", trigger, milestoneID, err)
		}

		now := time.Now()
		updates := map[string]interface{}{"status": string(next)}
		switch trigger {
		case lifecycle.TriggerStart:
			if m.StartedAt == nil {
				updates["started_at"] = now
			}
		case lifecycle.TriggerRequestApproval:
			// CompletedAt marks the first completion and survives rework.
			if m.CompletedAt == nil {
				updates["completed_at"] = now
			}
		case lifecycle.TriggerReject:
			updates["feedback"] = feedback
		}

		result := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", m.ID, string(from)).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("workflow: %s milestone %s: %w", trigger, milestoneID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("workflow: %s milestone %s: status changed concurrently: %w",
				trigger, milestoneID, lifecycle.ErrInvalidTransition)
		}

		m.Status = string(next)
		if ts, ok := updates["started_at"].(time.Time); ok {
			m.StartedAt = &ts
		}
		if ts, ok := updates["completed_at"].(time.Time); ok {
			m.CompletedAt = &ts
		}
		if trigger == lifecycle.TriggerReject {
			m.Feedback = feedback
		}

		return appendEvent(tx, models.EscrowEvent{
			JobID:       job.ID,
			MilestoneID: m.ID,
			ActorID:     actorID,
			ActorRole:   string(role),
			Action:      eventFor(trigger),
			Feedback:    feedback,
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// loadForTransition loads the milestone with its job and resolves the
// actor's role relative to that job.
func loadForTransition(tx *gorm.DB, milestoneID, actorID string) (*models.Milestone, *models.Job, lifecycle.Role, error) {
	var m models.Milestone
	if err := tx.Where("id = ?", milestoneID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, "", fmt.Errorf("workflow: milestone %s: %w", milestoneID, ErrMilestoneNotFound)
		}
		return nil, nil, "", fmt.Errorf("workflow: load milestone %s: %w", milestoneID, err)
	}

	job, err := loadJob(tx, m.JobID)
	if err != nil {
		return nil, nil, "", err
	}

	role, err := roleFor(job, actorID)
	if err != nil {
		return nil, nil, "", err
	}
	return &m, job, role, nil
}

// loadJob fetches a job by ID.
func loadJob(tx *gorm.DB, jobID string) (*models.Job, error) {
	var job models.Job
	if err := tx.Where("id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("workflow: job %s: %w", jobID, ErrJobNotFound)
		}
		return nil, fmt.Errorf("workflow: load job %s: %w", jobID, err)
	}
	return &job, nil
}

// roleFor resolves an actor's role relative to a job. Actors who are
// neither the employer nor the assigned freelancer have no standing.
func roleFor(job *models.Job, actorID string) (lifecycle.Role, error) {
	switch {
	case actorID == job.EmployerID:
		return lifecycle.RoleEmployer, nil
	case job.FreelancerID != nil && actorID == *job.FreelancerID:
		return lifecycle.RoleFreelancer, nil
	default:
		return "", fmt.Errorf("workflow: actor %s is not a party to job %s: %w",
			actorID, job.ID, lifecycle.ErrUnauthorized)
	}
}

// appendEvent writes one audit row in the caller's transaction.
func appendEvent(tx *gorm.DB, ev models.EscrowEvent) error {
	ev.CreatedAt = time.Now()
	if err := tx.Create(&ev).Error; err != nil {
		return fmt.Errorf("workflow: append event %s: %w", ev.Action, err)
	}
	return nil
}

// eventFor maps a lifecycle trigger to its audit action.
func eventFor(trigger lifecycle.Trigger) string {
	switch trigger {
	case lifecycle.TriggerStart:
		return models.EventWorkStarted
	case lifecycle.TriggerRequestApproval:
		return models.EventApprovalRequested
	case lifecycle.TriggerReject:
		return models.EventRejected
	case lifecycle.TriggerResume:
		return models.EventResumed
	default:
		return string(trigger)
	}
}

// recordOverrun persists the integrity alarm outside the failed
// transaction and raises an operator alert. Best-effort: a failure here
// is logged, not returned, since the workflow error already surfaced.
func (c *Coordinator) recordOverrun(actorID, milestoneID string, cause error) {
	ev := models.EscrowEvent{
		MilestoneID: milestoneID,
		ActorID:     actorID,
		Action:      models.EventOverrunDetected,
		Feedback:    cause.Error(),
		CreatedAt:   time.Now(),
	}
	if milestoneID != "" {
		var m models.Milestone
		if err := c.db.Select("job_id").Where("id = ?", milestoneID).First(&m).Error; err == nil {
			ev.JobID = m.JobID
		}
	}
	if ev.ActorID == "" {
		ev.ActorID = "system"
	}
	if err := c.db.Create(&ev).Error; err != nil {
		log.Printf("workflow: record overrun event: %v", err)
	}

	c.notify(alert.Event{
		Title:    "Escrow ledger overrun detected",
		Body:     cause.Error(),
		Severity: alert.SeverityError,
		Fields: []alert.Field{
			{Name: "Job", Value: ev.JobID},
			{Name: "Milestone", Value: milestoneID},
		},
	})
}

// notify delivers a workflow event, logging failures.
func (c *Coordinator) notify(ev alert.Event) {
	if err := c.notifier.Notify(context.Background(), ev); err != nil {
		log.Printf("workflow: notify %q: %v", ev.Title, err)
	}
}
