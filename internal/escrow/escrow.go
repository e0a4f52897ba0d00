// Package escrow tracks released and remaining funds for a job and
// performs the at-most-once release of a milestone's tranche.
package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/kestrane/milepost/internal/lifecycle"
	"github.com/kestrane/milepost/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrAlreadyReleased is returned when a release is attempted for a
	// milestone whose funds have already been released. This is the guard
	// against duplicate requests or races triggering double payment.
	ErrAlreadyReleased = errors.New("milestone funds already released")
	// ErrLedgerOverrun is returned when the sum of released amounts would
	// exceed the job budget. It signals corrupted milestone data, never a
	// normal business flow, and warrants operator alerting.
	ErrLedgerOverrun = errors.New("released funds would exceed job budget")
)

// Snapshot is the escrow state of a job at a point in time. It is derived
// from approved milestones, never stored independently.
type Snapshot struct {
	TotalBudgetCents int64 `json:"total_budget_cents"`
	ReleasedCents    int64 `json:"released_cents"`
	BalanceCents     int64 `json:"balance_cents"`
}

// Ledger computes the snapshot for a job. released + balance always equals
// the total budget.
func Ledger(db *gorm.DB, job *models.Job) (Snapshot, error) {
	released, err := releasedSum(db, job.ID)
	if err != nil {
		return Snapshot{}, err
	}
	if released > job.BudgetCents {
		return Snapshot{}, fmt.Errorf("escrow: job %s: released %d over budget %d: %w",
			job.ID, released, job.BudgetCents, ErrLedgerOverrun)
	}
	return Snapshot{
		TotalBudgetCents: job.BudgetCents,
		ReleasedCents:    released,
		BalanceCents:     job.BudgetCents - released,
	}, nil
}

// Release marks the milestone approved and releases its amount. It must be
// called inside the caller's transaction; returning an error rolls the
// whole operation back.
//
// The status-guarded UPDATE is the single authoritative check: of two
// concurrent approvals for the same milestone, exactly one flips the row
// from completed to approved and the other observes zero rows affected.
func Release(tx *gorm.DB, job *models.Job, m *models.Milestone, feedback string) (Snapshot, error) {
	now := time.Now()
	result := tx.Model(&models.Milestone{}).
		Where("id = ? AND status = ?", m.ID, string(lifecycle.StatusCompleted)).
		Updates(map[string]interface{}{
			"status":      string(lifecycle.StatusApproved),
			"approved_at": now,
			"feedback":    feedback,
		})
	if result.Error != nil {
		return Snapshot{}, fmt.Errorf("escrow: release milestone %s: %w", m.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race or called out of order; report which.
		var current models.Milestone
		if err := tx.Select("status").Where("id = ?", m.ID).First(&current).Error; err != nil {
			return Snapshot{}, fmt.Errorf("escrow: release milestone %s: %w", m.ID, err)
		}
		if current.Status == string(lifecycle.StatusApproved) {
			return Snapshot{}, fmt.Errorf("escrow: milestone %s: %w", m.ID, ErrAlreadyReleased)
		}
		return Snapshot{}, fmt.Errorf("escrow: milestone %s in status %q: %w",
			m.ID, current.Status, lifecycle.ErrInvalidTransition)
	}

	released, err := releasedSum(tx, job.ID)
	if err != nil {
		return Snapshot{}, err
	}
	if released > job.BudgetCents {
		return Snapshot{}, fmt.Errorf("escrow: job %s: released %d over budget %d: %w",
			job.ID, released, job.BudgetCents, ErrLedgerOverrun)
	}

	m.Status = string(lifecycle.StatusApproved)
	m.ApprovedAt = &now
	m.Feedback = feedback

	return Snapshot{
		TotalBudgetCents: job.BudgetCents,
		ReleasedCents:    released,
		BalanceCents:     job.BudgetCents - released,
	}, nil
}

// releasedSum totals the approved milestone amounts for a job.
func releasedSum(db *gorm.DB, jobID string) (int64, error) {
	var released int64
	err := db.Model(&models.Milestone{}).
		Where("job_id = ? AND status = ?", jobID, string(lifecycle.StatusApproved)).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&released).Error
	if err != nil {
		return 0, fmt.Errorf("escrow: sum released for job %s: %w", jobID, err)
	}
	return released, nil
}
