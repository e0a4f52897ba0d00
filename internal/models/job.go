package models

import "time"

// Job statuses. The escrow workflow only reads these; jobs are created
// and assigned through the CLI or by the marketplace's job-management
// service.
const (
	JobOpen       = "open"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobCancelled  = "cancelled"
)

// Job is the unit of work a milestone plan is attached to. The budget is
// the escrowed total in integer cents; milestone amounts are derived from
// it and must never exceed it in aggregate.
type Job struct {
	ID           string  `gorm:"primaryKey;size:36"`
	Title        string  `gorm:"not null"`
	BudgetCents  int64   `gorm:"not null"`
	Currency     string  `gorm:"size:3;default:USD"`
	EmployerID   string  `gorm:"size:36;not null;index"`
	FreelancerID *string `gorm:"size:36;index"`
	Status       string  `gorm:"size:16;default:open;index"`
	// PlanVersion is the optimistic-concurrency stamp for plan writes:
	// every plan create/replace increments it via a version-guarded
	// UPDATE, so concurrent plan writes cannot both succeed.
	PlanVersion int `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Milestones []Milestone `gorm:"foreignKey:JobID"`
}

// Assigned reports whether a freelancer has been assigned to the job.
// Milestone plans can only be created for assigned jobs.
func (j *Job) Assigned() bool {
	return j.FreelancerID != nil && *j.FreelancerID != ""
}
