package models

import "time"

// Milestone is one percentage-weighted payment tranche of a job's budget.
type Milestone struct {
	ID          string `gorm:"primaryKey;size:36"`
	JobID       string `gorm:"size:36;not null;index"`
	Position    int    `gorm:"not null"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Percentage  int    `gorm:"not null"`
	// AmountCents is a cache of the validator's computation over the job
	// budget, stored so the release path never re-rounds.
	AmountCents int64      `gorm:"not null"`
	DueDate     *time.Time `gorm:"index"`
	Status      string     `gorm:"size:16;default:pending;index"`
	Feedback    string     `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	ApprovedAt  *time.Time

	Job *Job `gorm:"foreignKey:JobID"`
}
