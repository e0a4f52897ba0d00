package models

import "time"

// EscrowEvent actions, one per workflow operation plus the integrity alarm.
const (
	EventPlanCreated       = "plan_created"
	EventWorkStarted       = "work_started"
	EventApprovalRequested = "approval_requested"
	EventApproved          = "approved"
	EventRejected          = "rejected"
	EventResumed           = "resumed"
	EventOverrunDetected   = "overrun_detected"
)

// EscrowEvent is the append-only audit trail of the escrow workflow. Every
// successful coordinator operation writes one row in the same transaction
// as the state change it records.
type EscrowEvent struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	JobID       string `gorm:"size:36;not null;index"`
	MilestoneID string `gorm:"size:36;index"`
	ActorID     string `gorm:"size:36;not null"`
	ActorRole   string `gorm:"size:16"`
	Action      string `gorm:"size:32;not null;index"`
	AmountCents int64
	Feedback    string `gorm:"type:text"`
	CreatedAt   time.Time
}
