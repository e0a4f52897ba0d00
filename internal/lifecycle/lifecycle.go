// Package lifecycle enforces the milestone status state machine.
//
// The happy path is pending → in_progress → completed → approved, with a
// rework loop completed → rejected → in_progress. Approval is final:
// once a milestone is approved its funds are released and no transition
// may leave that state.
package lifecycle

import (
	"errors"
	"fmt"
)

// Status is a milestone lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Role identifies who is acting relative to the milestone's job.
type Role string

const (
	RoleEmployer   Role = "employer"
	RoleFreelancer Role = "freelancer"
	// RoleSystem covers internal actors (e.g. work auto-started on
	// freelancer assignment); it may only begin work, never approve.
	RoleSystem Role = "system"
)

// Trigger names a workflow action that drives a transition.
type Trigger string

const (
	TriggerStart           Trigger = "start"
	TriggerRequestApproval Trigger = "request_approval"
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerResume          Trigger = "resume"
)

var (
	// ErrInvalidTransition is returned when the trigger is not permitted
	// from the milestone's current status. Re-applying an already-applied
	// transition fails with this error rather than silently succeeding.
	ErrInvalidTransition = errors.New("invalid milestone transition")
	// ErrUnauthorized is returned when the acting role does not match the
	// role the transition requires.
	ErrUnauthorized = errors.New("actor not permitted for transition")
)

// rule describes one row of the transition table.
type rule struct {
	from  Status
	to    Status
	roles []Role
}

var transitions = map[Trigger]rule{
	TriggerStart:           {from: StatusPending, to: StatusInProgress, roles: []Role{RoleFreelancer, RoleSystem}},
	TriggerRequestApproval: {from: StatusInProgress, to: StatusCompleted, roles: []Role{RoleFreelancer}},
	TriggerApprove:         {from: StatusCompleted, to: StatusApproved, roles: []Role{RoleEmployer}},
	TriggerReject:          {from: StatusCompleted, to: StatusRejected, roles: []Role{RoleEmployer}},
	TriggerResume:          {from: StatusRejected, to: StatusInProgress, roles: []Role{RoleFreelancer}},
}

// Statuses lists every milestone status, for exhaustive checks.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusApproved, StatusRejected}
}

// Triggers lists every workflow trigger.
func Triggers() []Trigger {
	return []Trigger{TriggerStart, TriggerRequestApproval, TriggerApprove, TriggerReject, TriggerResume}
}

// Next returns the destination status for applying trigger to a milestone
// currently in from, acted on by role. The current status is checked
// before the actor, so an out-of-order call reports ErrInvalidTransition
// even when the actor is also wrong.
func Next(from Status, trigger Trigger, role Role) (Status, error) {
	r, ok := transitions[trigger]
	if !ok {
		return "", fmt.Errorf("lifecycle: unknown trigger %q: %w", trigger, ErrInvalidTransition)
	}
	if from != r.from {
		return "", fmt.Errorf("lifecycle: cannot %s milestone in status %q: %w", trigger, from, ErrInvalidTransition)
	}
	for _, allowed := range r.roles {
		if role == allowed {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("lifecycle: role %q cannot %s: %w", role, trigger, ErrUnauthorized)
}
