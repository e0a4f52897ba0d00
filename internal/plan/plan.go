// Package plan validates and normalizes milestone plans before persistence.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidPlan is returned (wrapped with detail) when a proposed milestone
// plan is malformed. Callers match it with errors.Is.
var ErrInvalidPlan = errors.New("invalid milestone plan")

// Draft is a proposed milestone as submitted by the employer, before
// amounts are computed.
type Draft struct {
	Title       string
	Description string
	Percentage  int
	DueDate     *time.Time
}

// Item is a validated draft with its computed amount in cents.
type Item struct {
	Draft
	AmountCents int64
}

// Validate checks a proposed ordered milestone plan against the job budget
// and returns the normalized items with amounts computed. It is a pure
// function; nothing is persisted.
//
// Rules: the sequence is non-empty, every title is non-empty, every
// percentage is in (0, 100], and the percentages sum to exactly 100.
// Amounts are budgetCents * percentage / 100 with standard rounding; the
// last milestone absorbs the rounding remainder so the amounts always sum
// to the budget exactly.
func Validate(budgetCents int64, drafts []Draft) ([]Item, error) {
	var errs []string

	if budgetCents <= 0 {
		errs = append(errs, fmt.Sprintf("budget must be positive, got %d", budgetCents))
	}
	if len(drafts) == 0 {
		errs = append(errs, "at least one milestone is required")
	}

	sum := 0
	for i, d := range drafts {
		if strings.TrimSpace(d.Title) == "" {
			errs = append(errs, fmt.Sprintf("milestones[%d].title is required", i))
		}
		if d.Percentage <= 0 || d.Percentage > 100 {
			errs = append(errs, fmt.Sprintf("milestones[%d].percentage = %d, must be in 1..100", i, d.Percentage))
		}
		sum += d.Percentage
	}
	if len(drafts) > 0 && sum != 100 {
		errs = append(errs, fmt.Sprintf("percentages sum to %d, must sum to 100", sum))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("plan: %w: %s", ErrInvalidPlan, strings.Join(errs, "; "))
	}

	items := make([]Item, len(drafts))
	var allocated int64
	for i, d := range drafts {
		items[i] = Item{Draft: d, AmountCents: roundAmount(budgetCents, d.Percentage)}
		allocated += items[i].AmountCents
	}
	// Last milestone absorbs the rounding remainder.
	items[len(items)-1].AmountCents += budgetCents - allocated

	return items, nil
}

// roundAmount computes budgetCents * pct / 100 with standard half-up rounding.
func roundAmount(budgetCents int64, pct int) int64 {
	return (budgetCents*int64(pct) + 50) / 100
}
