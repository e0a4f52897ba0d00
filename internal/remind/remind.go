// Package remind sweeps for milestones approaching or past their due
// dates and notifies the configured channels. Reminders are advisory
// only; no status transition is ever driven by the clock.
package remind

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kestrane/milepost/internal/alert"
	"github.com/kestrane/milepost/internal/lifecycle"
	"github.com/kestrane/milepost/internal/models"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// Sweeper periodically scans for due milestones.
type Sweeper struct {
	db       *gorm.DB
	notifier alert.Notifier
	window   time.Duration
}

// New creates a Sweeper looking windowDays ahead.
func New(db *gorm.DB, notifier alert.Notifier, windowDays int) *Sweeper {
	if notifier == nil {
		notifier = alert.Log{}
	}
	return &Sweeper{db: db, notifier: notifier, window: time.Duration(windowDays) * 24 * time.Hour}
}

// Run sweeps on the given cron schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("remind: parse cron %q: %w", cronExpr, err)
	}

	for {
		d := nextCronDuration(cronExpr)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d):
		}

		n, err := s.Sweep(ctx, time.Now())
		if err != nil {
			log.Printf("remind: sweep: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("remind: sent %d reminders", n)
		}
	}
}

// Sweep notifies about unapproved milestones that are overdue or due
// within the window, relative to now. Returns the number of reminders sent.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	var ms []models.Milestone
	err := s.db.
		Where("due_date IS NOT NULL AND due_date <= ? AND status NOT IN ?",
			now.Add(s.window),
			[]string{string(lifecycle.StatusApproved)}).
		Order("due_date ASC").
		Find(&ms).Error
	if err != nil {
		return 0, fmt.Errorf("remind: query due milestones: %w", err)
	}

	sent := 0
	for _, m := range ms {
		ev := reminderEvent(&m, now)
		if err := s.notifier.Notify(ctx, ev); err != nil {
			log.Printf("remind: notify milestone %s: %v", m.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// reminderEvent formats one reminder: overdue milestones get a warning,
// upcoming ones are informational.
func reminderEvent(m *models.Milestone, now time.Time) alert.Event {
	due := *m.DueDate
	ev := alert.Event{
		Fields: []alert.Field{
			{Name: "Job", Value: m.JobID},
			{Name: "Status", Value: m.Status},
			{Name: "Due", Value: due.Format("2006-01-02")},
		},
	}
	if due.Before(now) {
		days := int(now.Sub(due).Hours() / 24)
		ev.Title = fmt.Sprintf("Milestone overdue: %s", m.Title)
		ev.Body = fmt.Sprintf("Due %s, %d day(s) ago", due.Format("2006-01-02"), days)
		ev.Severity = alert.SeverityWarning
		return ev
	}
	ev.Title = fmt.Sprintf("Milestone due soon: %s", m.Title)
	ev.Body = fmt.Sprintf("Due %s", due.Format("2006-01-02"))
	ev.Severity = alert.SeverityInfo
	return ev
}
