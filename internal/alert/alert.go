// Package alert delivers operator notifications for escrow workflow
// events (releases, rejections, ledger integrity alarms) to chat
// platforms (Slack, Discord, etc.).
package alert

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Severity classifies an event for display and routing.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	// SeverityError is reserved for integrity alarms such as a ledger
	// overrun; these are the events an operator must act on.
	SeverityError Severity = "error"
)

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
}

// Event is a workflow notification formatted for chat delivery.
type Event struct {
	Title    string
	Body     string
	Severity Severity
	Fields   []Field
}

// Notifier is the interface platform-specific implementations satisfy.
// Delivery is best-effort from the workflow's point of view: a failed
// notification never fails the operation that produced it.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to several notifiers, collecting errors.
type Multi []Notifier

// Notify delivers the event to every notifier and joins any errors.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log is a fallback notifier that writes events to the process log. Used
// when no chat platform is configured so alarms are never dropped silently.
type Log struct{}

// Notify logs the event.
func (Log) Notify(_ context.Context, ev Event) error {
	log.Printf("alert [%s] %s: %s", ev.Severity, ev.Title, ev.Body)
	return nil
}

// colorFor maps a severity to a sidebar color hint.
func colorFor(s Severity) string {
	switch s {
	case SeverityError:
		return "#d00000"
	case SeverityWarning:
		return "#e8a317"
	default:
		return "#36a64f"
	}
}

// summarize renders an event as a single plain-text line for platforms
// without rich formatting.
func summarize(ev Event) string {
	if ev.Body == "" {
		return ev.Title
	}
	return fmt.Sprintf("%s — %s", ev.Title, ev.Body)
}
