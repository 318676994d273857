// Package notification delivers trading events (admissions, rejections,
// resolutions, halts, daily summaries) to external channels: Telegram,
// generic webhooks, or the process log.
package notification

import (
	"context"
	"errors"
	"log"
)

// AlertLevel is the severity of an alert. CRITICAL is reserved for
// states an operator should act on (halts, execution failures).
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one deliverable notification. Constructors for the trading
// event kinds live in events.go; transports never format domain data
// themselves.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the delivery port. Implementations must be safe to call
// from the decision loop; a slow channel delays the tick.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the process log. It is the fallback when
// no external channel is configured, and the default in tests.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// Fanout delivers each alert to every child notifier. One failing channel
// does not stop delivery to the others; errors are joined.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

