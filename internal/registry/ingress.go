package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// EventType names one of the four inbound events the HTTP layer accepts.
type EventType string

const (
	EventDialogCompleted   EventType = "dialog-completed"
	EventDialogRescheduled EventType = "dialog-rescheduled"
	EventUserTrigger       EventType = "user-trigger"
	EventNewDay            EventType = "new-day"
)

// Event is the typed, already-validated payload the HTTP handlers build
// from a webhook body and hand to Ingress.Handle. NewDate is only set for
// EventDialogRescheduled; Component is unset for EventNewDay.
type Event struct {
	Type      EventType
	UserID    string
	Component domain.ComponentName
	NewDate   time.Time
}

// Ingress is the single funnel every inbound event passes through before
// reaching a user's controller. It exists so the HTTP layer has one
// narrow surface to validate against and so idempotency/auditing wrap
// every event type uniformly.
type Ingress struct {
	reg *Registry
}

func NewIngress(reg *Registry) *Ingress {
	return &Ingress{reg: reg}
}

// Handle routes ev to the registry method matching its type. UserID must
// be non-empty for every event except new-day, which is a broadcast.
func (i *Ingress) Handle(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventDialogCompleted:
		if ev.UserID == "" {
			return fmt.Errorf("dialog-completed event missing user id")
		}
		return i.reg.OnDialogCompleted(ctx, ev.UserID, ev.Component)
	case EventDialogRescheduled:
		if ev.UserID == "" {
			return fmt.Errorf("dialog-rescheduled event missing user id")
		}
		if ev.NewDate.IsZero() {
			return fmt.Errorf("dialog-rescheduled event missing new date")
		}
		return i.reg.OnDialogRescheduled(ctx, ev.UserID, ev.Component, ev.NewDate)
	case EventUserTrigger:
		if ev.UserID == "" {
			return fmt.Errorf("user-trigger event missing user id")
		}
		return i.reg.OnUserTrigger(ctx, ev.UserID, ev.Component)
	case EventNewDay:
		today := ev.NewDate
		if today.IsZero() {
			today = time.Now()
		}
		i.reg.BroadcastNewDay(ctx, today)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}
