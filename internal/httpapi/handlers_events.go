package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/registry"
	"github.com/haltline/intervention-controller/internal/timeline"
)

type dialogCompletedBody struct {
	UserID    string `json:"user_id"`
	Component string `json:"component_name"`
}

type dialogRescheduledBody struct {
	UserID      string `json:"user_id"`
	Component   string `json:"component_name"`
	NewDatetime string `json:"new_datetime_iso"`
}

type userTriggerBody struct {
	UserID    string `json:"user_id"`
	Component string `json:"component_name"`
}

type newDayBody struct {
	Date string `json:"date_iso"`
}

func (a *API) handleDialogCompleted(w http.ResponseWriter, r *http.Request) {
	var body dialogCompletedBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev := registry.Event{Type: registry.EventDialogCompleted, UserID: body.UserID, Component: domain.ComponentName(body.Component)}
	a.dispatchEvent(w, r, ev)
}

func (a *API) handleDialogRescheduled(w http.ResponseWriter, r *http.Request) {
	var body dialogRescheduledBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	newDate, err := time.Parse(time.RFC3339, body.NewDatetime)
	if err != nil {
		http.Error(w, "invalid new_datetime_iso", http.StatusBadRequest)
		return
	}

	ev := registry.Event{
		Type:      registry.EventDialogRescheduled,
		UserID:    body.UserID,
		Component: domain.ComponentName(body.Component),
		NewDate:   newDate,
	}
	a.dispatchEvent(w, r, ev)
}

func (a *API) handleUserTrigger(w http.ResponseWriter, r *http.Request) {
	var body userTriggerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev := registry.Event{Type: registry.EventUserTrigger, UserID: body.UserID, Component: domain.ComponentName(body.Component)}
	a.dispatchEvent(w, r, ev)
}

// handleNewDay is the daily broadcast trigger, normally fired by the
// cron-driven clock broadcaster rather than an external caller, but
// exposed here too for manual/admin replay of a missed tick.
func (a *API) handleNewDay(w http.ResponseWriter, r *http.Request) {
	var body newDayBody
	today := time.Time{}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Date != "" {
		if d, err := time.Parse(time.RFC3339, body.Date); err == nil {
			today = d
		}
	}

	if err := a.ingress.Handle(r.Context(), registry.Event{Type: registry.EventNewDay, NewDate: today}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// dispatchEvent routes ev through the ingress, records it on the
// activity timeline, and maps ingress errors to HTTP status codes per
// spec.md §7's error kinds.
func (a *API) dispatchEvent(w http.ResponseWriter, r *http.Request, ev registry.Event) {
	err := a.ingress.Handle(r.Context(), ev)

	stage := timeline.StageEventReceived
	if err != nil {
		stage = timeline.StageEventRejected
	}
	a.timeline.Record(timeline.Event{
		UserID: ev.UserID,
		Stage:  stage,
		Metadata: map[string]string{
			"event_type": string(ev.Type),
			"component":  string(ev.Component),
		},
	})

	if err != nil {
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// isClientError distinguishes a NotFound/validation error (caller's
// fault, safe to reject without retry) from a persistence/schedule
// failure (the ingress should be retried — see spec.md §7).
func isClientError(err error) bool {
	type notFound interface{ NotFound() bool }
	if nf, ok := err.(notFound); ok {
		return nf.NotFound()
	}
	return false
}
