package trigger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

func TestHTTPSinkDeliverSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "app", 60*time.Second)
	comp := &domain.Component{Trigger: "goal_setting", Type: domain.TypeDialog}
	if err := sink.Deliver(context.Background(), "u1", comp); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotPath != "/conversations/u1/trigger_intent" {
		t.Fatalf("path = %q, want /conversations/u1/trigger_intent", gotPath)
	}
}

func TestHTTPSinkDeliverNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL, "app", 60*time.Second)
	comp := &domain.Component{Trigger: "goal_setting", Type: domain.TypeDialog}
	if err := sink.Deliver(context.Background(), "u1", comp); err == nil {
		t.Fatalf("expected error on 500 response")
	}
}

type flakySink struct {
	failuresLeft int
}

func (f *flakySink) Deliver(ctx context.Context, userID string, component *domain.Component) error {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return errors.New("transient failure")
	}
	return nil
}

func TestDeliverWithRetryRecoversFromTransientFailures(t *testing.T) {
	sink := &flakySink{failuresLeft: 2}
	comp := &domain.Component{Trigger: "goal_setting", Type: domain.TypeDialog}

	err := DeliverWithRetry(context.Background(), sink, "u1", comp, time.Second)
	if err != nil {
		t.Fatalf("DeliverWithRetry: %v", err)
	}
	if sink.failuresLeft != 0 {
		t.Fatalf("failuresLeft = %d, want 0 (all retries consumed)", sink.failuresLeft)
	}
}

func TestDeliverWithRetryGivesUpAfterMaxElapsed(t *testing.T) {
	sink := &flakySink{failuresLeft: 1000000}
	comp := &domain.Component{Trigger: "goal_setting", Type: domain.TypeDialog}

	err := DeliverWithRetry(context.Background(), sink, "u1", comp, 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected error once maxElapsed is exceeded")
	}
}
