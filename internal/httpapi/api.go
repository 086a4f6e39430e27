// Package httpapi is the Event Ingress HTTP binding: the four inbound
// webhook handlers spec.md §6 names, an idempotency wrapper around them,
// a debug/admin surface, and a websocket stream of recent activity for
// operator tooling.
package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/haltline/intervention-controller/internal/coordination"
	"github.com/haltline/intervention-controller/internal/idempotency"
	"github.com/haltline/intervention-controller/internal/middleware"
	"github.com/haltline/intervention-controller/internal/registry"
	"github.com/haltline/intervention-controller/internal/timeline"
)

// API wires the event ingress handlers and the debug/admin surface
// against a registry, an idempotency cache, and a recent-activity
// timeline.
type API struct {
	ingress  *registry.Ingress
	elector  *coordination.LeaderElector
	timeline *timeline.Store
	idem     *idempotency.Store

	eventLimiter *rate.Limiter

	wsHub *Hub
}

// NewAPI builds the HTTP surface. elector may be nil when the process
// runs without HA leader election (single-node/test deployments).
func NewAPI(ing *registry.Ingress, elector *coordination.LeaderElector, tl *timeline.Store, idem *idempotency.Store) *API {
	a := &API{
		ingress:  ing,
		elector:  elector,
		timeline: tl,
		idem:     idem,
		// Storm protection: bursts of redelivered webhooks must not
		// overwhelm a single controller process.
		eventLimiter: rate.NewLimiter(rate.Limit(200), 400),
	}
	a.wsHub = NewHub(tl)
	return a
}

// Router returns the mux serving every route this API exposes, wrapped in
// CORS + auth middleware.
func (a *API) Router() http.Handler {
	mux := http.NewServeMux()

	events := http.NewServeMux()
	events.HandleFunc("POST /events/dialog-completed", a.withIdempotency(a.handleDialogCompleted))
	events.HandleFunc("POST /events/dialog-rescheduled", a.withIdempotency(a.handleDialogRescheduled))
	events.HandleFunc("POST /events/user-trigger", a.withIdempotency(a.handleUserTrigger))
	events.HandleFunc("POST /events/new-day", a.handleNewDay)
	events.HandleFunc("GET /debug/snapshot", a.handleSnapshot)
	events.HandleFunc("GET /debug/stream", a.handleActivityStream)
	mux.Handle("/events/", middleware.AuthMiddleware(events))
	mux.Handle("/debug/", middleware.AuthMiddleware(events))

	mux.HandleFunc("GET /healthz", a.handleHealthz)

	return middleware.CORSMiddleware(mux)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// responseRecorder lets withIdempotency capture a handler's response so it
// can be replayed verbatim on a redelivered request.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}

// withIdempotency dedups a redelivered webhook by its idempotency key
// header, replaying the original response instead of re-running the FSM
// transition a second time.
func (a *API) withIdempotency(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.eventLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "too many events", http.StatusTooManyRequests)
			return
		}

		key := r.Header.Get("X-Idempotency-Key")
		if key == "" {
			next(w, r)
			return
		}

		if resp, found := a.idem.Get(r.Context(), key); found {
			for k, vals := range resp.Headers {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
			w.WriteHeader(resp.StatusCode)
			w.Write(resp.Body)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next(rec, r)

		a.idem.Set(r.Context(), key, idempotency.Response{
			StatusCode: rec.statusCode,
			Body:       rec.body,
			Headers:    rec.Header(),
		})
	}
}
