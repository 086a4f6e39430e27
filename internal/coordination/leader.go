// Package coordination provides the registry's optional HA leader
// election: exactly one process (in a multi-replica deployment) owns
// the registry's dispatch loop and new-day broadcast at a time.
package coordination

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/haltline/intervention-controller/internal/observability"
	"github.com/haltline/intervention-controller/internal/store"
)

// LockMetadata is the JSON payload stored in the lease value, letting any
// observer identify who currently holds leadership and since when.
type LockMetadata struct {
	OwnerNode string    `json:"owner_node"`
	Epoch     int64     `json:"epoch"`
	ReqID     string    `json:"req_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LeaderElector runs the acquire/renew/step-down loop against a
// store.Coordinator so only one controller process drives the task
// queue worker and the daily broadcast at a time.
type LeaderElector struct {
	coordinator  store.Coordinator
	nodeID       string
	lockKey      string
	ttl          time.Duration
	leaderCtx    context.Context
	leaderCancel context.CancelFunc

	mu           sync.RWMutex
	isLeader     bool
	currentValue string
	currentEpoch int64

	onElected func(context.Context)
	onLost    func()

	ctx    context.Context
	cancel context.CancelFunc

	stepDownTime time.Time
	transitions  int64
}

// LeaderState is the read-only snapshot exposed over the debug endpoint.
type LeaderState struct {
	IsLeader     bool   `json:"is_leader"`
	CurrentEpoch int64  `json:"current_epoch"`
	Transitions  int64  `json:"transitions"`
	NodeID       string `json:"node_id"`
}

type fencingKey string

const fencingEpochKey fencingKey = "fencing_epoch"

// FencedContext returns a context that is canceled the moment leadership
// is lost, and carries the fencing epoch held when it was created.
func (l *LeaderElector) FencedContext() context.Context {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.leaderCtx
}

// GetEpochFromContext extracts the fencing epoch from a context built by
// becomeLeader.
func GetEpochFromContext(ctx context.Context) (int64, bool) {
	val := ctx.Value(fencingEpochKey)
	if val == nil {
		return 0, false
	}
	epoch, ok := val.(int64)
	return epoch, ok
}

// GetState returns a snapshot for the debug endpoint.
func (l *LeaderElector) GetState() LeaderState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LeaderState{
		IsLeader:     l.isLeader,
		CurrentEpoch: l.currentEpoch,
		Transitions:  l.transitions,
		NodeID:       l.nodeID,
	}
}

// NewLeaderElector builds an elector that has not yet started acquiring.
func NewLeaderElector(c store.Coordinator, nodeID string, ttl time.Duration) *LeaderElector {
	ctx, cancel := context.WithCancel(context.Background())
	return &LeaderElector{
		coordinator: c,
		nodeID:      nodeID,
		lockKey:     store.Key(store.ResourceLock, "leader"),
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (l *LeaderElector) SetCallbacks(onElected func(ctx context.Context), onLost func()) {
	l.onElected = onElected
	l.onLost = onLost
}

func (l *LeaderElector) Start(ctx context.Context) {
	go l.loop(ctx)
}

func (l *LeaderElector) Stop() {
	l.cancel()
	if l.IsLeader() {
		l.release()
	}
}

func (l *LeaderElector) loop(ctx context.Context) {
	interval := l.ttl / 3
	minInterval := l.ttl / 3
	maxInterval := 10 * l.ttl

	renewFailures := 0
	const maxRenewFailures = 3

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if l.IsLeader() {
				l.release()
			}
			return
		case <-timer.C:
			var err error
			if l.IsLeader() {
				var renewed bool
				renewed, err = l.renew(ctx)
				if err == nil {
					renewFailures = 0
					if !renewed {
						l.stepDown()
					}
				} else {
					renewFailures++
					log.Printf("leader election: renew failed (%d/%d): %v", renewFailures, maxRenewFailures, err)
					if renewFailures >= maxRenewFailures {
						log.Printf("leader election: too many renew failures, stepping down")
						l.stepDown()
						renewFailures = 0
					}
				}
			} else {
				var acquired bool
				acquired, err = l.acquire(ctx)
				if err == nil && acquired {
					l.becomeLeader()
					renewFailures = 0
				}
			}

			if err != nil {
				interval *= 2
				if interval > maxInterval {
					interval = maxInterval
				}
				log.Printf("leader election: error, backing off for %v", interval)
			} else {
				interval = minInterval
			}

			timer.Reset(interval)
		}
	}
}

func (l *LeaderElector) IsLeader() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.isLeader
}

func (l *LeaderElector) acquire(ctx context.Context) (bool, error) {
	epoch, err := l.coordinator.IncrementEpoch(ctx, l.lockKey)
	if err != nil {
		log.Printf("leader election: failed to increment epoch: %v", err)
		return false, err
	}
	l.mu.Lock()
	if l.currentEpoch > 0 && epoch > l.currentEpoch+1 {
		log.Printf("leader election: epoch jumped from %d to %d (contention or partition recovery)", l.currentEpoch, epoch)
	}
	l.currentEpoch = epoch
	l.mu.Unlock()

	meta := LockMetadata{
		OwnerNode: l.nodeID,
		Epoch:     epoch,
		ReqID:     newRequestID(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(l.ttl),
	}
	valBytes, _ := json.Marshal(meta)
	val := string(valBytes)

	acquired, err := l.coordinator.AcquireLease(ctx, l.lockKey, val, l.ttl)
	if err != nil {
		log.Printf("leader election: failed to acquire lease: %v", err)
		return false, err
	}

	if acquired {
		l.mu.Lock()
		l.currentValue = val
		l.mu.Unlock()
	}
	return acquired, nil
}

func (l *LeaderElector) renew(ctx context.Context) (bool, error) {
	l.mu.RLock()
	val := l.currentValue
	l.mu.RUnlock()

	if val == "" {
		return false, nil
	}
	return l.coordinator.RenewLease(ctx, l.lockKey, val, l.ttl)
}

func (l *LeaderElector) release() {
	l.mu.RLock()
	val := l.currentValue
	l.mu.RUnlock()

	if val == "" {
		return
	}

	ctxt, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l.coordinator.ReleaseLease(ctxt, l.lockKey, val)
}

func (l *LeaderElector) becomeLeader() {
	l.mu.Lock()
	l.isLeader = true
	ctx, cancel := context.WithCancel(context.Background())
	l.leaderCancel = cancel
	l.transitions++
	l.leaderCtx = context.WithValue(ctx, fencingEpochKey, l.currentEpoch)

	if !l.stepDownTime.IsZero() {
		transitionDuration := time.Since(l.stepDownTime)
		observability.LeadershipTransitionDuration.Observe(transitionDuration.Seconds())
		log.Printf("node %s became leader (epoch %d) - transition took %v", l.nodeID, l.currentEpoch, transitionDuration)
		l.stepDownTime = time.Time{}
	} else {
		log.Printf("leader election: acquired leadership, node %s", l.nodeID)
	}
	l.mu.Unlock()

	observability.LeadershipTransitions.WithLabelValues(l.nodeID, "acquired").Inc()
	observability.LeadershipEpoch.WithLabelValues(l.nodeID).Set(float64(l.currentEpoch))
	observability.LeaderStatus.Set(1)

	if l.onElected != nil {
		go l.onElected(l.leaderCtx)
	}
}

func (l *LeaderElector) stepDown() {
	l.mu.Lock()
	if !l.isLeader {
		l.mu.Unlock()
		return
	}

	observability.LeaderStatus.Set(0)
	l.isLeader = false
	l.transitions++
	l.stepDownTime = time.Now()

	if l.leaderCancel != nil {
		l.leaderCancel()
	}
	l.mu.Unlock()

	observability.LeadershipTransitions.WithLabelValues(l.nodeID, "lost").Inc()

	log.Printf("leader election: lost leadership, node %s", l.nodeID)
	if l.onLost != nil {
		l.onLost()
	}
}

func newRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
