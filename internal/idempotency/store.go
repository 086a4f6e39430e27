// Package idempotency caches the HTTP response for an inbound event
// webhook so a redelivered request (the front end retries on timeout)
// returns the original outcome instead of re-running the FSM transition.
package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Response is the cached outcome of one inbound webhook delivery.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
}

// Backend is satisfied by store.RedisIdempotency in production.
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// Store dedups webhook deliveries by event key, falling back to an
// in-process cache when no Backend is configured (single-user bootstrap
// mode, or tests).
type Store struct {
	backend Backend
	cache   sync.Map
}

type entry struct {
	Resp      Response
	Timestamp time.Time
}

// ttl is how long this store caches a response when backed by Backend.
const ttl = 24 * time.Hour

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Get(ctx context.Context, key string) (Response, bool) {
	if s.backend != nil {
		val, found, err := s.backend.Get(ctx, key)
		if err != nil {
			log.Printf("idempotency: backend error getting %s: %v", key, err)
			return Response{}, false
		}
		if !found {
			return Response{}, false
		}
		var e entry
		if err := json.Unmarshal([]byte(val), &e); err != nil {
			return Response{}, false
		}
		return e.Resp, true
	}

	val, ok := s.cache.Load(key)
	if !ok {
		return Response{}, false
	}
	e := val.(entry)
	if time.Since(e.Timestamp) > ttl {
		s.cache.Delete(key)
		return Response{}, false
	}
	return e.Resp, true
}

func (s *Store) Set(ctx context.Context, key string, resp Response) {
	e := entry{Resp: resp, Timestamp: time.Now()}

	if s.backend != nil {
		data, _ := json.Marshal(e)
		if err := s.backend.Set(ctx, key, string(data), ttl); err != nil {
			log.Printf("idempotency: backend error setting %s: %v", key, err)
		}
		return
	}

	s.cache.Store(key, e)
}
