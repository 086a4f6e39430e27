package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyState is the two-phase state of a cached event-ingress result.
type IdempotencyState string

const (
	IdempotencyStateLocked IdempotencyState = "LOCKED"
	IdempotencyStateResult IdempotencyState = "RESULT"
)

// IdempotencyResult is the cached outcome of a dedup-guarded inbound event.
type IdempotencyResult struct {
	State      IdempotencyState  `json:"state"`
	StatusCode int               `json:"status_code,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

const (
	// lock_expiry = max_expected_execution_time * 2
	maxExpectedExecutionTime = 30 * time.Second
	lockTTL                  = 2 * maxExpectedExecutionTime
	resultTTL                = 24 * time.Hour
)

// RedisIdempotency implements the idempotency.Backend contract plus the
// two-phase LOCKED/RESULT dedup protocol used by the event ingress HTTP
// handlers to make redelivered webhook calls safe to retry.
type RedisIdempotency struct {
	client *redis.Client
}

func NewRedisIdempotency(client *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{client: client}
}

func (s *RedisIdempotency) acquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, owner, ttl).Result()
}

func (s *RedisIdempotency) releaseLock(ctx context.Context, key, owner string) error {
	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	_, err := s.client.Eval(ctx, script, []string{key}, owner).Result()
	return err
}

// GetIdempotencyState retrieves the current state for key, checking the
// RESULT slot before the LOCKED slot.
func (s *RedisIdempotency) GetIdempotencyState(ctx context.Context, key string) (*IdempotencyResult, error) {
	resultKey := string(Key(ResourceIdempotent, "result:"+key))
	resultData, err := s.client.Get(ctx, resultKey).Result()
	if err == nil {
		var result IdempotencyResult
		if err := json.Unmarshal([]byte(resultData), &result); err != nil {
			return nil, err
		}
		return &result, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	lockKey := string(Key(ResourceIdempotent, "lock:"+key))
	lockData, err := s.client.Get(ctx, lockKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var locked IdempotencyResult
	if err := json.Unmarshal([]byte(lockData), &locked); err != nil {
		return nil, err
	}
	return &locked, nil
}

// StoreIdempotencyResult transitions key from LOCKED to RESULT.
func (s *RedisIdempotency) StoreIdempotencyResult(ctx context.Context, key string, result *IdempotencyResult, ttl time.Duration) error {
	resultKey := string(Key(ResourceIdempotent, "result:"+key))

	result.State = IdempotencyStateResult
	result.CreatedAt = time.Now()

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, resultKey, data, ttl).Err(); err != nil {
		return err
	}

	return s.releaseLock(ctx, string(Key(ResourceIdempotent, "lock:"+key)), key)
}

// WaitForIdempotencyResult polls for another in-flight request's result.
func (s *RedisIdempotency) WaitForIdempotencyResult(ctx context.Context, key string, timeout time.Duration) (*IdempotencyResult, error) {
	deadline := time.Now().Add(timeout)
	backoff := 100 * time.Millisecond
	const maxBackoff = 2 * time.Second

	for time.Now().Before(deadline) {
		state, err := s.GetIdempotencyState(ctx, key)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return nil, fmt.Errorf("idempotency lock expired without result")
		}
		if state.State == IdempotencyStateResult {
			return state, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil, fmt.Errorf("timeout waiting for idempotent request to complete")
}

// ExecuteIdempotent runs execute at most once per key: LOCK -> EXECUTE ->
// RESULT. Concurrent callers with the same key block on the first
// caller's result instead of re-running execute.
func (s *RedisIdempotency) ExecuteIdempotent(ctx context.Context, key string, execute func(context.Context) (*IdempotencyResult, error)) (*IdempotencyResult, error) {
	existing, err := s.GetIdempotencyState(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.State == IdempotencyStateResult {
			return existing, nil
		}
		return s.WaitForIdempotencyResult(ctx, key, 30*time.Second)
	}

	lockKey := string(Key(ResourceIdempotent, "lock:"+key))
	acquired, err := s.acquireLock(ctx, lockKey, key, lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return s.WaitForIdempotencyResult(ctx, key, 30*time.Second)
	}

	existing, err = s.GetIdempotencyState(ctx, key)
	if err != nil {
		s.releaseLock(ctx, lockKey, key)
		return nil, err
	}
	if existing != nil && existing.State == IdempotencyStateResult {
		s.releaseLock(ctx, lockKey, key)
		return existing, nil
	}

	result, err := execute(ctx)
	if err != nil {
		s.releaseLock(ctx, lockKey, key)
		return nil, err
	}

	if err := s.StoreIdempotencyResult(ctx, key, result, resultTTL); err != nil {
		return result, fmt.Errorf("idempotency result not persisted: %w", err)
	}
	return result, nil
}

// Get/Set implement idempotency.Backend for the simpler single-value cache
// used outside the two-phase dedup path (e.g. webhook delivery receipts).
func (s *RedisIdempotency) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, string(Key(ResourceIdempotent, key))).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisIdempotency) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, string(Key(ResourceIdempotent, key)), value, ttl).Err()
}
