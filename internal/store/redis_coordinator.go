package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/haltline/intervention-controller/internal/observability"
)

// RedisCoordinator implements the Coordinator interface (see coordinator.go)
// over Redis SET NX / Lua-guarded compare-and-delete. It backs the optional
// HA leader lease for the registry when more than one controller process
// runs against the same Postgres.
type RedisCoordinator struct {
	client *redis.Client
}

func NewRedisCoordinator(addr, password string, db int) (*RedisCoordinator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCoordinator{client: client}, nil
}

func (c *RedisCoordinator) AcquireLock(ctx context.Context, key string, ownerID string, ttl time.Duration) (bool, error) {
	start := time.Now()
	defer func() { observability.RedisLatency.Observe(time.Since(start).Seconds()) }()

	return c.client.SetNX(ctx, key, ownerID, ttl).Result()
}

func (c *RedisCoordinator) RenewLock(ctx context.Context, key string, ownerID string, ttl time.Duration) (bool, error) {
	start := time.Now()
	defer func() { observability.RedisLatency.Observe(time.Since(start).Seconds()) }()

	script := `
		local val = redis.call("get", KEYS[1])
		if not val then
			return -1
		end
		if val == ARGV[1] then
			return redis.call("pexpire", KEYS[1], tonumber(ARGV[2]))
		else
			return -2
		end
	`
	res, err := c.client.Eval(ctx, script, []string{key}, ownerID, int64(ttl/time.Millisecond)).Result()
	if err != nil {
		return false, err
	}
	val, ok := res.(int64)
	if !ok {
		return false, errors.New("unexpected lua return type")
	}
	return val == 1, nil
}

func (c *RedisCoordinator) ReleaseLock(ctx context.Context, key string, ownerID string) error {
	start := time.Now()
	defer func() { observability.RedisLatency.Observe(time.Since(start).Seconds()) }()

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	_, err := c.client.Eval(ctx, script, []string{key}, ownerID).Result()
	return err
}

func (c *RedisCoordinator) GetLockOwner(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *RedisCoordinator) AcquireLease(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.AcquireLock(ctx, key, value, ttl)
}

func (c *RedisCoordinator) RenewLease(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.RenewLock(ctx, key, value, ttl)
}

func (c *RedisCoordinator) ReleaseLease(ctx context.Context, key string, value string) error {
	return c.ReleaseLock(ctx, key, value)
}

func (c *RedisCoordinator) IsLeaseOwner(ctx context.Context, key string, value string) (bool, error) {
	owner, err := c.GetLockOwner(ctx, key)
	if err != nil {
		return false, err
	}
	return owner == value, nil
}

func (c *RedisCoordinator) IncrementEpoch(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key+":epoch").Result()
}

func (c *RedisCoordinator) ScanLocks(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
