// Package config loads the process-level configuration spec.md §6
// names: civil time zone, broker/store/front-end URLs, single-user
// bootstrap mode, and preferred send hours. Values come from the
// environment (optionally via a .env file in local development),
// layered under defaults through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Config is the fully-resolved process configuration.
type Config struct {
	// TimeZone is the fixed civil zone every day/week computation runs in.
	TimeZone string
	Location *time.Location

	// PostgresURL is the Persistence Gateway's backing store.
	PostgresURL string
	// RedisAddr/RedisPassword/RedisDB back the registry's optional HA
	// coordination and the idempotency cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// FrontEndURL is the Trigger Sink's base URL.
	FrontEndURL string
	// OutputChannel is appended to every trigger POST as
	// ?output_channel=<value>.
	OutputChannel string

	// TestUserID, if set, enables single-user bootstrap mode: only this
	// user is enrolled/rehydrated, against the in-memory store.
	TestUserID string

	// PreferredHours maps a daypart name to its 24-hour send hour.
	PreferredHours map[domain.Daypart]int

	// HTTPAddr is the event-ingress HTTP listen address.
	HTTPAddr string
	// NodeID identifies this process in leader-election metrics and logs.
	NodeID string
	// LeaderLeaseTTL bounds how long a leader may go unrenewed before
	// another process may take over.
	LeaderLeaseTTL time.Duration
	// WorkerTick is how often the task queue worker polls for ready tasks.
	WorkerTick time.Duration
	// DispatchRatePerSecond/DispatchBurst bound the rate the worker fires
	// triggers at the front end.
	DispatchRatePerSecond float64
	DispatchBurst         int
	// DeliveryMaxElapsed bounds DeliverWithRetry's total retry window.
	DeliveryMaxElapsed time.Duration
	// TriggerHTTPTimeout bounds a single Trigger Sink POST to the front
	// end; slower than this counts as a delivery failure and feeds the
	// retry/circuit-breaker path.
	TriggerHTTPTimeout time.Duration
}

// Load reads configuration from the environment, optionally seeded from a
// .env file in the working directory (missing is not an error — this is a
// convenience for local development, mirroring how the front end's own
// deployments are run).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTERVENTION")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("timezone", "Europe/Amsterdam")
	v.SetDefault("postgres_url", "postgres://localhost:5432/intervention?sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("front_end_url", "http://localhost:8090")
	v.SetDefault("output_channel", "app")
	v.SetDefault("test_user_id", "")
	v.SetDefault("hour_morning", 9)
	v.SetDefault("hour_afternoon", 14)
	v.SetDefault("hour_evening", 19)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("node_id", "controller-1")
	v.SetDefault("leader_lease_ttl", "15s")
	v.SetDefault("worker_tick", "1s")
	v.SetDefault("dispatch_rate_per_second", 5.0)
	v.SetDefault("dispatch_burst", 10)
	v.SetDefault("delivery_max_elapsed", "2m")
	v.SetDefault("trigger_http_timeout", "60s")

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", v.GetString("timezone"), err)
	}

	cfg := &Config{
		TimeZone:      v.GetString("timezone"),
		Location:      loc,
		PostgresURL:   v.GetString("postgres_url"),
		RedisAddr:     v.GetString("redis_addr"),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		FrontEndURL:   v.GetString("front_end_url"),
		OutputChannel: v.GetString("output_channel"),
		TestUserID:    v.GetString("test_user_id"),
		PreferredHours: map[domain.Daypart]int{
			domain.Morning:   v.GetInt("hour_morning"),
			domain.Afternoon: v.GetInt("hour_afternoon"),
			domain.Evening:   v.GetInt("hour_evening"),
		},
		HTTPAddr:              v.GetString("http_addr"),
		NodeID:                v.GetString("node_id"),
		LeaderLeaseTTL:        v.GetDuration("leader_lease_ttl"),
		WorkerTick:            v.GetDuration("worker_tick"),
		DispatchRatePerSecond: v.GetFloat64("dispatch_rate_per_second"),
		DispatchBurst:         v.GetInt("dispatch_burst"),
		DeliveryMaxElapsed:    v.GetDuration("delivery_max_elapsed"),
		TriggerHTTPTimeout:    v.GetDuration("trigger_http_timeout"),
	}

	// SingleUserMode is true when the operator pinned a single test user
	// id, skipping Postgres/Redis in favor of the in-memory store.
	return cfg, nil
}

// SingleUserMode reports whether this process should run against the
// in-memory store for one pinned test user rather than Postgres/Redis.
func (c *Config) SingleUserMode() bool {
	return c.TestUserID != ""
}
