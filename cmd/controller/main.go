// Command controller is the composition root for the intervention
// controller: it constructs the persistence gateway, task queue, clock,
// registry, optional HA leader election, and HTTP server, then blocks
// until signaled to shut down. There is no module-level mutable state;
// everything lives on the values built here.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/config"
	"github.com/haltline/intervention-controller/internal/coordination"
	"github.com/haltline/intervention-controller/internal/httpapi"
	"github.com/haltline/intervention-controller/internal/idempotency"
	"github.com/haltline/intervention-controller/internal/registry"
	"github.com/haltline/intervention-controller/internal/store"
	"github.com/haltline/intervention-controller/internal/taskqueue"
	"github.com/haltline/intervention-controller/internal/timeline"
	"github.com/haltline/intervention-controller/internal/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("controller: load config: %v", err)
	}

	clk := clock.New(cfg.Location, cfg.PreferredHours)
	queue := taskqueue.New()

	st, idemBackend, coordinator := buildBackends(ctx, cfg)

	sink := trigger.NewHTTPSink(cfg.FrontEndURL, cfg.OutputChannel, cfg.TriggerHTTPTimeout)
	reg := registry.NewRegistry(st, clk, queue)

	if err := reg.Bootstrap(ctx); err != nil {
		log.Fatalf("controller: bootstrap registry: %v", err)
	}

	breaker := taskqueue.NewCircuitBreaker(100)
	limiter := taskqueue.NewDispatchLimiter(cfg.DispatchRatePerSecond, cfg.DispatchBurst)
	worker := taskqueue.NewWorker(queue, breaker, limiter, reg.Dispatch(sink, cfg.DeliveryMaxElapsed), cfg.WorkerTick)

	var elector *coordination.LeaderElector
	if coordinator != nil {
		elector = coordination.NewLeaderElector(coordinator, cfg.NodeID, cfg.LeaderLeaseTTL)
		elector.SetCallbacks(
			func(leaderCtx context.Context) {
				log.Printf("controller: elected leader (node %s), starting dispatch worker", cfg.NodeID)
				go worker.Run(leaderCtx)
				broadcaster := clock.NewBroadcaster(clk, reg.BroadcastNewDay)
				if err := broadcaster.Start(leaderCtx); err != nil {
					log.Printf("controller: failed to start daily broadcaster: %v", err)
				}
			},
			func() {
				log.Printf("controller: lost leadership (node %s)", cfg.NodeID)
			},
		)
		elector.Start(ctx)
		defer elector.Stop()
	} else {
		log.Printf("controller: no coordination backend, running worker standalone (single-node mode)")
		go worker.Run(ctx)
		broadcaster := clock.NewBroadcaster(clk, reg.BroadcastNewDay)
		if err := broadcaster.Start(ctx); err != nil {
			log.Printf("controller: failed to start daily broadcaster: %v", err)
		}
		defer broadcaster.Stop()
	}

	idemStore := idempotency.NewStore(idemBackend)
	tl := timeline.NewStore()
	ing := registry.NewIngress(reg)

	api := httpapi.NewAPI(ing, elector, tl, idemStore)
	hubStop := make(chan struct{})
	api.StartHub(hubStop)
	defer close(hubStop)

	mux := http.NewServeMux()
	mux.Handle("/", api.Router())
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("controller: listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("controller: http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("controller: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("controller: http shutdown: %v", err)
	}
}

// buildBackends wires the Persistence Gateway and the optional Redis-backed
// coordination/idempotency spine. Single-user bootstrap mode (cfg.TestUserID
// set) runs entirely in-memory, with no coordinator — appropriate for a
// single local process with no HA concerns.
func buildBackends(ctx context.Context, cfg *config.Config) (store.Store, idempotency.Backend, store.Coordinator) {
	if cfg.SingleUserMode() {
		log.Printf("controller: single-user bootstrap mode for user %s (in-memory store)", cfg.TestUserID)
		return store.NewMemoryStore(), nil, nil
	}

	st, err := store.NewPostgresStore(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("controller: connect postgres: %v", err)
	}

	redisCoord, err := store.NewRedisCoordinator(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("controller: redis coordination unavailable, running without HA leader election: %v", err)
		return st, nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return st, store.NewRedisIdempotency(redisClient), redisCoord
}
