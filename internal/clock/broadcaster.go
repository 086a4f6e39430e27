package clock

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Broadcaster fires a daily new-day tick at 00:05 local civil time,
// fanning out to every live controller in registry order (spec.md §4.1).
// Ordering among per-user deliveries on the same tick is unspecified and
// must not affect correctness — callers just get "one call per day".
type Broadcaster struct {
	clk     *Clock
	notify  func(ctx context.Context, today time.Time) int
	cronJob *cron.Cron
}

// NewBroadcaster builds a Broadcaster that calls notify once per civil
// day. notify is expected to be registry.Registry.BroadcastNewDay; it is
// injected as a func to avoid an import cycle between clock and registry.
func NewBroadcaster(clk *Clock, notify func(ctx context.Context, today time.Time) int) *Broadcaster {
	c := cron.New(cron.WithLocation(clk.Location()))
	return &Broadcaster{clk: clk, notify: notify, cronJob: c}
}

// Start schedules the daily tick and begins running it in the
// background. Call Stop to end it.
func (b *Broadcaster) Start(ctx context.Context) error {
	_, err := b.cronJob.AddFunc("5 0 * * *", func() {
		today := b.clk.Today()
		failures := b.notify(ctx, today)
		if failures > 0 {
			log.Printf("clock: new-day broadcast for %s had %d user failures", today.Format("2006-01-02"), failures)
		}
	})
	if err != nil {
		return err
	}
	b.cronJob.Start()
	return nil
}

// Stop halts the broadcaster, waiting for any in-flight tick to finish.
func (b *Broadcaster) Stop() {
	<-b.cronJob.Stop().Done()
}
