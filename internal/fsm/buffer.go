package fsm

import (
	"context"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Buffer waits for quit_date to arrive. Any user-initiated trigger during
// this window is simply planned and stored.
type Buffer struct{ BaseState }

func (Buffer) Tag() domain.PhaseStateTag { return domain.StateBuffer }

func (b Buffer) Run(ctx context.Context, c *Controller) (Transition, error) {
	return b.checkQuitDate(c)
}

func (b Buffer) OnNewDay(ctx context.Context, c *Controller, today time.Time) (Transition, error) {
	return b.checkQuitDate(c)
}

func (Buffer) checkQuitDate(c *Controller) (Transition, error) {
	if !c.clk.Today().Before(c.User().QuitDate) {
		return MoveTo(ExecutionRun{}), nil
	}
	return Keep(), nil
}
