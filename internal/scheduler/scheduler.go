// Package scheduler runs the auto-collect sweep that force-finalizes exam
// attempts whose countdown ran out while the candidate was gone.
package scheduler

import (
	"context"
	"time"

	"github.com/quizdesk/attempt-service/internal/lock"
	"github.com/quizdesk/attempt-service/internal/repositories"
	"github.com/quizdesk/attempt-service/internal/services"
	"github.com/quizdesk/attempt-service/internal/utils"
)

type AutoCollector struct {
	repo      repositories.Repository
	locks     *lock.Manager
	finalizer services.Finalizer
	interval  time.Duration
	logger    utils.Logger
}

func NewAutoCollector(repo repositories.Repository, locks *lock.Manager, finalizer services.Finalizer, interval time.Duration, logger utils.Logger) *AutoCollector {
	return &AutoCollector{
		repo:      repo,
		locks:     locks,
		finalizer: finalizer,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled. Each tick is independent; a
// failing attempt never stops the rest of the sweep.
func (c *AutoCollector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("auto-collect sweep started", "interval", c.interval.String())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("auto-collect sweep stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep collects every expired unfinished attempt once.
func (c *AutoCollector) Sweep(ctx context.Context) {
	attempts, err := c.repo.Attempt().ListUnfinished(ctx)
	if err != nil {
		c.logger.Error("auto-collect listing failed", "error", err)
		return
	}

	for _, candidate := range attempts {
		// Cheap pre-filter outside the lock; the authoritative check happens
		// on the re-loaded record inside it.
		if candidate.StartedAt == nil || !candidate.TimeUp(time.Now()) {
			continue
		}
		token := candidate.Token
		err := c.locks.WithLock(token, func() error {
			attempt, err := c.repo.Attempt().Get(ctx, token)
			if err != nil {
				return err
			}
			collected, err := c.finalizer.FinalizeIfExpired(ctx, attempt)
			if err != nil {
				return err
			}
			if collected {
				c.logger.Info("attempt force-collected", "token", token)
			}
			return nil
		})
		if err != nil {
			c.logger.Error("auto-collect failed for attempt", "token", token, "error", err)
		}
	}
}
