// Package delivery decides how a found solution reaches the validator.
//
// Two strategies exist. Direct posts every solution immediately and has
// nowhere to keep it if the validator is unreachable. QueueBacked pushes every
// solution into the durable queue and drains the queue in the background,
// re-queueing entries that failed for a reason that may go away.
package delivery

//go:generate mockgen -destination=mocks/submitter.go -package=mocks github.com/screa/rbnb-miner/pkg/delivery Submitter
//go:generate mockgen -destination=mocks/queue.go -package=mocks github.com/screa/rbnb-miner/pkg/queue Queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/queue"
	"github.com/screa/rbnb-miner/pkg/types"
)

// Submitter performs one delivery attempt
type Submitter interface {
	Deliver(ctx context.Context, s *types.Solution) types.Outcome
}

// Strategy is selected once at startup and used for the life of the process
type Strategy interface {
	// SubmitOrEnqueue hands a fresh solution over for delivery
	SubmitOrEnqueue(ctx context.Context, s *types.Solution) error
	// Run drains pending work until ctx is cancelled
	Run(ctx context.Context)
	Stats() Stats
	Close() error
}

// Options holds the drain timings
type Options struct {
	PollInterval    time.Duration // sleep when the queue is empty
	RetryDelay      time.Duration // sleep after a retryable failure
	RestartCooldown time.Duration // sleep before restarting a failed drain
}

// Stats counts what happened to solutions so far
type Stats struct {
	Enqueued   int64
	Delivered  int64
	Requeued   int64
	Dropped    int64
	Reconnects int64
	Restarts   int64
}

type counters struct {
	enqueued   atomic.Int64
	delivered  atomic.Int64
	requeued   atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64
	restarts   atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Enqueued:   c.enqueued.Load(),
		Delivered:  c.delivered.Load(),
		Requeued:   c.requeued.Load(),
		Dropped:    c.dropped.Load(),
		Reconnects: c.reconnects.Load(),
		Restarts:   c.restarts.Load(),
	}
}

// New returns QueueBacked when dial is set and Direct otherwise.
// A queue that cannot be reached here is a startup error.
func New(ctx context.Context, opts Options, submitter Submitter, dial queue.Dialer, log *logger.Logger) (Strategy, error) {
	if dial == nil {
		return NewDirect(opts, submitter, log), nil
	}
	return NewQueueBacked(ctx, opts, submitter, dial, log)
}

// sleep waits for d and reports false if ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func logOutcome(log *logger.Logger, s *types.Solution, o types.Outcome) {
	fields := []interface{}{
		"solution", s.Solution,
		"address", s.Address,
		"outcome", o.Kind.String(),
	}
	if o.StatusCode != 0 {
		fields = append(fields, "status", o.StatusCode)
	}

	switch {
	case o.Delivered():
		log.Infow("solution delivered", fields...)
	case o.Kind == types.RetryableFailure:
		log.Warnw("delivery failed", append(fields, "error", o.Err)...)
	default:
		log.Errorw("solution rejected", append(fields, "error", o.Err)...)
	}
}
