package delivery

import (
	"context"

	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/types"
)

// Direct submits on the caller's goroutine. Without a queue a failed
// solution cannot be kept, so every failure ends in a drop.
type Direct struct {
	opts      Options
	submitter Submitter
	log       *logger.Logger
	counters  counters
}

// NewDirect creates the queue-less strategy
func NewDirect(opts Options, submitter Submitter, log *logger.Logger) *Direct {
	return &Direct{
		opts:      opts,
		submitter: submitter,
		log:       log.Named("delivery"),
	}
}

func (d *Direct) SubmitOrEnqueue(ctx context.Context, s *types.Solution) error {
	outcome := d.submitter.Deliver(ctx, s)
	logOutcome(d.log, s, outcome)

	switch outcome.Kind {
	case types.Success:
		d.counters.delivered.Add(1)
	case types.RetryableFailure:
		d.counters.dropped.Add(1)
		d.log.Warnw("no queue configured, solution dropped", "solution", s.Solution)
		sleep(ctx, d.opts.RetryDelay)
	default:
		d.counters.dropped.Add(1)
	}
	return ctx.Err()
}

// Run has nothing to drain
func (d *Direct) Run(ctx context.Context) {}

func (d *Direct) Stats() Stats {
	return d.counters.snapshot()
}

func (d *Direct) Close() error {
	return nil
}
