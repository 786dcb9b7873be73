// Package runner is the mining loop: pick an address, find a solution for
// it, hand the solution to delivery, repeat.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/screa/rbnb-miner/internal/crypto"
	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/miner"
	"github.com/screa/rbnb-miner/pkg/types"
)

// pause after a failed iteration so a persistent error does not spin
const errorBackoff = time.Second

// Finder searches for a nonce that meets the challenge difficulty
type Finder interface {
	Find(ctx context.Context, address string) (*types.Result, error)
}

// Picker chooses the address of the next search
type Picker interface {
	Pick() string
}

// Deliverer takes ownership of a found solution
type Deliverer interface {
	SubmitOrEnqueue(ctx context.Context, s *types.Solution) error
}

// Options controls the loop
type Options struct {
	Challenge types.Challenge
	Count     int           // stop after this many solutions, 0 runs until cancelled
	Interval  time.Duration // pause between iterations
}

type Runner struct {
	opts      Options
	finder    Finder
	addresses Picker
	delivery  Deliverer
	log       *logger.Logger
	found     int
}

func New(opts Options, finder Finder, addresses Picker, delivery Deliverer, log *logger.Logger) *Runner {
	return &Runner{
		opts:      opts,
		finder:    finder,
		addresses: addresses,
		delivery:  delivery,
		log:       log.Named("runner"),
	}
}

// Run loops until ctx is cancelled or Count solutions were handed to
// delivery. Search and delivery errors are logged, never returned.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Infow("mining started", "count", r.opts.Count, "difficulty", r.opts.Challenge.Difficulty)

	for r.opts.Count <= 0 || r.found < r.opts.Count {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := r.iterate(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.log.Errorw("iteration failed", "error", err)
			if !sleep(ctx, errorBackoff) {
				return ctx.Err()
			}
			continue
		}

		if r.opts.Interval > 0 && !sleep(ctx, r.opts.Interval) {
			return ctx.Err()
		}
	}

	r.log.Infow("mining finished", "solutions", r.found)
	return nil
}

// Found is the number of solutions handed to delivery so far
func (r *Runner) Found() int {
	return r.found
}

func (r *Runner) iterate(ctx context.Context) error {
	address := r.addresses.Pick()
	r.log.Debugw("searching", "address", address)

	result, err := r.finder.Find(ctx, address)
	if err != nil {
		return err
	}
	r.log.Infow("solution found", miner.Summary(result)...)

	solution := types.NewSolution(result.Nonce, address, r.opts.Challenge)
	ok, err := crypto.Verify(solution.Solution, address, r.opts.Challenge.Bytes, solution.Difficulty)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: nonce %s hash %s", fault.ErrInvalidSolution, solution.Solution, result.Hash)
	}

	r.found++
	if err := r.delivery.SubmitOrEnqueue(ctx, solution); err != nil {
		return err
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
