package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/queue"
	"github.com/screa/rbnb-miner/pkg/types"
)

// budget for putting an entry back after ctx was cancelled
const shutdownPushTimeout = 5 * time.Second

// link is one path's connection to the queue. It is owned by a single
// goroutine and replaced after any queue error.
type link struct {
	dial     queue.Dialer
	q        queue.Queue
	counters *counters
}

func (l *link) connect(ctx context.Context) error {
	if l.q != nil {
		return nil
	}
	q, err := l.dial(ctx)
	if err != nil {
		return err
	}
	l.q = q
	return nil
}

func (l *link) reset() {
	if l.q == nil {
		return
	}
	_ = l.q.Close()
	l.q = nil
	l.counters.reconnects.Add(1)
}

func (l *link) push(ctx context.Context, entry []byte) error {
	if err := l.connect(ctx); err != nil {
		return err
	}
	if err := l.q.Push(ctx, entry); err != nil {
		l.reset()
		return err
	}
	return nil
}

func (l *link) pop(ctx context.Context) ([]byte, bool, error) {
	if err := l.connect(ctx); err != nil {
		return nil, false, err
	}
	entry, ok, err := l.q.Pop(ctx)
	if err != nil {
		l.reset()
		return nil, false, err
	}
	return entry, ok, nil
}

// QueueBacked sends every solution through the durable queue
type QueueBacked struct {
	opts      Options
	submitter Submitter
	dial      queue.Dialer
	log       *logger.Logger
	counters  counters

	// mu guards the produce link only; queue ordering comes from Redis
	mu      sync.Mutex
	produce *link
}

// NewQueueBacked connects the produce path. The drain connects on Run.
func NewQueueBacked(ctx context.Context, opts Options, submitter Submitter, dial queue.Dialer, log *logger.Logger) (*QueueBacked, error) {
	d := &QueueBacked{
		opts:      opts,
		submitter: submitter,
		dial:      dial,
		log:       log.Named("delivery"),
	}
	d.produce = &link{dial: dial, counters: &d.counters}
	if err := d.produce.connect(ctx); err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}
	if lener, ok := d.produce.q.(queue.Lener); ok {
		if n, err := lener.Len(ctx); err == nil && n > 0 {
			d.log.Infow("pending entries from a previous run", "count", n)
		}
	}
	return d, nil
}

// SubmitOrEnqueue pushes s to the queue, reconnecting until the push
// succeeds or ctx ends.
func (d *QueueBacked) SubmitOrEnqueue(ctx context.Context, s *types.Solution) error {
	entry, err := encodeEntry(s)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.pushUntilStored(ctx, d.produce, entry); err != nil {
		return err
	}
	d.counters.enqueued.Add(1)
	d.log.Infow("solution queued", "solution", s.Solution, "address", s.Address)
	return nil
}

func (d *QueueBacked) pushUntilStored(ctx context.Context, l *link, entry []byte) error {
	for {
		err := l.push(ctx, entry)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return d.lastPush(ctx, l, entry)
		}
		d.log.Warnw("queue push failed, reconnecting", "error", err, "retry_in", d.opts.RetryDelay)
		if !sleep(ctx, d.opts.RetryDelay) {
			return d.lastPush(ctx, l, entry)
		}
	}
}

// lastPush makes one attempt that outlives ctx so shutdown does not lose an entry
func (d *QueueBacked) lastPush(ctx context.Context, l *link, entry []byte) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownPushTimeout)
	defer cancel()
	if err := l.push(pctx, entry); err != nil {
		d.log.Errorw("entry lost on shutdown", "entry", string(entry), "error", err)
		return fmt.Errorf("push on shutdown: %w", err)
	}
	return nil
}

// Run drains the queue until ctx is cancelled, restarting the drain after
// RestartCooldown whenever it stops on its own.
func (d *QueueBacked) Run(ctx context.Context) {
	d.log.Infow("drain started", "poll_interval", d.opts.PollInterval)
	for {
		err := d.safeDrain(ctx)
		if ctx.Err() != nil {
			d.log.Infow("drain stopped")
			return
		}
		d.counters.restarts.Add(1)
		d.log.Errorw("drain failed, restarting", "error", err, "cooldown", d.opts.RestartCooldown)
		if !sleep(ctx, d.opts.RestartCooldown) {
			return
		}
	}
}

func (d *QueueBacked) safeDrain(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drain panic: %v", r)
		}
	}()
	return d.drain(ctx)
}

// drain returns nil only when ctx is done
func (d *QueueBacked) drain(ctx context.Context) error {
	l := &link{dial: d.dial, counters: &d.counters}
	defer func() {
		if l.q != nil {
			_ = l.q.Close()
		}
	}()

	if err := l.connect(ctx); err != nil {
		return err
	}

	for ctx.Err() == nil {
		entry, ok, err := l.pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.log.Warnw("queue pop failed, reconnecting", "error", err, "retry_in", d.opts.RetryDelay)
			if err := l.connect(ctx); err != nil {
				return err
			}
			// a fresh connection does not fix every error, e.g. WRONGTYPE on the key
			sleep(ctx, d.opts.RetryDelay)
			continue
		}
		if !ok {
			sleep(ctx, d.opts.PollInterval)
			continue
		}
		d.handle(ctx, l, entry)
	}
	return nil
}

func (d *QueueBacked) handle(ctx context.Context, l *link, entry []byte) {
	s, err := decodeEntry(entry)
	if err != nil {
		d.counters.dropped.Add(1)
		d.log.Errorw("dropping malformed entry", "entry", string(entry), "error", err)
		return
	}

	outcome := d.submitter.Deliver(ctx, s)
	logOutcome(d.log, s, outcome)

	switch outcome.Kind {
	case types.Success:
		d.counters.delivered.Add(1)

	case types.RetryableFailure:
		if err := d.pushUntilStored(ctx, l, entry); err != nil {
			d.counters.dropped.Add(1)
			return
		}
		d.counters.requeued.Add(1)
		sleep(ctx, d.opts.RetryDelay)

	default:
		d.counters.dropped.Add(1)
	}
}

func (d *QueueBacked) Stats() Stats {
	return d.counters.snapshot()
}

// Close releases the produce connection
func (d *QueueBacked) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.produce.q == nil {
		return nil
	}
	err := d.produce.q.Close()
	d.produce.q = nil
	return err
}
