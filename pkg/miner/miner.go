package miner

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hako/durafmt"
	"github.com/remeh/sizedwaitgroup"
	"github.com/screa/rbnb-miner/internal/config"
	"github.com/screa/rbnb-miner/internal/crypto"
	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/logger"
	"github.com/screa/rbnb-miner/pkg/types"
	"github.com/screa/rbnb-miner/pkg/worker"
)

// attempts between checks of the done channel
const batchSize = 256

// Miner runs the parallel nonce search for one address at a time
type Miner struct {
	config    *config.Config
	logger    *logger.Logger
	challenge types.Challenge
	fixed     [crypto.FixedLen]byte
	attempts  int64 // across all searches
}

// search is the state shared by the workers of a single Find call
type search struct {
	done     chan struct{}
	once     sync.Once
	result   chan *types.WorkerResult
	attempts int64
	reserved int64
	limit    int64
}

func (s *search) stop() {
	s.once.Do(func() { close(s.done) })
}

// reserve claims up to n attempts of the budget and returns how many were granted
func (s *search) reserve(n int) int {
	end := atomic.AddInt64(&s.reserved, int64(n))
	start := end - int64(n)
	switch {
	case start >= s.limit:
		return 0
	case end > s.limit:
		return int(s.limit - start)
	default:
		return n
	}
}

// NewMiner creates a new miner instance
func NewMiner(cfg *config.Config, challenge types.Challenge, log *logger.Logger) *Miner {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return &Miner{
		config:    cfg,
		logger:    log.Named("miner"),
		challenge: challenge,
		fixed:     crypto.FixedBytes(challenge.Bytes),
	}
}

// Find searches until a nonce meets the difficulty or ctx is cancelled
func (m *Miner) Find(ctx context.Context, address string) (*types.Result, error) {
	return m.run(ctx, address, 0)
}

// FindBounded gives up with fault.ErrSearchExhausted after maxAttempts hashes
func (m *Miner) FindBounded(ctx context.Context, address string, maxAttempts int64) (*types.Result, error) {
	if maxAttempts <= 0 {
		return nil, fault.ErrSearchExhausted
	}
	return m.run(ctx, address, maxAttempts)
}

// Attempts returns the number of hashes computed by every search so far
func (m *Miner) Attempts() int64 {
	return atomic.LoadInt64(&m.attempts)
}

func (m *Miner) run(ctx context.Context, address string, limit int64) (*types.Result, error) {
	addrBytes, err := crypto.AddressBytes(address)
	if err != nil {
		return nil, err
	}

	workerConfig := &types.WorkerConfig{
		Address:      address,
		AddressBytes: addrBytes,
		Fixed:        m.fixed,
		Difficulty:   []byte(m.challenge.Difficulty),
		Verbose:      m.config.Verbose,
	}

	s := &search{
		done:   make(chan struct{}),
		result: make(chan *types.WorkerResult, 1),
		limit:  limit,
	}
	start := time.Now()

	// Start workers
	swg := sizedwaitgroup.New(m.config.Workers)
	for i := 0; i < m.config.Workers; i++ {
		swg.Add()
		go func() {
			defer swg.Done()
			m.worker(workerConfig, s)
		}()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.stop()
		case <-s.done:
		}
	}()

	// Start periodic logging if verbose mode is enabled
	var logTicker *time.Ticker
	if m.config.Verbose {
		logTicker = time.NewTicker(time.Duration(m.config.LogInterval) * time.Second)
		go m.periodicLogger(logTicker, s, address, start)
	}

	// Wait for completion
	swg.Wait()
	s.stop()
	if logTicker != nil {
		logTicker.Stop()
	}

	atomic.AddInt64(&m.attempts, atomic.LoadInt64(&s.attempts))

	select {
	case r := <-s.result:
		return &types.Result{
			Nonce:    r.Nonce,
			Hash:     r.Hash,
			Address:  address,
			Attempts: atomic.LoadInt64(&s.attempts),
			Duration: time.Since(start),
		}, nil
	default:
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fault.ErrSearchExhausted
}

// worker runs the search loop for a single goroutine
func (m *Miner) worker(config *types.WorkerConfig, s *search) {
	w := worker.NewWorker(config, &s.attempts)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n := batchSize
		if s.limit > 0 {
			if n = s.reserve(batchSize); n == 0 {
				return
			}
		}

		result := w.ProcessBatch(n)
		if result == nil {
			continue
		}

		// first match wins, later ones are dropped
		select {
		case s.result <- result:
		default:
		}
		s.stop()
		return
	}
}

// periodicLogger logs mining progress at regular intervals
func (m *Miner) periodicLogger(ticker *time.Ticker, s *search, address string, start time.Time) {
	for {
		select {
		case <-ticker.C:
			attempts := atomic.LoadInt64(&s.attempts)
			elapsed := time.Since(start)

			// Calculate rate safely
			rate := 0.0
			if elapsed.Seconds() > 0 {
				rate = float64(attempts) / elapsed.Seconds()
			}

			m.logger.Infow("progress",
				"address", address,
				"attempts", attempts,
				"rate", Rate(rate),
				"elapsed", durafmt.Parse(elapsed).LimitFirstN(2).String(),
			)
		case <-s.done:
			return
		}
	}
}
