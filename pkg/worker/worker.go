package worker

import (
	"crypto/rand"
	"hash"
	"sync/atomic"

	"github.com/screa/rbnb-miner/internal/crypto"
	"github.com/screa/rbnb-miner/pkg/types"
)

// Worker draws random nonces and tests them against the difficulty prefix
type Worker struct {
	config   *types.WorkerConfig
	attempts *int64
	hasher   hash.Hash

	// Pre-allocated buffers for performance
	nonceBuffer [crypto.NonceLen]byte
	inputBuffer [crypto.LayoutLen]byte
	sumBuffer   [32]byte
	hexBuffer   [crypto.HashHexLen]byte
}

// NewWorker creates a new worker instance. attempts is shared between all workers of a search.
func NewWorker(config *types.WorkerConfig, attempts *int64) *Worker {
	w := &Worker{
		config:   config,
		attempts: attempts,
		hasher:   crypto.NewHasher(),
	}
	// fixed part and address never change for the life of the worker
	copy(w.inputBuffer[crypto.NonceLen:], config.Fixed[:])
	copy(w.inputBuffer[crypto.NonceLen+crypto.FixedLen:], config.AddressBytes[:])
	return w
}

// fastRandomNonce fills the nonce part of the input buffer
func (w *Worker) fastRandomNonce() bool {
	if _, err := rand.Read(w.nonceBuffer[:]); err != nil {
		return false
	}
	copy(w.inputBuffer[:crypto.NonceLen], w.nonceBuffer[:])
	return true
}

// Attempt tests one random nonce and returns a result only when it matches
func (w *Worker) Attempt() *types.WorkerResult {
	if !w.fastRandomNonce() {
		return nil
	}

	crypto.HashHexInto(w.hasher, w.inputBuffer[:], w.sumBuffer[:], w.hexBuffer[:])
	n := atomic.AddInt64(w.attempts, 1)

	if !w.matches(w.hexBuffer[:]) {
		return nil
	}
	return &types.WorkerResult{
		Nonce:    w.nonceBuffer,
		Hash:     string(w.hexBuffer[:]),
		Attempts: n,
		IsMatch:  true,
	}
}

// ProcessBatch performs up to batchSize attempts and returns the first match
func (w *Worker) ProcessBatch(batchSize int) *types.WorkerResult {
	for i := 0; i < batchSize; i++ {
		if result := w.Attempt(); result != nil {
			return result
		}
	}
	return nil
}

func (w *Worker) matches(hashHex []byte) bool {
	return crypto.HasDifficulty(hashHex, w.config.Difficulty)
}
