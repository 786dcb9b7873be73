package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChallengeLen is the size of the fixed challenge word
const ChallengeLen = 32

// Challenge is the process-wide puzzle every search is run against
type Challenge struct {
	Bytes      [ChallengeLen]byte
	Difficulty string // 0x-prefixed lowercase hex prefix the hash must start with
	Tick       string
}

// Hex returns the 0x-prefixed encoding of the challenge word as sent to the validator
func (c Challenge) Hex() string {
	return hexutil.Encode(c.Bytes[:])
}

// Solution is the record delivered to the validator and stored in the queue
type Solution struct {
	Solution   string `json:"solution"`
	Challenge  string `json:"challenge"`
	Address    string `json:"address"`
	Difficulty string `json:"difficulty"`
	Tick       string `json:"tick"`
}

// NewSolution packages an accepted nonce for delivery
func NewSolution(nonce [32]byte, address string, c Challenge) *Solution {
	return &Solution{
		Solution:   hexutil.Encode(nonce[:]),
		Challenge:  c.Hex(),
		Address:    address,
		Difficulty: c.Difficulty,
		Tick:       c.Tick,
	}
}

// Result represents a finder result
type Result struct {
	Nonce    [32]byte
	Hash     string
	Address  string
	Attempts int64
	Duration time.Duration
}

// WorkerConfig contains configuration for individual workers
type WorkerConfig struct {
	Address      string
	AddressBytes [20]byte
	Fixed        [44]byte // challenge word followed by the address padding
	Difficulty   []byte   // pre-encoded for byte-level matching on the hot path
	Verbose      bool
}

// WorkerResult represents a result from a single worker
type WorkerResult struct {
	Nonce    [32]byte
	Hash     string
	Attempts int64
	IsMatch  bool
}

// OutcomeKind classifies a delivery attempt
type OutcomeKind int

const (
	Success OutcomeKind = iota
	RetryableFailure
	PermanentFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case PermanentFailure:
		return "permanent"
	default:
		return "unknown"
	}
}

// Outcome is the result of one submission attempt
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int // zero when the request never got a response
	Err        error
}

// Delivered reports whether the validator accepted the solution
func (o Outcome) Delivered() bool {
	return o.Kind == Success
}
