package miner

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/screa/rbnb-miner/pkg/types"
)

// Rate formats a hash rate with a metric suffix
func Rate(hashesPerSecond float64) string {
	switch {
	case hashesPerSecond >= 1e9:
		return fmt.Sprintf("%.2f GH/s", hashesPerSecond/1e9)
	case hashesPerSecond >= 1e6:
		return fmt.Sprintf("%.2f MH/s", hashesPerSecond/1e6)
	case hashesPerSecond >= 1e3:
		return fmt.Sprintf("%.2f kH/s", hashesPerSecond/1e3)
	default:
		return fmt.Sprintf("%.2f H/s", hashesPerSecond)
	}
}

// Summary describes a finished search for the log
func Summary(r *types.Result) []interface{} {
	rate := 0.0
	if r.Duration.Seconds() > 0 {
		rate = float64(r.Attempts) / r.Duration.Seconds()
	}
	return []interface{}{
		"address", r.Address,
		"hash", r.Hash,
		"attempts", r.Attempts,
		"duration", durafmt.Parse(r.Duration.Round(time.Millisecond)).LimitFirstN(2).String(),
		"rate", Rate(rate),
	}
}
