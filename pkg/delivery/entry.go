package delivery

import (
	"fmt"

	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/internal/jsonx"
	"github.com/screa/rbnb-miner/pkg/types"
)

// encodeEntry serializes a solution into the queue entry format, which is
// the same JSON document the validator receives.
func encodeEntry(s *types.Solution) ([]byte, error) {
	data, err := jsonx.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	return data, nil
}

func decodeEntry(entry []byte) (*types.Solution, error) {
	var s types.Solution
	if err := jsonx.Unmarshal(entry, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrMalformedEntry, err)
	}
	if s.Solution == "" || s.Address == "" {
		return nil, fmt.Errorf("%w: missing solution or address", fault.ErrMalformedEntry)
	}
	return &s, nil
}
