// Package address loads the payout addresses solutions are mined for.
package address

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/screa/rbnb-miner/internal/crypto"
	"github.com/screa/rbnb-miner/internal/fault"
)

// Load reads one address per non-empty line. Lines are trimmed and
// lowercased; a line that is not a 20-byte hex address is an error.
// A missing file yields an empty list.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read address list: %w", err)
	}
	return Parse(data, path)
}

// Parse is Load for data already in memory; name is used in error messages.
func Parse(data []byte, name string) ([]string, error) {
	var list []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		addr, err := crypto.NormalizeAddress(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		list = append(list, addr)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", name, err)
	}
	return list, nil
}

// Book picks the address for each search
type Book struct {
	list     []string
	fallback string
}

// NewBook returns a book over list. fallback is used only when list is
// empty; having neither is an error.
func NewBook(list []string, fallback string) (*Book, error) {
	if len(list) == 0 && fallback == "" {
		return nil, fault.ErrNoAddresses
	}
	if fallback != "" {
		a, err := crypto.NormalizeAddress(fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback address: %w", err)
		}
		fallback = a
	}
	return &Book{
		list:     append([]string(nil), list...),
		fallback: fallback,
	}, nil
}

// Pick returns a uniformly random address from the list, or the fallback
// when the list is empty.
func (b *Book) Pick() string {
	if len(b.list) == 0 {
		return b.fallback
	}
	return b.list[rand.IntN(len(b.list))]
}

// Len is the number of listed addresses, not counting the fallback
func (b *Book) Len() int {
	return len(b.list)
}

// UsesFallback reports whether every pick returns the fallback address
func (b *Book) UsesFallback() bool {
	return len(b.list) == 0
}
