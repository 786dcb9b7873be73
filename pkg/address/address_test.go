package address

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0x15fcea85beda82e9e186d968c1cdc2c96865f917"
	addrB = "0x000000000000000000000000000000000000beef"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"blank lines", "\n  \n\n", nil, false},
		{"normalizes", "  0x15FCEA85bEdA82e9e186d968C1CDC2c96865f917 \n", []string{addrA}, false},
		{"adds prefix", "000000000000000000000000000000000000BEEF\n", []string{addrB}, false},
		{"crlf", addrA + "\r\n" + addrB + "\r\n", []string{addrA, addrB}, false},
		{"too short", addrA + "\n0x1234\n", nil, true},
		{"not hex", "0xzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input), "list.txt")
			if tt.wantErr {
				assert.ErrorIs(t, err, fault.ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse([]byte(addrA+"\n\nbad\n"), "list.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list.txt:3")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "address_list.txt")
	require.NoError(t, os.WriteFile(path, []byte(addrA+"\n"+addrB+"\n"), 0o644))

	list, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{addrA, addrB}, list)

	list, err = Load(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBookPick(t *testing.T) {
	book, err := NewBook([]string{addrA, addrB}, addrA)
	require.NoError(t, err)
	assert.False(t, book.UsesFallback())
	assert.Equal(t, 2, book.Len())

	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		seen[book.Pick()]++
	}
	assert.Len(t, seen, 2)
	assert.Positive(t, seen[addrA])
	assert.Positive(t, seen[addrB])
}

func TestBookFallback(t *testing.T) {
	book, err := NewBook(nil, "0x15FCEA85bEdA82e9e186d968C1CDC2c96865f917")
	require.NoError(t, err)
	assert.True(t, book.UsesFallback())
	assert.Equal(t, addrA, book.Pick())

	_, err = NewBook(nil, "")
	assert.ErrorIs(t, err, fault.ErrNoAddresses)

	_, err = NewBook(nil, "0x12")
	assert.ErrorIs(t, err, fault.ErrInvalidAddress)
}
