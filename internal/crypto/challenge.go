package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/screa/rbnb-miner/internal/fault"
	"golang.org/x/crypto/sha3"
)

const (
	// Hashed input layout: nonce (32) + challenge (32) + address padding (12) + address (20) = 96.
	// This is the ABI encoding of (bytes32, bytes32, address).
	NonceLen      = 32
	ChallengeLen  = 32
	AddressPadLen = 12
	AddressLen    = 20
	FixedLen      = ChallengeLen + AddressPadLen
	LayoutLen     = NonceLen + FixedLen + AddressLen

	// HashHexLen is the length of a 0x-prefixed keccak-256 hex string
	HashHexLen = 2 + 2*32
)

// FixedBytes returns the constant part of the layout that follows the nonce.
func FixedBytes(challenge [ChallengeLen]byte) [FixedLen]byte {
	var fixed [FixedLen]byte
	copy(fixed[:], challenge[:])
	return fixed
}

// EncodeLayout writes nonce ‖ fixed ‖ address into dst.
func EncodeLayout(dst *[LayoutLen]byte, nonce *[NonceLen]byte, fixed *[FixedLen]byte, addr *[AddressLen]byte) {
	copy(dst[:NonceLen], nonce[:])
	copy(dst[NonceLen:NonceLen+FixedLen], fixed[:])
	copy(dst[NonceLen+FixedLen:], addr[:])
}

// HashHexInto hashes input and writes the 0x-prefixed lowercase hex digest into hexBuf.
// Reuses the provided hasher to avoid allocations. sumBuf must hold at least 32 bytes
// and hexBuf must be HashHexLen bytes.
func HashHexInto(hasher hash.Hash, input, sumBuf, hexBuf []byte) {
	hasher.Reset()
	hasher.Write(input)
	sum := hasher.Sum(sumBuf[:0])
	hexBuf[0] = '0'
	hexBuf[1] = 'x'
	hex.Encode(hexBuf[2:], sum[:32])
}

// HasDifficulty reports whether hashHex starts with the difficulty prefix.
// The comparison is textual; "0x999" is satisfied by "0x9990..." and nothing else.
func HasDifficulty(hashHex, difficulty []byte) bool {
	return bytes.HasPrefix(hashHex, difficulty)
}

// NewHasher returns a keccak-256 hasher
func NewHasher() hash.Hash {
	return sha3.NewLegacyKeccak256()
}

// Keccak256 calculates the keccak256 hash of the input bytes
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// LayoutHashHex returns the 0x-prefixed hash of nonce ‖ fixed ‖ address.
func LayoutHashHex(nonce [NonceLen]byte, challenge [ChallengeLen]byte, addr [AddressLen]byte) string {
	var input [LayoutLen]byte
	fixed := FixedBytes(challenge)
	EncodeLayout(&input, &nonce, &fixed, &addr)
	return hexutil.Encode(Keccak256(input[:]))
}

// Verify recomputes the hash of an encoded solution and checks it against difficulty.
func Verify(nonceHex, address string, challenge [ChallengeLen]byte, difficulty string) (bool, error) {
	raw, err := hexutil.Decode(nonceHex)
	if err != nil {
		return false, fmt.Errorf("decode nonce: %w", err)
	}
	if len(raw) != NonceLen {
		return false, fmt.Errorf("nonce must be %d bytes, got %d", NonceLen, len(raw))
	}
	addr, err := AddressBytes(address)
	if err != nil {
		return false, err
	}
	var nonce [NonceLen]byte
	copy(nonce[:], raw)
	return strings.HasPrefix(LayoutHashHex(nonce, challenge, addr), difficulty), nil
}

// AddressBytes decodes a 0x-prefixed 20-byte hex address.
func AddressBytes(addr string) ([AddressLen]byte, error) {
	var out [AddressLen]byte
	a := strings.TrimSpace(addr)
	if !common.IsHexAddress(a) {
		return out, fmt.Errorf("%w: %q", fault.ErrInvalidAddress, addr)
	}
	copy(out[:], common.HexToAddress(a).Bytes())
	return out, nil
}

// NormalizeAddress lowercases and validates an address, adding the 0x prefix if missing.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(a, "0x") {
		a = "0x" + a
	}
	if _, err := AddressBytes(a); err != nil {
		return "", err
	}
	return a, nil
}

// NormalizeDifficulty lowercases a hex difficulty prefix and adds 0x when missing,
// so it lines up with the hash text produced by HashHexInto.
func NormalizeDifficulty(d string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(d))
	s = strings.TrimPrefix(s, "0x")
	if s == "" || len(s) > 64 {
		return "", fmt.Errorf("%w: %q", fault.ErrInvalidDifficulty, d)
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q", fault.ErrInvalidDifficulty, d)
		}
	}
	return "0x" + s, nil
}

// ParseChallenge decodes a hex challenge word. Shorter inputs are right-padded with zeros.
func ParseChallenge(s string) ([ChallengeLen]byte, error) {
	var out [ChallengeLen]byte
	h := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(h)%2 != 0 {
		return out, fmt.Errorf("%w: hex string must have even length", fault.ErrInvalidChallenge)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return out, fmt.Errorf("%w: %v", fault.ErrInvalidChallenge, err)
	}
	if len(b) == 0 || len(b) > ChallengeLen {
		return out, fmt.Errorf("%w: must be 1 to %d bytes, got %d", fault.ErrInvalidChallenge, ChallengeLen, len(b))
	}
	copy(out[:], b)
	return out, nil
}
