// Package hashutil provides the H256 hash type shared by every wire and
// storage structure in the node.
package hashutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// H256 is a 32-byte SHA-256 digest.
type H256 [32]byte

// Hashable is implemented by anything with a canonical H256 hash.
type Hashable interface {
	Hash() H256
}

// Hash returns h itself, so H256 satisfies Hashable.
func (h H256) Hash() H256 { return h }

// Sum256 hashes b with SHA-256.
func Sum256(b []byte) H256 {
	return H256(sha256.Sum256(b))
}

// IsZero reports whether h is the all-zero hash.
func (h H256) IsZero() bool {
	return h == H256{}
}

// Compare returns -1, 0, or 1 as h is less than, equal to, or greater
// than other, treating both as big-endian unsigned integers. Used to
// compare a block's hash against its target difficulty.
func (h H256) Compare(other H256) int {
	return bytes.Compare(h[:], other[:])
}

// LessOrEqual reports whether h <= target, the proof-of-work condition.
func (h H256) LessOrEqual(target H256) bool {
	return h.Compare(target) <= 0
}

func (h H256) String() string {
	return hex.EncodeToString(h[:])
}

// FromHex parses a 64-character hex string into an H256.
func FromHex(s string) (H256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return H256{}, fmt.Errorf("hashutil: decode hex: %w", err)
	}
	if len(b) != len(H256{}) {
		return H256{}, fmt.Errorf("hashutil: want %d bytes, got %d", len(H256{}), len(b))
	}
	var h H256
	copy(h[:], b)
	return h, nil
}

// MarshalJSON renders H256 as a hex string.
func (h H256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON parses H256 from a hex string.
func (h *H256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hashutil: unmarshal H256: %w", err)
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
