// Package cryptoutil wraps the Ed25519 signing and address-derivation
// primitives the rest of the node treats as an external contract:
// accounts are addressed by the last 20 bytes of the SHA-256 digest of
// their Ed25519 public key, and transactions are authorized by an
// Ed25519 signature over their canonical encoding.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"duskledger/internal/hashutil"
)

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// Address identifies an account: the trailing AddressSize bytes of
// sha256(publicKey).
type Address [AddressSize]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalJSON renders Address as a hex string.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON parses Address from a hex string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cryptoutil: unmarshal address: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("cryptoutil: decode address hex: %w", err)
	}
	if len(b) != AddressSize {
		return fmt.Errorf("cryptoutil: want %d address bytes, got %d", AddressSize, len(b))
	}
	copy(a[:], b)
	return nil
}

// DeriveAddress computes the Address for an Ed25519 public key: the
// trailing AddressSize bytes of sha256(pub).
func DeriveAddress(pub ed25519.PublicKey) Address {
	digest := sha256.Sum256(pub)
	var addr Address
	copy(addr[:], digest[len(digest)-AddressSize:])
	return addr
}

// KeyPair bundles an Ed25519 keypair with its derived Address.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	Address Address
}

// GenerateFromSeed deterministically derives a KeyPair from a 32-byte
// seed, used for the genesis accounts and the transaction generator's
// fixed address set so test runs are reproducible.
func GenerateFromSeed(seed [32]byte) KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{
		Public:  pub,
		Private: priv,
		Address: DeriveAddress(pub),
	}
}

// Sign signs msg with priv.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg by
// the holder of pub, and that pub derives to addr — both conditions the
// spec requires a signature check to satisfy.
func Verify(pub ed25519.PublicKey, addr Address, msg, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	if DeriveAddress(pub) != addr {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

// Hash satisfies hashutil.Hashable for Address by hashing its bytes,
// used where an Address needs to sit at a Merkle leaf.
func (a Address) Hash() hashutil.H256 {
	return hashutil.Sum256(a[:])
}
