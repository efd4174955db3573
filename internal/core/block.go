package core

import (
	"encoding/json"

	"duskledger/internal/hashutil"
	"duskledger/internal/merkle"
)

// Header is the fixed-shape, hashed part of a block. Block identity and
// proof-of-work validity are both derived solely from Header, never from
// Content.
type Header struct {
	Parent     hashutil.H256 `json:"parent"`
	Nonce      uint32        `json:"nonce"`
	Difficulty hashutil.H256 `json:"difficulty"`
	Timestamp  uint64        `json:"timestamp"`
	MerkleRoot hashutil.H256 `json:"merkle_root"`
}

// Hash returns the SHA-256 digest of the header's canonical JSON
// encoding, satisfying hashutil.Hashable. Content is never part of this
// hash.
func (h Header) Hash() hashutil.H256 {
	data, err := json.Marshal(h)
	if err != nil {
		panic("core: marshal Header: " + err.Error())
	}
	return hashutil.Sum256(data)
}

// ValidProofOfWork reports whether the header's hash satisfies its own
// difficulty target.
func (h Header) ValidProofOfWork() bool {
	return h.Hash().LessOrEqual(h.Difficulty)
}

// Content is the transaction payload committed to by Header.MerkleRoot.
type Content struct {
	Transactions []SignedTransaction `json:"transactions"`
}

// MerkleRoot computes the Merkle root over Content's transactions in
// order.
func (c Content) MerkleRoot() hashutil.H256 {
	return merkle.New(c.Transactions).Root()
}

// Block is a Header paired with its Content.
type Block struct {
	Header  Header  `json:"header"`
	Content Content `json:"content"`
}

// Hash returns the block's identity: the hash of its Header alone.
func (b Block) Hash() hashutil.H256 {
	return b.Header.Hash()
}

// ValidProofOfWork reports whether the block's header satisfies its
// own difficulty target.
func (b Block) ValidProofOfWork() bool {
	return b.Header.ValidProofOfWork()
}

// ToJSON renders the block as canonical JSON bytes.
func (b Block) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

// FromJSON parses a Block from canonical JSON bytes.
func FromJSON(data []byte) (Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return Block{}, err
	}
	return b, nil
}
