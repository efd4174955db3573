// Package network implements the peer-to-peer transport: a wire
// message tag-union, per-peer handles gossip workers reply through, a
// length-prefixed JSON socket server, and an in-process Loopback
// transport used by tests instead of real sockets.
package network

import (
	"encoding/json"

	"duskledger/internal/core"
	"duskledger/internal/hashutil"
)

// Kind identifies which variant of Message is populated.
type Kind string

const (
	KindPing                 Kind = "ping"
	KindPong                 Kind = "pong"
	KindNewBlockHashes       Kind = "new_block_hashes"
	KindGetBlocks            Kind = "get_blocks"
	KindBlocks               Kind = "blocks"
	KindNewTransactionHashes Kind = "new_transaction_hashes"
	KindGetTransactions      Kind = "get_transactions"
	KindTransactions         Kind = "transactions"
)

// Message is the wire tag-union exchanged between peers. Only the
// field(s) relevant to Kind are populated; the rest are left zero.
type Message struct {
	Kind Kind `json:"kind"`

	Nonce string `json:"nonce,omitempty"`

	Hashes []hashutil.H256 `json:"hashes,omitempty"`

	Blocks []core.Block `json:"blocks,omitempty"`

	Transactions []core.SignedTransaction `json:"transactions,omitempty"`
}

func Ping(nonce string) Message { return Message{Kind: KindPing, Nonce: nonce} }
func Pong(nonce string) Message { return Message{Kind: KindPong, Nonce: nonce} }

func NewBlockHashes(hashes []hashutil.H256) Message {
	return Message{Kind: KindNewBlockHashes, Hashes: hashes}
}

func GetBlocks(hashes []hashutil.H256) Message {
	return Message{Kind: KindGetBlocks, Hashes: hashes}
}

func BlocksMsg(blocks []core.Block) Message {
	return Message{Kind: KindBlocks, Blocks: blocks}
}

func NewTransactionHashes(hashes []hashutil.H256) Message {
	return Message{Kind: KindNewTransactionHashes, Hashes: hashes}
}

func GetTransactions(hashes []hashutil.H256) Message {
	return Message{Kind: KindGetTransactions, Hashes: hashes}
}

func TransactionsMsg(txs []core.SignedTransaction) Message {
	return Message{Kind: KindTransactions, Transactions: txs}
}

// ToJSON renders the message as canonical JSON bytes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON parses a Message from canonical JSON bytes.
func FromJSON(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}
