// Package mempool holds pending, signature-valid signed transactions
// awaiting block inclusion, keyed by transaction hash.
package mempool

import (
	"fmt"
	"sync"

	"duskledger/internal/core"
	"duskledger/internal/errors"
	"duskledger/internal/hashutil"
)

// Mempool is a hash-indexed store of pending SignedTransactions. Every
// entry present in the map has already passed signature verification;
// no nonce/balance invariant is maintained here.
type Mempool struct {
	mu  sync.RWMutex
	txs map[hashutil.H256]core.SignedTransaction
}

// New returns an empty Mempool.
func New() *Mempool {
	return &Mempool{txs: make(map[hashutil.H256]core.SignedTransaction)}
}

// Insert admits tx if its signature verifies and its hash is not
// already present.
func (m *Mempool) Insert(tx core.SignedTransaction) error {
	if !tx.VerifySignature() {
		return errors.ErrBadSignature
	}

	hash := tx.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txs[hash]; exists {
		return fmt.Errorf("mempool: %w: %s", errors.ErrTxExists, hash)
	}
	m.txs[hash] = tx
	return nil
}

// Contains reports whether hash is present.
func (m *Mempool) Contains(hash hashutil.H256) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[hash]
	return ok
}

// Get returns the transaction for hash, if present.
func (m *Mempool) Get(hash hashutil.H256) (core.SignedTransaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[hash]
	return tx, ok
}

// Remove deletes hash if present; a no-op otherwise.
func (m *Mempool) Remove(hash hashutil.H256) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, hash)
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

// Snapshot returns a copy of every pending transaction keyed by hash,
// for callers (the miner, the rpc /mempool route) that
// need to iterate without holding the mempool lock themselves.
func (m *Mempool) Snapshot() map[hashutil.H256]core.SignedTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[hashutil.H256]core.SignedTransaction, len(m.txs))
	for h, tx := range m.txs {
		out[h] = tx
	}
	return out
}

// RemoveAll deletes every hash in hashes, used by the miner and gossip
// worker to evict transactions in one locked pass.
func (m *Mempool) RemoveAll(hashes []hashutil.H256) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		delete(m.txs, h)
	}
}
