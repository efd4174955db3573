// Package blockchain implements the block tree: a hash-indexed mapping
// of BlockNodes with longest-chain tip selection and per-node account
// state snapshots.
package blockchain

import (
	"fmt"
	"sync"

	"duskledger/internal/core"
	"duskledger/internal/errors"
	"duskledger/internal/hashutil"
	"duskledger/internal/state"
)

// BlockNode is one admitted block together with its height and the
// account state reached by applying it on top of its parent's state.
type BlockNode struct {
	Block  core.Block
	Height uint64
	State  state.State
}

// Blockchain is the process-wide block tree, guarded by a single mutex.
// Callers needing both the blockchain and mempool locks must acquire
// the blockchain lock first.
type Blockchain struct {
	mu   sync.RWMutex
	byID map[hashutil.H256]BlockNode
	tip  hashutil.H256
}

// New builds a Blockchain containing only the deterministic genesis
// block and its seeded three-account state.
func New() *Blockchain {
	genesis := genesisBlock()
	hash := genesis.Hash()

	bc := &Blockchain{
		byID: make(map[hashutil.H256]BlockNode),
		tip:  hash,
	}
	bc.byID[hash] = BlockNode{Block: genesis, Height: 0, State: genesisState()}
	return bc
}

// Tip returns the hash of the current longest-chain head.
func (bc *Blockchain) Tip() hashutil.H256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// GetNode returns the BlockNode for hash, if present.
func (bc *Blockchain) GetNode(hash hashutil.H256) (BlockNode, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	node, ok := bc.byID[hash]
	return node, ok
}

// GetBlock returns the Block for hash, if present.
func (bc *Blockchain) GetBlock(hash hashutil.H256) (core.Block, bool) {
	node, ok := bc.GetNode(hash)
	return node.Block, ok
}

// Contains reports whether hash is present in the tree.
func (bc *Blockchain) Contains(hash hashutil.H256) bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	_, ok := bc.byID[hash]
	return ok
}

// TipSnapshot returns the current tip hash and the parent state at that
// tip, for the miner to build its next candidate block against.
func (bc *Blockchain) TipSnapshot() (hashutil.H256, state.State) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	node := bc.byID[bc.tip]
	return bc.tip, node.State.Clone()
}

// Insert validates and admits block, returning an *errors.InsertError
// (KindMissingParent or KindInvalid) on rejection.
func (bc *Blockchain) Insert(block core.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	parentNode, ok := bc.byID[block.Header.Parent]
	if !ok {
		return errors.MissingParent(fmt.Errorf("parent %s not present", block.Header.Parent))
	}

	hash := block.Hash()
	if _, exists := bc.byID[hash]; exists {
		return errors.Invalid(errors.ErrDuplicateBlock)
	}

	parentState := parentNode.State

	seenSenders := make(map[[20]byte]struct{}, len(block.Content.Transactions))
	for _, tx := range block.Content.Transactions {
		if !tx.VerifySignature() {
			return errors.Invalid(errors.ErrBadTxSignature)
		}

		sender := tx.Sender()
		if _, dup := seenSenders[sender]; dup {
			return errors.Invalid(errors.ErrDuplicateSender)
		}
		seenSenders[sender] = struct{}{}

		acct, ok := parentState[sender]
		if !ok {
			return errors.Invalid(errors.ErrUnknownTxSender)
		}
		if tx.Transaction.AccountNonce != acct.Nonce+1 {
			return errors.Invalid(errors.ErrTxNonceMismatch)
		}
		if acct.Balance < tx.Transaction.Value {
			return errors.Invalid(errors.ErrTxInsufficientBal)
		}
	}

	newState := parentState.Clone()
	for _, tx := range block.Content.Transactions {
		if err := newState.Apply(tx); err != nil {
			// Validated above against parentState; Apply re-validating
			// against newState cannot fail unless two transactions
			// collide, which the seenSenders check above already
			// excludes.
			return errors.Invalid(fmt.Errorf("apply: %w", err))
		}
	}

	height := parentNode.Height + 1
	bc.byID[hash] = BlockNode{Block: block, Height: height, State: newState}

	if height > bc.byID[bc.tip].Height {
		bc.tip = hash
	}

	return nil
}

// LongestChain returns the hashes of every block from genesis to tip,
// inclusive, in that order.
func (bc *Blockchain) LongestChain() []hashutil.H256 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	var chain []hashutil.H256
	cur := bc.tip
	for {
		node := bc.byID[cur]
		chain = append(chain, cur)
		if node.Height == 0 {
			break
		}
		cur = node.Block.Header.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}
