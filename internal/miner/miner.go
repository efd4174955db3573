// Package miner implements the proof-of-work mining loop: assemble a
// transaction batch from the mempool, search for a qualifying nonce
// while the chain tip may move underneath the attempt, and submit
// finished blocks to a companion sink.
package miner

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	"duskledger/internal/cryptoutil"
	"duskledger/internal/fsm"
	"duskledger/internal/hashutil"
	"duskledger/internal/mempool"
	"duskledger/internal/state"
)

// BlockSizeLimit caps the number of transactions accepted into one
// mined block.
const BlockSizeLimit = 30

// Miner runs the PoW loop described above, driven by its Controller.
type Miner struct {
	Controller *fsm.Controller

	blockchain     *blockchain.Blockchain
	mempool        *mempool.Mempool
	finishedBlocks chan<- core.Block
	log            *logrus.Entry

	stopChan chan struct{}
}

// New builds a Miner that submits finished blocks onto finishedBlocks.
func New(bc *blockchain.Blockchain, mp *mempool.Mempool, finishedBlocks chan<- core.Block, log *logrus.Entry) *Miner {
	return &Miner{
		Controller:     fsm.NewController(),
		blockchain:     bc,
		mempool:        mp,
		finishedBlocks: finishedBlocks,
		log:            log.WithField("component", "miner"),
		stopChan:       make(chan struct{}),
	}
}

// Run drives the miner loop until the controller reaches Shutdown. It
// is meant to be launched in its own goroutine.
func (m *Miner) Run() {
	for {
		if !m.awaitSignalIfPaused() {
			return
		}
		if m.Controller.State() == fsm.Shutdown {
			return
		}

		m.drainPendingSignals()
		if m.Controller.State() == fsm.Shutdown {
			return
		}

		m.attempt()

		if lambda := m.Controller.Param(); m.Controller.State() == fsm.Running && lambda != 0 {
			time.Sleep(time.Duration(lambda) * time.Microsecond)
		}
	}
}

// awaitSignalIfPaused blocks on the control channel while Paused,
// applying exactly one signal before returning. Returns false if the
// close signal for the loop (stopChan) fires instead.
func (m *Miner) awaitSignalIfPaused() bool {
	if m.Controller.State() != fsm.Paused {
		return true
	}
	select {
	case sig := <-m.Controller.Signals:
		m.applyLogged(sig)
		return true
	case <-m.stopChan:
		return false
	}
}

// drainPendingSignals applies any signal already queued without
// blocking, the "poll non-blocking" behavior of the Running state.
func (m *Miner) drainPendingSignals() {
	select {
	case sig := <-m.Controller.Signals:
		m.applyLogged(sig)
	default:
	}
}

func (m *Miner) applyLogged(sig fsm.Signal) {
	m.Controller.Apply(sig)
	switch sig.Kind {
	case fsm.SignalStart:
		m.log.WithField("lambda", sig.Param).Info("starting continuous mining")
	case fsm.SignalExit:
		m.log.Info("shutting down")
	}
}

// Stop makes a Paused miner loop return; used by graceful shutdown. A
// Running loop does not watch stopChan and only stops on an Exit signal.
func (m *Miner) Stop() {
	close(m.stopChan)
}

// attempt runs exactly one block-assembly-and-search cycle.
func (m *Miner) attempt() {
	parentHash, parentState := m.blockchain.TipSnapshot()

	parentBlock, ok := m.blockchain.GetBlock(parentHash)
	if !ok {
		m.log.Fatal("tip block missing from blockchain: invariant violation")
	}
	difficulty := parentBlock.Header.Difficulty

	txs, evicted := m.selectTransactions(parentState)
	m.mempool.RemoveAll(evicted)

	if len(txs) == 0 {
		return
	}

	merkleRoot := core.Content{Transactions: txs}.MerkleRoot()

	for m.blockchain.Tip() == parentHash {
		header := core.Header{
			Parent:     parentHash,
			Nonce:      rand.Uint32(),
			Difficulty: difficulty,
			Timestamp:  uint64(time.Now().UnixMilli()),
			MerkleRoot: merkleRoot,
		}
		block := core.Block{Header: header, Content: core.Content{Transactions: txs}}

		if block.ValidProofOfWork() {
			m.log.WithFields(logrus.Fields{"hash": block.Hash(), "parent": parentHash}).Info("found block")
			m.finishedBlocks <- block
			return
		}
	}
	// Tip moved while searching; abandon this attempt without emitting.
}

// selectTransactions iterates the mempool, stopping as soon as
// BlockSizeLimit transactions have been accepted, picking ones that
// are nonce/balance-consistent with parentState and whose sender is
// not already represented in the batch. Every entry iterated before
// that stop is returned in evicted regardless of whether it was
// accepted — the reference's aggressive eviction policy — but entries
// never reached once the limit is hit stay in the mempool.
func (m *Miner) selectTransactions(parentState state.State) ([]core.SignedTransaction, []hashutil.H256) {
	snapshot := m.mempool.Snapshot()

	var accepted []core.SignedTransaction
	var evicted []hashutil.H256
	seenSenders := make(map[cryptoutil.Address]struct{})

	for hash, tx := range snapshot {
		if len(accepted) == BlockSizeLimit {
			break
		}
		evicted = append(evicted, hash)

		sender := tx.Sender()
		acct, ok := parentState[sender]
		if !ok {
			continue
		}
		if _, dup := seenSenders[sender]; dup {
			continue
		}
		if tx.Transaction.AccountNonce != acct.Nonce+1 {
			continue
		}
		if acct.Balance < tx.Transaction.Value {
			continue
		}

		accepted = append(accepted, tx)
		seenSenders[sender] = struct{}{}
	}

	return accepted, evicted
}
