// Package gossip implements the message-driven validator: a pool of
// worker goroutines sharing one inbound channel, each running the
// message switch of spec section 4.4 against the shared blockchain and
// mempool.
package gossip

import (
	"github.com/sirupsen/logrus"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	coreerrors "duskledger/internal/errors"
	"duskledger/internal/hashutil"
	"duskledger/internal/mempool"
	"duskledger/internal/network"
)

// Broadcaster is the subset of the network transport a gossip worker
// needs beyond replying to the sender it heard a message from: the
// ability to announce discoveries to every connected peer.
type Broadcaster interface {
	BroadcastNewBlockHashes(hashes []hashutil.H256)
	BroadcastNewTransactionHashes(hashes []hashutil.H256)
}

// Pool runs N worker goroutines, each consuming from the same inbound
// Envelope channel.
type Pool struct {
	blockchain  *blockchain.Blockchain
	mempool     *mempool.Mempool
	inbound     <-chan network.Envelope
	broadcaster Broadcaster
	log         *logrus.Entry
}

// NewPool builds a gossip Pool reading from inbound.
func NewPool(bc *blockchain.Blockchain, mp *mempool.Mempool, inbound <-chan network.Envelope, broadcaster Broadcaster, log *logrus.Entry) *Pool {
	return &Pool{
		blockchain:  bc,
		mempool:     mp,
		inbound:     inbound,
		broadcaster: broadcaster,
		log:         log.WithField("component", "gossip"),
	}
}

// Run launches n worker goroutines and blocks until inbound is closed
// and every worker has drained it.
func (p *Pool) Run(n int) {
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(id int) {
			w := worker{pool: p, log: p.log.WithField("worker", id), orphans: make(map[hashutil.H256][]core.Block)}
			w.run()
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
}

// worker owns its own orphan buffer, independent of every other
// worker's; an orphan delivered to one worker is only reattached when
// its parent later arrives on that same worker.
type worker struct {
	pool    *Pool
	log     *logrus.Entry
	orphans map[hashutil.H256][]core.Block
}

func (w *worker) run() {
	for env := range w.pool.inbound {
		w.handle(env)
	}
}

func (w *worker) handle(env network.Envelope) {
	msg := env.Msg
	switch msg.Kind {
	case network.KindPing:
		env.From.Reply(network.Pong(msg.Nonce))

	case network.KindPong:
		w.log.WithField("nonce", msg.Nonce).Debug("received pong")

	case network.KindNewBlockHashes:
		w.handleNewBlockHashes(env, msg.Hashes)

	case network.KindGetBlocks:
		w.handleGetBlocks(env, msg.Hashes)

	case network.KindBlocks:
		w.handleBlocks(env, msg.Blocks)

	case network.KindNewTransactionHashes:
		w.handleNewTransactionHashes(env, msg.Hashes)

	case network.KindGetTransactions:
		w.handleGetTransactions(env, msg.Hashes)

	case network.KindTransactions:
		w.handleTransactions(env, msg.Transactions)

	default:
		w.log.WithField("kind", msg.Kind).Warn("unknown message kind, discarding")
	}
}

func (w *worker) handleNewBlockHashes(env network.Envelope, hashes []hashutil.H256) {
	var missing []hashutil.H256
	for _, h := range hashes {
		if !w.pool.blockchain.Contains(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		env.From.Reply(network.GetBlocks(missing))
	}
}

func (w *worker) handleGetBlocks(env network.Envelope, hashes []hashutil.H256) {
	var blocks []core.Block
	for _, h := range hashes {
		if b, ok := w.pool.blockchain.GetBlock(h); ok {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) > 0 {
		env.From.Reply(network.BlocksMsg(blocks))
	}
}

// handleBlocks processes a Blocks(bs) delivery as a worklist: blocks
// drawn from it may enqueue their own buffered orphans, which are
// themselves processed before the worker moves on to other work.
func (w *worker) handleBlocks(env network.Envelope, blocks []core.Block) {
	var discovered []hashutil.H256
	work := append([]core.Block(nil), blocks...)

	for i := 0; i < len(work); i++ {
		b := work[i]
		if !b.ValidProofOfWork() {
			w.log.WithField("hash", b.Hash()).Debug("discarding block failing proof-of-work")
			continue
		}
		err := w.pool.blockchain.Insert(b)
		switch {
		case err == nil:
			hash := b.Hash()
			discovered = append(discovered, hash)
			txHashes := make([]hashutil.H256, 0, len(b.Content.Transactions))
			for _, tx := range b.Content.Transactions {
				txHashes = append(txHashes, tx.Hash())
			}
			w.pool.mempool.RemoveAll(txHashes)

			if waiting, ok := w.orphans[hash]; ok {
				work = append(work, waiting...)
				delete(w.orphans, hash)
			}

		case coreerrors.IsMissingParent(err):
			parent := b.Header.Parent
			w.orphans[parent] = append(w.orphans[parent], b)
			env.From.Reply(network.GetBlocks([]hashutil.H256{b.Hash()}))

		default:
			w.log.WithField("hash", b.Hash()).WithError(err).Debug("discarding invalid block")
		}
	}

	if len(discovered) > 0 {
		w.pool.broadcaster.BroadcastNewBlockHashes(discovered)
	}
}

func (w *worker) handleNewTransactionHashes(env network.Envelope, hashes []hashutil.H256) {
	var missing []hashutil.H256
	for _, h := range hashes {
		if !w.pool.mempool.Contains(h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		env.From.Reply(network.GetTransactions(missing))
	}
}

func (w *worker) handleGetTransactions(env network.Envelope, hashes []hashutil.H256) {
	var txs []core.SignedTransaction
	for _, h := range hashes {
		if tx, ok := w.pool.mempool.Get(h); ok {
			txs = append(txs, tx)
		}
	}
	if len(txs) > 0 {
		env.From.Reply(network.TransactionsMsg(txs))
	}
}

func (w *worker) handleTransactions(env network.Envelope, txs []core.SignedTransaction) {
	var admitted []hashutil.H256
	for _, tx := range txs {
		if w.pool.mempool.Contains(tx.Hash()) {
			continue
		}
		if err := w.pool.mempool.Insert(tx); err == nil {
			admitted = append(admitted, tx.Hash())
		}
	}
	if len(admitted) > 0 {
		w.pool.broadcaster.BroadcastNewTransactionHashes(admitted)
	}
}
