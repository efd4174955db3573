package generator

import (
	"github.com/sirupsen/logrus"

	"duskledger/internal/core"
	"duskledger/internal/hashutil"
	"duskledger/internal/mempool"
)

// Broadcaster is the subset of the network server a sink needs: the
// ability to announce new transaction hashes to every peer.
type Broadcaster interface {
	BroadcastNewTransactionHashes(hashes []hashutil.H256)
}

// RunTxSink drains finishedTxns, inserts each into mp, and broadcasts
// its hash. Meant to run in its own goroutine; returns when
// finishedTxns is closed.
func RunTxSink(finishedTxns <-chan core.SignedTransaction, mp *mempool.Mempool, broadcaster Broadcaster, log *logrus.Entry) {
	log = log.WithField("component", "tx-sink")
	for tx := range finishedTxns {
		if err := mp.Insert(tx); err != nil {
			log.WithField("hash", tx.Hash()).Warnf("generated transaction rejected by mempool: %v", err)
			continue
		}
		log.WithField("hash", tx.Hash()).Debug("inserted generated transaction")
		broadcaster.BroadcastNewTransactionHashes([]hashutil.H256{tx.Hash()})
	}
}
