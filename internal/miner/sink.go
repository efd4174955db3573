package miner

import (
	"github.com/sirupsen/logrus"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	"duskledger/internal/hashutil"
	"duskledger/internal/mempool"
)

// Broadcaster is the subset of the network server a sink needs: the
// ability to announce new block hashes to every peer.
type Broadcaster interface {
	BroadcastNewBlockHashes(hashes []hashutil.H256)
}

// RunBlockSink drains finishedBlocks, inserts each into bc, evicts its
// transactions from mp, and broadcasts the new hash. A miner-produced
// block is self-consistent by construction, so a failed insertion here
// is a fatal invariant violation rather than a recoverable error.
//
// Meant to run in its own goroutine; returns when finishedBlocks is
// closed.
func RunBlockSink(finishedBlocks <-chan core.Block, bc *blockchain.Blockchain, mp *mempool.Mempool, broadcaster Broadcaster, log *logrus.Entry) {
	log = log.WithField("component", "block-sink")
	for block := range finishedBlocks {
		if err := bc.Insert(block); err != nil {
			log.WithField("hash", block.Hash()).Fatalf("miner-produced block failed insertion: %v", err)
		}

		for _, tx := range block.Content.Transactions {
			mp.Remove(tx.Hash())
		}

		log.WithField("hash", block.Hash()).Info("inserted mined block")
		broadcaster.BroadcastNewBlockHashes([]hashutil.H256{block.Hash()})
	}
}
