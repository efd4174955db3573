// Package generator implements the self-driving transaction producer:
// each tick it picks a funded sender, a distinct receiver, and a value
// within the sender's means, signs a transfer, and submits it to a
// companion sink.
package generator

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	"duskledger/internal/fsm"
)

// Generator drives the transaction-generation FSM described above.
type Generator struct {
	Controller *fsm.Controller

	blockchain   *blockchain.Blockchain
	finishedTxns chan<- core.SignedTransaction
	log          *logrus.Entry
	stopChan     chan struct{}
}

// New builds a Generator that submits signed transactions onto
// finishedTxns.
func New(bc *blockchain.Blockchain, finishedTxns chan<- core.SignedTransaction, log *logrus.Entry) *Generator {
	return &Generator{
		Controller:   fsm.NewController(),
		blockchain:   bc,
		finishedTxns: finishedTxns,
		log:          log.WithField("component", "generator"),
		stopChan:     make(chan struct{}),
	}
}

// Run drives the generator loop until the controller reaches Shutdown.
// Meant to be launched in its own goroutine.
func (g *Generator) Run() {
	for {
		if !g.awaitSignalIfPaused() {
			return
		}
		if g.Controller.State() == fsm.Shutdown {
			return
		}

		g.drainPendingSignals()
		if g.Controller.State() == fsm.Shutdown {
			return
		}

		skipped := !g.tick()

		theta := g.Controller.Param()
		if g.Controller.State() == fsm.Running && theta != 0 && !skipped {
			time.Sleep(time.Duration(theta*200) * time.Microsecond)
		}
	}
}

func (g *Generator) awaitSignalIfPaused() bool {
	if g.Controller.State() != fsm.Paused {
		return true
	}
	select {
	case sig := <-g.Controller.Signals:
		g.applyLogged(sig)
		return true
	case <-g.stopChan:
		return false
	}
}

func (g *Generator) drainPendingSignals() {
	select {
	case sig := <-g.Controller.Signals:
		g.applyLogged(sig)
	default:
	}
}

func (g *Generator) applyLogged(sig fsm.Signal) {
	g.Controller.Apply(sig)
	switch sig.Kind {
	case fsm.SignalStart:
		g.log.WithField("theta", sig.Param).Info("starting continuous generation")
	case fsm.SignalExit:
		g.log.Info("shutting down")
	}
}

// Stop unblocks a Paused generator loop, mirroring Miner.Stop.
func (g *Generator) Stop() {
	close(g.stopChan)
}

// tick runs one generation attempt. It returns false if the tick was
// skipped (zero sender balance, or too little balance to pick a
// nonzero value) — skipped ticks do not incur the pacing sleep, since
// the reference implementation's skip path exits the loop body before
// reaching the sleep statement.
func (g *Generator) tick() bool {
	_, parentState := g.blockchain.TipSnapshot()

	senderSeed := byte(rand.Intn(3))
	sender := blockchain.GenesisAccount(senderSeed)

	senderAcct, ok := parentState[sender.Address]
	if !ok || senderAcct.Balance == 0 {
		return false
	}

	receiverSeed := senderSeed
	for receiverSeed == senderSeed {
		receiverSeed = byte(rand.Intn(3))
	}
	receiver := blockchain.GenesisAccount(receiverSeed)

	maxValue := senderAcct.Balance / 2
	if maxValue <= 1 {
		return false
	}
	value := uint64(rand.Int63n(int64(maxValue-1))) + 1

	tx := core.Transaction{
		AccountNonce: senderAcct.Nonce + 1,
		Receiver:     receiver.Address,
		Value:        value,
	}
	signed := core.Sign(tx, sender.Private)

	g.log.WithField("hash", signed.Hash()).Debug("generated transaction")
	g.finishedTxns <- signed
	return true
}
