// Command duskledgerd runs a single node: blockchain, mempool, miner,
// transaction generator, gossip worker pool, peer-to-peer server, and
// HTTP control surface, wired together and kept alive until signaled
// to stop.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	"duskledger/internal/fsm"
	"duskledger/internal/generator"
	"duskledger/internal/gossip"
	"duskledger/internal/mempool"
	"duskledger/internal/miner"
	"duskledger/internal/network"
	"duskledger/internal/rpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		listenAddr    string
		rpcAddr       string
		peers         []string
		gossipWorkers int
		minerLambda   uint64
		autostartMine bool
		genTheta      uint64
		autostartGen  bool
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:   "duskledgerd",
		Short: "Run a duskledger proof-of-work node",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(logLevel)
			if err != nil {
				return err
			}
			cfg := nodeConfig{
				listenAddr:    listenAddr,
				rpcAddr:       rpcAddr,
				peers:         peers,
				gossipWorkers: gossipWorkers,
				minerLambda:   minerLambda,
				autostartMine: autostartMine,
				genTheta:      genTheta,
				autostartGen:  autostartGen,
			}
			return runNode(cfg, log)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":7890", "address to accept peer connections on")
	cmd.Flags().StringVar(&rpcAddr, "rpc-listen", ":8080", "address to serve the HTTP control surface on")
	cmd.Flags().StringSliceVar(&peers, "peer", nil, "peer address to dial at startup (repeatable)")
	cmd.Flags().IntVar(&gossipWorkers, "gossip-workers", 4, "number of gossip worker goroutines")
	cmd.Flags().Uint64Var(&minerLambda, "miner-lambda", 0, "miner pacing parameter, microseconds between attempts")
	cmd.Flags().BoolVar(&autostartMine, "miner-autostart", false, "start the miner immediately instead of leaving it paused")
	cmd.Flags().Uint64Var(&genTheta, "generator-theta", 0, "transaction generator pacing parameter")
	cmd.Flags().BoolVar(&autostartGen, "generator-autostart", false, "start the transaction generator immediately instead of leaving it paused")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logrus level: trace, debug, info, warn, error")

	return cmd
}

func newLogger(level string) (*logrus.Entry, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	l := logrus.New()
	l.SetLevel(parsed)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrus.NewEntry(l), nil
}

type nodeConfig struct {
	listenAddr    string
	rpcAddr       string
	peers         []string
	gossipWorkers int
	minerLambda   uint64
	autostartMine bool
	genTheta      uint64
	autostartGen  bool
}

// node holds every long-running component so shutdown can unwind them.
type node struct {
	blockchain *blockchain.Blockchain
	mempool    *mempool.Mempool
	miner      *miner.Miner
	generator  *generator.Generator
	server     *network.Server
	gossipPool *gossip.Pool
	rpcServer  *http.Server

	finishedBlocks chan core.Block
	finishedTxns   chan core.SignedTransaction

	wg sync.WaitGroup
}

func runNode(cfg nodeConfig, log *logrus.Entry) error {
	log.Info("initializing duskledger node")

	n := &node{
		blockchain:     blockchain.New(),
		mempool:        mempool.New(),
		finishedBlocks: make(chan core.Block, 64),
		finishedTxns:   make(chan core.SignedTransaction, 64),
	}
	log.Info("blockchain and mempool initialized with genesis state")

	n.server = network.NewServer(log)
	n.miner = miner.New(n.blockchain, n.mempool, n.finishedBlocks, log)
	n.generator = generator.New(n.blockchain, n.finishedTxns, log)
	n.gossipPool = gossip.NewPool(n.blockchain, n.mempool, n.server.Inbound(), n.server, log)

	rpcHandler := rpc.New(n.blockchain, n.mempool, n.miner.Controller, n.generator.Controller, n.server, log)
	n.rpcServer = &http.Server{Addr: cfg.rpcAddr, Handler: rpcHandler}

	n.start(cfg, log)

	log.Info("node running, send SIGINT/SIGTERM to stop")
	waitForShutdownSignal()

	log.Info("shutdown signal received, stopping node")
	n.stop(log)
	return nil
}

func (n *node) start(cfg nodeConfig, log *logrus.Entry) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.miner.Run()
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.generator.Run()
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		miner.RunBlockSink(n.finishedBlocks, n.blockchain, n.mempool, n.server, log)
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		generator.RunTxSink(n.finishedTxns, n.mempool, n.server, log)
	}()

	// The gossip pool and peer listener are not joined on shutdown: the
	// pool drains a channel fed by every peer connection and only
	// returns once that channel is closed, and closing it safely
	// requires the listener to have stopped accepting first, so both
	// are left running until process exit rather than tracked in n.wg.
	go n.gossipPool.Run(cfg.gossipWorkers)
	go func() {
		if err := n.server.Listen(cfg.listenAddr); err != nil {
			log.WithError(err).Warn("peer listener stopped")
		}
	}()

	for _, addr := range cfg.peers {
		if err := n.server.Dial(addr); err != nil {
			log.WithField("peer", addr).WithError(err).Warn("failed to dial seed peer")
		}
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("rpc server stopped")
		}
	}()

	if cfg.autostartMine {
		n.miner.Controller.Signals <- fsm.Signal{Kind: fsm.SignalStart, Param: cfg.minerLambda}
	}
	if cfg.autostartGen {
		n.generator.Controller.Signals <- fsm.Signal{Kind: fsm.SignalStart, Param: cfg.genTheta}
	}
}

// sendExit delivers a SignalExit on ctl without risking an indefinite
// block: the channel is buffered to depth 1, so the first, non-blocking
// attempt only fails if a still-unconsumed signal already occupies it,
// in which case that stale signal is discarded in favor of Exit.
func sendExit(ctl *fsm.Controller) {
	select {
	case ctl.Signals <- fsm.Signal{Kind: fsm.SignalExit}:
		return
	default:
	}
	select {
	case <-ctl.Signals:
	default:
	}
	ctl.Signals <- fsm.Signal{Kind: fsm.SignalExit}
}

// stop unwinds the components tracked in n.wg — miner, generator,
// their sinks, and the rpc server — and waits for them to return.
// Both a Paused and a Running controller must observe Exit: Paused
// loops wake on either Signals or stopChan, Running loops only look at
// Signals, so both are delivered.
func (n *node) stop(log *logrus.Entry) {
	sendExit(n.miner.Controller)
	sendExit(n.generator.Controller)
	n.miner.Stop()
	n.generator.Stop()
	close(n.finishedBlocks)
	close(n.finishedTxns)

	if err := n.server.Close(); err != nil {
		log.WithError(err).Warn("error closing network server")
	}
	if err := n.rpcServer.Close(); err != nil {
		log.WithError(err).Warn("error closing rpc server")
	}

	n.wg.Wait()
	log.Info("node stopped")
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
