// Package rpc provides the HTTP control and inspection surface for a
// node: starting/tuning the miner and transaction generator, poking
// the network, and querying the blockchain and mempool.
package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"duskledger/internal/blockchain"
	"duskledger/internal/fsm"
	"duskledger/internal/mempool"
	"duskledger/internal/network"
)

// Pinger is the subset of the network transport the /network/ping
// route needs: the ability to broadcast an arbitrary message.
type Pinger interface {
	Broadcast(msg network.Message)
}

// Server is the HTTP control surface. It holds no state of its own;
// every route reads or signals the shared blockchain, mempool, and
// FSM controllers passed to New.
type Server struct {
	router *mux.Router

	blockchain *blockchain.Blockchain
	mempool    *mempool.Mempool
	miner      *fsm.Controller
	generator  *fsm.Controller
	pinger     Pinger
	log        *logrus.Entry
}

// New builds a Server and wires its routes.
func New(bc *blockchain.Blockchain, mp *mempool.Mempool, minerCtl, generatorCtl *fsm.Controller, pinger Pinger, log *logrus.Entry) *Server {
	s := &Server{
		blockchain: bc,
		mempool:    mp,
		miner:      minerCtl,
		generator:  generatorCtl,
		pinger:     pinger,
		log:        log.WithField("component", "rpc"),
	}
	s.router = mux.NewRouter()
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler, so Server can be passed directly
// to http.Server or httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/miner/start", s.handleMinerStart).Methods(http.MethodGet)
	s.router.HandleFunc("/tx-generator/start", s.handleGeneratorStart).Methods(http.MethodGet)
	s.router.HandleFunc("/network/ping", s.handleNetworkPing).Methods(http.MethodGet)
	s.router.HandleFunc("/blockchain/longest-chain", s.handleLongestChain).Methods(http.MethodGet)
	s.router.HandleFunc("/blockchain/longest-chain-tx", s.handleLongestChainTx).Methods(http.MethodGet)
	s.router.HandleFunc("/blockchain/longest-chain-tx-count", s.handleLongestChainTxCount).Methods(http.MethodGet)
	s.router.HandleFunc("/blockchain/state", s.handleBlockchainState).Methods(http.MethodGet)
	s.router.HandleFunc("/blockchain/num-blocks", s.handleNumBlocks).Methods(http.MethodGet)
	s.router.HandleFunc("/mempool", s.handleMempool).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no such route: %s", r.URL.Path))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("rpc: failed encoding response")
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Success: false, Message: message})
}

func parseUint64Query(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %q query parameter", name)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q must be a non-negative integer: %w", name, err)
	}
	return v, nil
}

func (s *Server) handleMinerStart(w http.ResponseWriter, r *http.Request) {
	lambda, err := parseUint64Query(r, "lambda")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.miner.Signals <- fsm.Signal{Kind: fsm.SignalStart, Param: lambda}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "lambda": lambda})
}

func (s *Server) handleGeneratorStart(w http.ResponseWriter, r *http.Request) {
	theta, err := parseUint64Query(r, "theta")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.generator.Signals <- fsm.Signal{Kind: fsm.SignalStart, Param: theta}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "theta": theta})
}

func (s *Server) handleNetworkPing(w http.ResponseWriter, r *http.Request) {
	nonce := uuid.New().String()
	s.pinger.Broadcast(network.Ping(nonce))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "nonce": nonce})
}

func (s *Server) handleLongestChain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.blockchain.LongestChain())
}

func (s *Server) handleLongestChainTx(w http.ResponseWriter, r *http.Request) {
	chain := s.blockchain.LongestChain()
	out := make([][]string, 0, len(chain))
	for _, hash := range chain {
		block, ok := s.blockchain.GetBlock(hash)
		if !ok {
			writeError(w, http.StatusInternalServerError, "longest-chain block vanished")
			return
		}
		hashes := make([]string, 0, len(block.Content.Transactions))
		for _, tx := range block.Content.Transactions {
			hashes = append(hashes, tx.Hash().String())
		}
		out = append(out, hashes)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLongestChainTxCount(w http.ResponseWriter, r *http.Request) {
	chain := s.blockchain.LongestChain()
	count := 0
	for _, hash := range chain {
		block, ok := s.blockchain.GetBlock(hash)
		if !ok {
			writeError(w, http.StatusInternalServerError, "longest-chain block vanished")
			return
		}
		count += len(block.Content.Transactions)
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (s *Server) handleBlockchainState(w http.ResponseWriter, r *http.Request) {
	idx, err := parseUint64Query(r, "block")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chain := s.blockchain.LongestChain()
	if idx >= uint64(len(chain)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("block index %d out of bounds (longest chain has %d blocks)", idx, len(chain)))
		return
	}
	node, ok := s.blockchain.GetNode(chain[idx])
	if !ok {
		writeError(w, http.StatusInternalServerError, "longest-chain block vanished")
		return
	}

	entries := make([]string, 0, len(node.State))
	for addr, acct := range node.State {
		entries = append(entries, fmt.Sprintf("(%s, %d, %d)", addr.String(), acct.Nonce, acct.Balance))
	}
	sort.Strings(entries)
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleNumBlocks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"num_blocks": len(s.blockchain.LongestChain())})
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	snapshot := s.mempool.Snapshot()
	entries := make([]string, 0, len(snapshot))
	for _, tx := range snapshot {
		entries = append(entries, fmt.Sprintf("(%d, %s, %d)", tx.Transaction.AccountNonce, tx.Transaction.Receiver.String(), tx.Transaction.Value))
	}
	sort.Strings(entries)
	writeJSON(w, http.StatusOK, entries)
}
