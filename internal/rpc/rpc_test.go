package rpc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskledger/internal/blockchain"
	"duskledger/internal/core"
	"duskledger/internal/fsm"
	"duskledger/internal/mempool"
	"duskledger/internal/network"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fakePinger struct {
	mu  sync.Mutex
	got []network.Message
}

func (f *fakePinger) Broadcast(msg network.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, msg)
}

func newTestServer() (*Server, *fsm.Controller, *fsm.Controller, *fakePinger) {
	bc := blockchain.New()
	mp := mempool.New()
	minerCtl := fsm.NewController()
	generatorCtl := fsm.NewController()
	pinger := &fakePinger{}
	s := New(bc, mp, minerCtl, generatorCtl, pinger, testLogger())
	return s, minerCtl, generatorCtl, pinger
}

func TestMinerStartSignalsController(t *testing.T) {
	s, minerCtl, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/miner/start?lambda=42", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sig := <-minerCtl.Signals
	assert.Equal(t, fsm.SignalStart, sig.Kind)
	assert.Equal(t, uint64(42), sig.Param)
}

func TestMinerStartMissingLambdaIsBadRequest(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/miner/start", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
}

func TestGeneratorStartSignalsController(t *testing.T) {
	s, _, generatorCtl, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/tx-generator/start?theta=7", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	sig := <-generatorCtl.Signals
	assert.Equal(t, fsm.SignalStart, sig.Kind)
	assert.Equal(t, uint64(7), sig.Param)
}

func TestNetworkPingBroadcasts(t *testing.T) {
	s, _, _, pinger := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/network/ping", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, pinger.got, 1)
	assert.Equal(t, network.KindPing, pinger.got[0].Kind)
}

func TestLongestChainAndNumBlocks(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/blockchain/longest-chain", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var hashes []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hashes))
	assert.Len(t, hashes, 1)

	req = httptest.NewRequest(http.MethodGet, "/blockchain/num-blocks", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["num_blocks"])
}

func TestBlockchainStateOutOfBoundsIsBadRequest(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/blockchain/state?block=5", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlockchainStateReturnsGenesisAccounts(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/blockchain/state?block=0", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 3)
}

func TestMempoolListsPendingTransactions(t *testing.T) {
	bc := blockchain.New()
	mp := mempool.New()
	minerCtl := fsm.NewController()
	generatorCtl := fsm.NewController()
	s := New(bc, mp, minerCtl, generatorCtl, &fakePinger{}, testLogger())

	genesisKP := blockchain.GenesisAccount(0)
	receiver := blockchain.GenesisAccount(1).Address
	tx := core.Sign(core.Transaction{AccountNonce: 1, Receiver: receiver, Value: 3}, genesisKP.Private)
	require.NoError(t, mp.Insert(tx))

	req := httptest.NewRequest(http.MethodGet, "/mempool", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], receiver.String())
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/no-such-route", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
