package network

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"duskledger/internal/hashutil"
)

// linkCapacity bounds the in-process channel connecting two Loopback
// nodes, mirroring the teacher simulation's buffered IncomingMessages.
const linkCapacity = 100

// Loopback is an in-process transport: an in-memory stand-in for
// Server used by tests that wire several nodes together without real
// sockets. Where the teacher's SimulatedNetwork routed a single
// untyped NetworkMessage{Type, Data} to one of two fixed broadcast
// channels, Loopback routes a typed Message into the same
// Envelope/PeerHandle shape a gossip worker consumes from a real
// Server, so gossip code never needs to know which transport it runs
// over.
type Loopback struct {
	log     *logrus.Entry
	inbound chan Envelope

	mu    sync.Mutex
	peers map[uuid.UUID]chan Message
}

// NewLoopback builds a disconnected Loopback node.
func NewLoopback(log *logrus.Entry) *Loopback {
	return &Loopback{
		log:     log.WithField("component", "network-loopback"),
		inbound: make(chan Envelope, 256),
		peers:   make(map[uuid.UUID]chan Message),
	}
}

// Inbound returns the channel a gossip worker ranges over.
func (l *Loopback) Inbound() <-chan Envelope {
	return l.inbound
}

// Connect wires l and peer together bidirectionally and returns the
// PeerHandle l can use to address peer directly. peer receives the
// symmetric handle addressing l as the From field of every Envelope it
// gets from this link.
func (l *Loopback) Connect(peer *Loopback) PeerHandle {
	lToPeer := make(chan Message, linkCapacity)
	peerToL := make(chan Message, linkCapacity)

	idOfLAtPeer := uuid.New()
	idOfPeerAtL := uuid.New()

	l.mu.Lock()
	l.peers[idOfPeerAtL] = lToPeer
	l.mu.Unlock()

	peer.mu.Lock()
	peer.peers[idOfLAtPeer] = peerToL
	peer.mu.Unlock()

	go forward(lToPeer, peer.inbound, PeerHandle{ID: idOfLAtPeer, outbox: peerToL})
	go forward(peerToL, l.inbound, PeerHandle{ID: idOfPeerAtL, outbox: lToPeer})

	return PeerHandle{ID: idOfPeerAtL, outbox: lToPeer}
}

// forward relays every message off in as an Envelope onto out, stamped
// with the handle its recipient should reply through. Returns when in
// is closed.
func forward(in <-chan Message, out chan<- Envelope, from PeerHandle) {
	for msg := range in {
		out <- Envelope{Msg: msg, From: from}
	}
}

// Broadcast enqueues msg for delivery to every connected peer.
func (l *Loopback) Broadcast(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, outbox := range l.peers {
		select {
		case outbox <- msg:
		default:
			l.log.Warn("peer link full, dropping broadcast message")
		}
	}
}

// BroadcastNewBlockHashes satisfies miner.Broadcaster.
func (l *Loopback) BroadcastNewBlockHashes(hashes []hashutil.H256) {
	l.Broadcast(NewBlockHashes(hashes))
}

// BroadcastNewTransactionHashes satisfies generator.Broadcaster.
func (l *Loopback) BroadcastNewTransactionHashes(hashes []hashutil.H256) {
	l.Broadcast(NewTransactionHashes(hashes))
}
