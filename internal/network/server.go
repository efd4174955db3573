package network

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"duskledger/internal/hashutil"
)

// outboxCapacity bounds how many unsent messages a peer's writer
// goroutine will buffer; once a slow peer's outbox is full, broadcasts
// to it are dropped and replies to it block.
const outboxCapacity = 256

// Server is a length-prefixed-JSON socket transport: it accepts
// inbound connections, dials outbound ones, and dispatches every
// decoded Message as an Envelope onto a shared inbound channel for a
// gossip worker pool to consume.
type Server struct {
	log     *logrus.Entry
	inbound chan Envelope

	mu       sync.RWMutex
	peers    map[uuid.UUID]chan<- Message
	conns    map[uuid.UUID]net.Conn
	listener net.Listener
}

// NewServer builds a Server. Callers should range over Inbound() from
// one or more gossip workers.
func NewServer(log *logrus.Entry) *Server {
	return &Server{
		log:     log.WithField("component", "network"),
		inbound: make(chan Envelope, 256),
		peers:   make(map[uuid.UUID]chan<- Message),
		conns:   make(map[uuid.UUID]net.Conn),
	}
}

// Inbound returns the channel every accepted or dialed connection's
// reader delivers Envelopes onto.
func (s *Server) Inbound() <-chan Envelope {
	return s.inbound
}

// Listen accepts connections on addr until the listener is closed,
// spawning a connection handler per peer. Meant to be run in its own
// goroutine; returns the Accept error once the listener is closed.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("network: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.WithField("addr", addr).Info("listening for peers")
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new peers and severs every connected one.
// Already-running Listen/handleConn goroutines return shortly after.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener.Close()
	}
	for _, conn := range s.conns {
		conn.Close()
	}
	return nil
}

// Dial connects out to a peer at addr and registers it exactly like an
// accepted inbound connection.
func (s *Server) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("network: dial %s: %w", addr, err)
	}
	go s.handleConn(conn)
	return nil
}

func (s *Server) handleConn(conn net.Conn) {
	id := uuid.New()
	outbox := make(chan Message, outboxCapacity)
	log := s.log.WithField("peer", id)

	s.mu.Lock()
	s.peers[id] = outbox
	s.conns[id] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.peers, id)
		delete(s.conns, id)
		s.mu.Unlock()
		close(outbox)
		conn.Close()
		log.Info("peer disconnected")
	}()

	go func() {
		for msg := range outbox {
			if err := writeFramed(conn, msg); err != nil {
				log.WithError(err).Warn("failed writing to peer, closing connection")
				conn.Close()
				return
			}
		}
	}()

	for {
		msg, err := readFramed(conn)
		if err != nil {
			if err != io.EOF {
				log.WithError(err).Debug("peer read failed")
			}
			return
		}
		s.inbound <- Envelope{Msg: msg, From: PeerHandle{ID: id, outbox: outbox}}
	}
}

// writeFramed writes msg as a big-endian uint32 length prefix followed
// by its JSON encoding.
func writeFramed(w io.Writer, msg Message) error {
	data, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("network: encode message: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// readFramed reads one length-prefixed JSON message from r.
func readFramed(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return Message{}, err
	}
	return FromJSON(data)
}

// Broadcast enqueues msg for delivery to every connected peer.
func (s *Server) Broadcast(msg Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, outbox := range s.peers {
		select {
		case outbox <- msg:
		default:
			s.log.Warn("peer outbox full, dropping broadcast message")
		}
	}
}

// BroadcastNewBlockHashes satisfies miner.Broadcaster.
func (s *Server) BroadcastNewBlockHashes(hashes []hashutil.H256) {
	s.Broadcast(NewBlockHashes(hashes))
}

// BroadcastNewTransactionHashes satisfies generator.Broadcaster.
func (s *Server) BroadcastNewTransactionHashes(hashes []hashutil.H256) {
	s.Broadcast(NewTransactionHashes(hashes))
}

// PeerCount returns the number of currently connected peers.
func (s *Server) PeerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}
