package network

import (
	"github.com/google/uuid"
)

// PeerHandle is what a gossip worker holds to reply to whoever sent it
// an Envelope: an identity plus a channel back to that peer's outbox.
type PeerHandle struct {
	ID uuid.UUID

	outbox chan<- Message
}

// Reply enqueues msg for delivery to the peer this handle addresses.
func (p PeerHandle) Reply(msg Message) {
	p.outbox <- msg
}

// Envelope pairs an inbound Message with the handle used to reply to
// its sender.
type Envelope struct {
	Msg  Message
	From PeerHandle
}
