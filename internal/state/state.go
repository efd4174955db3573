// Package state implements the per-block account snapshot: a mapping
// from Address to (nonce, balance), cloned and mutated once per block
// insertion.
package state

import (
	"fmt"

	"duskledger/internal/core"
	"duskledger/internal/cryptoutil"
)

// Account is the nonce/balance pair tracked per address.
type Account struct {
	Nonce   uint64
	Balance uint64
}

// State maps addresses to their account snapshot at a particular block.
type State map[cryptoutil.Address]Account

// New returns an empty State.
func New() State {
	return make(State)
}

// Clone deep-copies the map so the parent's state is never mutated when
// a child block is applied on top of it.
func (s State) Clone() State {
	out := make(State, len(s))
	for addr, acct := range s {
		out[addr] = acct
	}
	return out
}

// Apply mutates s in place for tx: the sender's nonce is incremented and
// balance debited, and the receiver's balance is credited, creating the
// receiver's account with a zero nonce if absent.
//
// Callers are expected to have already validated signature, sender
// presence, nonce sequencing, and sufficient balance (blockchain.Insert
// does this against the parent snapshot before calling Apply); Apply
// itself re-checks sender presence and balance as a last line of
// defense against a caller bypassing that validation.
func (s State) Apply(tx core.SignedTransaction) error {
	sender := tx.Sender()
	senderAcct, ok := s[sender]
	if !ok {
		return fmt.Errorf("state: apply: sender %s not present", sender)
	}
	if senderAcct.Balance < tx.Transaction.Value {
		return fmt.Errorf("state: apply: sender %s balance %d insufficient for value %d",
			sender, senderAcct.Balance, tx.Transaction.Value)
	}

	senderAcct.Nonce++
	senderAcct.Balance -= tx.Transaction.Value
	s[sender] = senderAcct

	receiver := tx.Transaction.Receiver
	receiverAcct := s[receiver] // zero value (0,0) if absent
	receiverAcct.Balance += tx.Transaction.Value
	s[receiver] = receiverAcct

	return nil
}
