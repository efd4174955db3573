// Package core defines the wire and storage value types shared by every
// component: transactions, headers, and blocks.
package core

import (
	"crypto/ed25519"
	"encoding/json"

	"duskledger/internal/cryptoutil"
	"duskledger/internal/hashutil"
)

// Transaction is the unsigned transfer instruction: move value from the
// (implicit, signature-derived) sender to receiver at the given nonce.
type Transaction struct {
	AccountNonce uint64            `json:"account_nonce"`
	Receiver     cryptoutil.Address `json:"receiver"`
	Value        uint64            `json:"value"`
}

// SignedTransaction pairs a Transaction with the signature and public
// key that authorize it.
type SignedTransaction struct {
	Transaction Transaction `json:"transaction"`
	Signature   []byte      `json:"signature"`
	PublicKey   []byte      `json:"public_key"`
}

// Sender derives the sending Address from the embedded public key.
func (st SignedTransaction) Sender() cryptoutil.Address {
	return cryptoutil.DeriveAddress(ed25519.PublicKey(st.PublicKey))
}

// VerifySignature reports whether Signature is a valid Ed25519
// signature by PublicKey over the canonical encoding of Transaction,
// and that PublicKey derives to sender.
func (st SignedTransaction) VerifySignature() bool {
	payload, err := json.Marshal(st.Transaction)
	if err != nil {
		return false
	}
	return cryptoutil.Verify(ed25519.PublicKey(st.PublicKey), st.Sender(), payload, st.Signature)
}

// Hash returns the SHA-256 digest of the SignedTransaction's canonical
// JSON encoding, satisfying hashutil.Hashable.
func (st SignedTransaction) Hash() hashutil.H256 {
	data, err := json.Marshal(st)
	if err != nil {
		// Transaction, Signature, and PublicKey are all plain
		// serializable values; this can only fail on programmer error.
		panic("core: marshal SignedTransaction: " + err.Error())
	}
	return hashutil.Sum256(data)
}

// Sign builds a SignedTransaction for tx using priv, whose derived
// public key becomes the sender.
func Sign(tx Transaction, priv ed25519.PrivateKey) SignedTransaction {
	payload, err := json.Marshal(tx)
	if err != nil {
		panic("core: marshal Transaction: " + err.Error())
	}
	pub := priv.Public().(ed25519.PublicKey)
	return SignedTransaction{
		Transaction: tx,
		Signature:   cryptoutil.Sign(priv, payload),
		PublicKey:   []byte(pub),
	}
}
