package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskledger/internal/core"
	"duskledger/internal/cryptoutil"
)

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	addr := cryptoutil.Address{1}
	s[addr] = Account{Nonce: 1, Balance: 100}

	clone := s.Clone()
	clone[addr] = Account{Nonce: 2, Balance: 50}

	assert.Equal(t, Account{Nonce: 1, Balance: 100}, s[addr])
	assert.Equal(t, Account{Nonce: 2, Balance: 50}, clone[addr])
}

func TestApplyDebitsSenderCreditsReceiver(t *testing.T) {
	var seed [32]byte
	seed[0] = 9
	kp := cryptoutil.GenerateFromSeed(seed)
	receiver := cryptoutil.Address{2}

	s := New()
	s[kp.Address] = Account{Nonce: 0, Balance: 100}
	tx := core.Sign(core.Transaction{AccountNonce: 1, Receiver: receiver, Value: 40}, kp.Private)

	require.NoError(t, s.Apply(tx))
	assert.Equal(t, Account{Nonce: 1, Balance: 60}, s[kp.Address])
	assert.Equal(t, Account{Nonce: 0, Balance: 40}, s[receiver])
}

func TestApplyCreatesUnknownReceiver(t *testing.T) {
	var seed [32]byte
	seed[0] = 11
	kp := cryptoutil.GenerateFromSeed(seed)
	s := New()
	s[kp.Address] = Account{Nonce: 0, Balance: 100}
	receiver := cryptoutil.Address{0xAB}

	tx := core.Sign(core.Transaction{AccountNonce: 1, Receiver: receiver, Value: 30}, kp.Private)
	require.NoError(t, s.Apply(tx))

	assert.Equal(t, Account{Nonce: 0, Balance: 30}, s[receiver])
}

func TestApplyRejectsUnknownSender(t *testing.T) {
	var seed [32]byte
	seed[0] = 12
	kp := cryptoutil.GenerateFromSeed(seed)
	s := New()

	tx := core.Sign(core.Transaction{AccountNonce: 1, Receiver: cryptoutil.Address{1}, Value: 1}, kp.Private)
	assert.Error(t, s.Apply(tx))
}

func TestApplyRejectsInsufficientBalance(t *testing.T) {
	var seed [32]byte
	seed[0] = 13
	kp := cryptoutil.GenerateFromSeed(seed)
	s := New()
	s[kp.Address] = Account{Nonce: 0, Balance: 10}

	tx := core.Sign(core.Transaction{AccountNonce: 1, Receiver: cryptoutil.Address{1}, Value: 20}, kp.Private)
	assert.Error(t, s.Apply(tx))
}
