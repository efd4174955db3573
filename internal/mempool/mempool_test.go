package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskledger/internal/core"
	"duskledger/internal/cryptoutil"
	"duskledger/internal/hashutil"
)

func signedTx(seedByte byte, nonce uint64) core.SignedTransaction {
	var seed [32]byte
	seed[0] = seedByte
	kp := cryptoutil.GenerateFromSeed(seed)
	return core.Sign(core.Transaction{AccountNonce: nonce, Receiver: cryptoutil.Address{1}, Value: 1}, kp.Private)
}

func TestInsertAndContains(t *testing.T) {
	mp := New()
	tx := signedTx(1, 1)

	require.NoError(t, mp.Insert(tx))
	assert.True(t, mp.Contains(tx.Hash()))
	assert.Equal(t, 1, mp.Len())
}

func TestInsertRejectsBadSignature(t *testing.T) {
	mp := New()
	tx := signedTx(1, 1)
	tx.Transaction.Value = 999 // invalidates the signature

	assert.Error(t, mp.Insert(tx))
	assert.Equal(t, 0, mp.Len())
}

func TestInsertRejectsDuplicate(t *testing.T) {
	mp := New()
	tx := signedTx(1, 1)

	require.NoError(t, mp.Insert(tx))
	assert.Error(t, mp.Insert(tx))
	assert.Equal(t, 1, mp.Len())
}

func TestRemoveAndRemoveAll(t *testing.T) {
	mp := New()
	a := signedTx(1, 1)
	b := signedTx(2, 1)
	require.NoError(t, mp.Insert(a))
	require.NoError(t, mp.Insert(b))

	mp.Remove(a.Hash())
	assert.False(t, mp.Contains(a.Hash()))
	assert.Equal(t, 1, mp.Len())

	mp.RemoveAll([]hashutil.H256{b.Hash()})
	assert.Equal(t, 0, mp.Len())
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	mp := New()
	tx := signedTx(1, 1)
	require.NoError(t, mp.Insert(tx))

	snap := mp.Snapshot()
	delete(snap, tx.Hash())

	assert.Equal(t, 1, mp.Len())
}
