package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duskledger/internal/hashutil"
)

// leaf is a trivial Hashable wrapper around a fixed H256, used to drive
// the tree with deterministic leaf data.
type leaf hashutil.H256

func (l leaf) Hash() hashutil.H256 { return hashutil.H256(l) }

func leaves(n int) []leaf {
	out := make([]leaf, n)
	for i := range out {
		out[i] = leaf(hashutil.Sum256([]byte{byte(i)}))
	}
	return out
}

func TestEmptyTreeRootIsZero(t *testing.T) {
	tree := New[leaf](nil)
	assert.True(t, tree.Root().IsZero())
}

func TestEmptyTreeVerifyFails(t *testing.T) {
	tree := New[leaf](nil)
	proof := tree.Proof(0)
	assert.Nil(t, proof)
	assert.False(t, Verify(tree.Root(), hashutil.H256{}, proof, 0, 0))
}

func TestSingleLeafRootEqualsLeafHash(t *testing.T) {
	data := leaves(1)
	tree := New[leaf](data)
	assert.Equal(t, data[0].Hash(), tree.Root())
}

func TestProofOutOfRangeIsNil(t *testing.T) {
	data := leaves(2)
	tree := New[leaf](data)
	assert.Nil(t, tree.Proof(-1))
	assert.Nil(t, tree.Proof(2))
}

func TestProofVerifiesForEverySize(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 6, 7, 8, 13} {
		data := leaves(n)
		tree := New[leaf](data)
		for i := 0; i < n; i++ {
			proof := tree.Proof(i)
			ok := Verify(tree.Root(), data[i].Hash(), proof, i, n)
			require.Truef(t, ok, "leaf %d of %d failed to verify", i, n)
		}
	}
}

func TestTamperedProofFailsVerify(t *testing.T) {
	data := leaves(4)
	tree := New[leaf](data)
	proof := tree.Proof(1)
	require.NotEmpty(t, proof)

	proof[0] = hashutil.Sum256([]byte("tampered"))
	assert.False(t, Verify(tree.Root(), data[1].Hash(), proof, 1, 4))
}

func TestDeterministicRoot(t *testing.T) {
	data := leaves(5)
	a := New[leaf](data)
	b := New[leaf](data)
	assert.Equal(t, a.Root(), b.Root())
}

func TestOddLevelDuplicatesLastLeaf(t *testing.T) {
	// With 3 leaves the reference implementation duplicates leaf 2 so
	// the leaf row has even width; the duplicated leaf's proof at index
	// 2 should combine using the same hash twice.
	data := leaves(3)
	tree := New[leaf](data)
	proof := tree.Proof(2)
	require.NotEmpty(t, proof)
	assert.True(t, Verify(tree.Root(), data[2].Hash(), proof, 2, 3))
}
