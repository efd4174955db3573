package hashutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum256Deterministic(t *testing.T) {
	a := Sum256([]byte("duskledger"))
	b := Sum256([]byte("duskledger"))
	assert.Equal(t, a, b)

	c := Sum256([]byte("other"))
	assert.NotEqual(t, a, c)
}

func TestHexRoundTrip(t *testing.T) {
	h := Sum256([]byte("round-trip"))
	s := h.String()

	parsed, err := FromHex(s)
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestFromHexBadLength(t *testing.T) {
	_, err := FromHex("deadbeef")
	assert.Error(t, err)
}

func TestCompareAndLessOrEqual(t *testing.T) {
	var zero, one H256
	one[31] = 1

	assert.Equal(t, -1, zero.Compare(one))
	assert.True(t, zero.LessOrEqual(one))
	assert.False(t, one.LessOrEqual(zero))
}

func TestJSONRoundTrip(t *testing.T) {
	h := Sum256([]byte("json"))

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var out H256
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, h, out)
}

func TestIsZero(t *testing.T) {
	var zero H256
	assert.True(t, zero.IsZero())
	assert.False(t, Sum256([]byte("x")).IsZero())
}
