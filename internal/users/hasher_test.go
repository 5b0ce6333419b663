package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher()

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)
	assert.NotContains(t, hash, "correct horse")

	assert.True(t, h.Verify(hash, "correct horse battery"))
	assert.False(t, h.Verify(hash, "wrong password"))
}

func TestBcryptHasherSaltsEachHash(t *testing.T) {
	h := NewBcryptHasher()

	first, err := h.Hash("same password")
	require.NoError(t, err)
	second, err := h.Hash("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, h.Verify(first, "same password"))
	assert.True(t, h.Verify(second, "same password"))
}
