package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	b := New("passphrase")
	sealed, err := b.Seal("api-key-123")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "api-key-123")
	assert.Contains(t, sealed, sealedPrefix)

	plain, err := b.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "api-key-123", plain)
}

func TestSealIsRandomized(t *testing.T) {
	b := New("passphrase")
	a, err := b.Seal("x")
	require.NoError(t, err)
	c, err := b.Seal("x")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestWrongKey(t *testing.T) {
	sealed, err := New("one").Seal("x")
	require.NoError(t, err)
	_, err = New("two").Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = New("").Open(sealed)
	assert.ErrorIs(t, err, ErrOpen)

	_, err = New("one").Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrOpen)
}

func TestDisabledBoxIsPassThrough(t *testing.T) {
	b := New("")
	assert.False(t, b.Enabled())
	s, err := b.Seal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", s)

	s, err = New("k").Open("legacy-plain")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plain", s)
}
