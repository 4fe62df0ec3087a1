package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	a, err := New(make([]byte, 32))
	require.NoError(t, err)

	sealed, err := a.Seal([]byte(`{"name":"Asha"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "Asha")

	plain, err := a.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Asha"}`, string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = a.Open(sealed)
	assert.Error(t, err)

	_, err = a.Open([]byte("short"))
	assert.Error(t, err)
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(make([]byte, 16))
	assert.Error(t, err)
}
