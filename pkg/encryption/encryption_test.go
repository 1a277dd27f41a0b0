package encryption

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := KeyFromHex(strings.Repeat("ab", 32))
	require.NoError(t, err)
	return key
}

func TestKeyFromHex(t *testing.T) {
	key, err := KeyFromHex(strings.Repeat("00", 32))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = KeyFromHex("not hex at all")
	assert.Error(t, err)

	_, err = KeyFromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestSealOpenRoundtrip(t *testing.T) {
	key := testKey(t)
	plaintext := []byte(`{"access_token":"secret-value"}`)

	sealed, err := Seal(plaintext, key)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plaintext))

	opened, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealIsNonDeterministic(t *testing.T) {
	key := testKey(t)

	a, err := Seal([]byte("same input"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same input"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestOpenRejectsTampering(t *testing.T) {
	key := testKey(t)

	sealed, err := Seal([]byte("payload"), key)
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0x01
	_, err = Open(sealed, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key := testKey(t)
	other, err := KeyFromHex(hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32)))
	require.NoError(t, err)

	sealed, err := Seal([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Open(sealed, other)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpenRejectsShortInput(t *testing.T) {
	_, err := Open([]byte{0x01, 0x02}, testKey(t))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealRejectsBadKeyLength(t *testing.T) {
	_, err := Seal([]byte("payload"), []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}
