package aesgcm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))

	plaintext := []byte(`[{"uid":"aa","pk_u":"bb","c":"cc","z":"dd","p":"123"}]`)
	ct, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ct)

	pt, err := Decrypt(key, ct)
	require.NoError(t, err)
	require.Equal(t, plaintext, pt)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	var key, wrongKey [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))
	copy(wrongKey[:], []byte("fedcba9876543210"))

	ct, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)

	_, err = Decrypt(wrongKey, ct)
	require.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	var key [KeySize]byte
	copy(key[:], []byte("0123456789abcdef"))

	ct, err := Encrypt(key, []byte("hello"))
	require.NoError(t, err)
	ct[0] ^= 0xFF

	_, err = Decrypt(key, ct)
	require.Error(t, err)
}
