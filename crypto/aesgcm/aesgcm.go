// Package aesgcm encrypts the UAV directory payload exchanged between TA
// and GS. The wire format fixes the nonce at all-zero bytes, so callers
// MUST derive a fresh key per session (see the ssk derivation in package gs
// and package ta) and MUST NOT reuse a key across two ciphertexts.
package aesgcm

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// NonceSize is the GCM nonce length mandated by the wire format.
const NonceSize = 12

var zeroNonce = make([]byte, NonceSize)

// Encrypt seals plaintext under key with the fixed zero nonce.
func Encrypt(key [KeySize]byte, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, zeroNonce, plaintext, nil), nil
}

// Decrypt opens ciphertext under key with the fixed zero nonce.
func Decrypt(key [KeySize]byte, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	pt, err := gcm.Open(nil, zeroNonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("aes-gcm open: %w", err)
	}
	return pt, nil
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nil
}
