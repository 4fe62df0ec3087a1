package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD seals small blobs (the user profile) at rest with XChaCha20-Poly1305.
// Output layout: nonce || ciphertext.
type AEAD struct{ aead cipher.AEAD }

func New(key []byte) (*AEAD, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a}, nil
}

func (a *AEAD) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (a *AEAD) Open(sealed []byte) ([]byte, error) {
	ns := a.aead.NonceSize()
	if len(sealed) < ns+a.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return a.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
}
