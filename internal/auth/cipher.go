package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// RefreshCipher wraps refresh tokens in AES-GCM for transport. Clients only
// ever see the encrypted form, so a leaked storage value (which holds just a
// hash anyway) can never be replayed on the wire.
type RefreshCipher struct {
	aead cipher.AEAD
}

// NewRefreshCipher derives a 256-bit AES-GCM key from the configured secret.
func NewRefreshCipher(key string) (*RefreshCipher, error) {
	if key == "" {
		return nil, errors.New("auth: refresh cipher key is required")
	}
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("auth: init refresh cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("auth: init refresh cipher: %w", err)
	}
	return &RefreshCipher{aead: aead}, nil
}

// Encrypt seals the plaintext refresh token into its transport form.
func (c *RefreshCipher) Encrypt(plain string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a transport-form refresh token. Any malformed or tampered
// input maps to ErrInvalidRefreshToken.
func (c *RefreshCipher) Decrypt(encrypted string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrInvalidRefreshToken
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	return string(plain), nil
}
