package utils

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrUnknownKeyVersion  = errors.New("unknown encryption key version")
)

// Cipher encrypts MT5 account passwords at rest. Ciphertexts start with a
// one-byte key version so the platform key can be rotated without
// re-encrypting existing rows in one pass.
type Cipher struct {
	keys map[byte][]byte
	// version used for new ciphertexts
	current byte
}

// NewCipher takes the hex-encoded 32-byte platform key and its version.
// Rotated-out keys can be registered with AddKey so old rows stay readable.
func NewCipher(hexKey string, version int) (*Cipher, error) {
	if version < 1 || version > 255 {
		return nil, fmt.Errorf("key version out of range: %d", version)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Cipher{
		keys:    map[byte][]byte{byte(version): key},
		current: byte(version),
	}, nil
}

func (c *Cipher) AddKey(hexKey string, version int) error {
	if version < 1 || version > 255 {
		return fmt.Errorf("key version out of range: %d", version)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	c.keys[byte(version)] = key
	return nil
}

// Encrypt seals plaintext as [version][nonce][sealed].
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(c.keys[c.current])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, c.current)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 1 {
		return nil, ErrCiphertextTooShort
	}
	key, ok := c.keys[ciphertext[0]]
	if !ok {
		return nil, ErrUnknownKeyVersion
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < 1+aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}

	nonce := ciphertext[1 : 1+aead.NonceSize()]
	sealed := ciphertext[1+aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
