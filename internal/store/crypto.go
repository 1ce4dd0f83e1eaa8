package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"rostra/internal/domain"
)

// keySalt is fixed; key rotation happens by changing the process secret.
var keySalt = []byte("rostra-session-store-v1")

const gcmTagSize = 16

// Cipher provides authenticated encryption for records leaving process
// memory. The 32-byte key derives from the process secret via HKDF-SHA256
// with a fixed salt.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the store key from the session secret. The secret must
// be at least 32 bytes.
func NewCipher(secret string) (*Cipher, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(secret), keySalt, []byte("record-encryption"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext into a base64(nonce || tag || ciphertext) blob
// with a fresh random nonce per write.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	// Seal appends the tag after the ciphertext; the stored layout puts the
	// tag first.
	ct := sealed[:len(sealed)-gcmTagSize]
	tag := sealed[len(sealed)-gcmTagSize:]

	blob := make([]byte, 0, len(nonce)+len(sealed))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a blob produced by Encrypt. Any tampering or key mismatch
// surfaces as ErrCorrupted.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorrupted, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize+gcmTagSize {
		return nil, fmt.Errorf("%w: blob too short", domain.ErrCorrupted)
	}
	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+gcmTagSize]
	ct := blob[nonceSize+gcmTagSize:]

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorrupted, err)
	}
	return plaintext, nil
}
