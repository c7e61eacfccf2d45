// Package encryption seals credential bundles at rest with AES-256-GCM.
//
// Sealed payloads are text: SealedPrefix followed by base64(nonce|ciphertext).
// Callers bind each payload to an owner through the associated data, so a
// bundle copied into another identity's directory fails to open.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// SealedPrefix marks a payload produced by Seal. Payloads without it are
// treated as plaintext by Open so bundles written before a key was
// configured stay readable.
const SealedPrefix = "enc:v1:"

const keySize = 32

// ErrKeyRequired is returned when a sealed payload meets a NoOpEncryptor.
var ErrKeyRequired = errors.New("payload is encrypted but no encryption key is configured")

// Encryptor seals and opens opaque payloads.
type Encryptor interface {
	Seal(plaintext, associated []byte) ([]byte, error)
	// Open reverses Seal. Unsealed input is returned unchanged.
	Open(payload, associated []byte) ([]byte, error)
}

// IsSealed reports whether payload carries the sealed prefix.
func IsSealed(payload []byte) bool {
	return bytes.HasPrefix(payload, []byte(SealedPrefix))
}

// New returns an AESEncryptor for key, or a NoOpEncryptor when key is empty.
func New(key string) (Encryptor, error) {
	if key == "" {
		return NewNoOpEncryptor(), nil
	}
	return NewAESEncryptor(key)
}

// GenerateKey returns a random base64 key suitable for New.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

type AESEncryptor struct {
	aead cipher.AEAD
}

// NewAESEncryptor accepts a base64 key or 32 raw bytes.
func NewAESEncryptor(key string) (*AESEncryptor, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != keySize {
		raw = []byte(key)
	}
	if len(raw) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &AESEncryptor{aead: aead}, nil
}

func (e *AESEncryptor) Seal(plaintext, associated []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, associated)

	out := make([]byte, 0, len(SealedPrefix)+base64.StdEncoding.EncodedLen(len(sealed)))
	out = append(out, SealedPrefix...)
	return base64.StdEncoding.AppendEncode(out, sealed), nil
}

func (e *AESEncryptor) Open(payload, associated []byte) ([]byte, error) {
	if !IsSealed(payload) {
		return payload, nil
	}

	data, err := base64.StdEncoding.AppendDecode(nil, payload[len(SealedPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := e.aead.Open(nil, data[:n], data[n:], associated)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// NoOpEncryptor stores payloads as plaintext. Used when no key is configured.
type NoOpEncryptor struct{}

func NewNoOpEncryptor() *NoOpEncryptor {
	return &NoOpEncryptor{}
}

func (NoOpEncryptor) Seal(plaintext, _ []byte) ([]byte, error) {
	return plaintext, nil
}

func (NoOpEncryptor) Open(payload, _ []byte) ([]byte, error) {
	if IsSealed(payload) {
		return nil, ErrKeyRequired
	}
	return payload, nil
}
