// Package credentials stores signing keys encrypted on disk.
//
// Secrets live at <dir>/<service>/<keyID>.enc and are sealed with
// AES-256-GCM under a key derived from the store passphrase with argon2id.
// Every file carries its own salt, so two files holding the same key never
// share ciphertext. File format: magic (4) | salt (16) | nonce (12) | sealed.
package credentials

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrSecretNotFound is returned when no secret exists for the key id.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrEmptyPassphrase is returned when the store has no passphrase.
	ErrEmptyPassphrase = errors.New("credential store passphrase is empty")

	// ErrInvalidKeyID is returned for empty key ids.
	ErrInvalidKeyID = errors.New("key id cannot be empty")

	// ErrInvalidCiphertext is returned when a file is truncated or foreign.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

var fileMagic = []byte("ACK1")

const (
	saltSize = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = 32
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher block: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// seal encrypts plaintext. keyID is bound as associated data so a file
// renamed to another key id fails to open.
func seal(passphrase, keyID string, plaintext []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(plaintext) == 0 {
		return nil, errors.New("plaintext cannot be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(fileMagic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, fileMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, []byte(keyID)), nil
}

func open(passphrase, keyID string, data []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if !bytes.HasPrefix(data, fileMagic) {
		return nil, ErrInvalidCiphertext
	}
	data = data[len(fileMagic):]
	if len(data) < saltSize {
		return nil, ErrInvalidCiphertext
	}
	salt, data := data[:saltSize], data[saltSize:]

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(keyID))
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted data): %w", err)
	}
	return plaintext, nil
}
