// Package seal adds an optional encrypted-at-rest layer on top of
// pkg/persist's dump/load byte stream. A passphrase-derived AES-256-GCM
// key wraps the stream; a short cleartext prefix (version, salt, nonce)
// lets LoadSealed tell a sealed file from a plain one.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealVersion  = 1
	saltSize     = 16
	keySize      = 32 // AES-256
	pbkdf2Rounds = 100_000
)

// ErrWrongPassphrase is returned by Open when the supplied passphrase
// fails GCM authentication — either it is wrong or the stream is
// corrupted.
var ErrWrongPassphrase = errors.New("seal: wrong passphrase or corrupted stream")

// Seal encrypts plaintext (a full persist.Dump byte stream) under a key
// derived from passphrase, returning version||salt||nonce||ciphertext.
func Seal(passphrase string, plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("seal: generate salt: %w", err)
	}
	key := deriveKey(passphrase, salt)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealVersion)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Open decrypts a stream produced by Seal. ErrWrongPassphrase is returned
// (wrapped by the caller into ErrInvalidFile) on authentication failure.
func Open(passphrase string, sealed []byte) ([]byte, error) {
	if len(sealed) < 1+saltSize {
		return nil, errors.New("seal: stream too short")
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("seal: unsupported version %d", sealed[0])
	}
	salt := sealed[1 : 1+saltSize]
	key := deriveKey(passphrase, salt)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	rest := sealed[1+saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("seal: stream too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// IsSealed reports whether data begins with a recognized seal prefix.
// pkg/index's LoadSealed uses this to reject a file that is not sealed
// before calling Open; plain Load does not call it.
func IsSealed(data []byte) bool {
	return len(data) >= 1 && data[0] == sealVersion
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Rounds, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: new gcm: %w", err)
	}
	return gcm, nil
}
