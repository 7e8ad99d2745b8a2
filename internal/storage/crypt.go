package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Sealed object layout: magic || salt(16) || nonce(12) || ciphertext.
var sealMagic = []byte("DOCSEAL1")

const (
	saltLen    = 16
	pbkdf2Iter = 100_000
	keyLen     = 32
)

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iter, keyLen, sha256.New)
}

// seal encrypts data with AES-GCM under a key derived from passphrase.
func seal(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealMagic)+saltLen+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// isSealed reports whether data carries the sealed-object header.
func isSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// open decrypts a sealed object.
func open(data []byte, passphrase string) ([]byte, error) {
	if !isSealed(data) {
		return nil, fmt.Errorf("not a sealed object")
	}
	rest := data[len(sealMagic):]
	if len(rest) < saltLen {
		return nil, fmt.Errorf("sealed object truncated")
	}
	salt, rest := rest[:saltLen], rest[saltLen:]

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed object truncated")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt object: %w", err)
	}
	return plain, nil
}
