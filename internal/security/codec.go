package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// codecKeySize is the AES-256 key length in bytes.
const codecKeySize = 32

// DecryptionError indicates a ciphertext could not be decrypted: it is
// malformed, truncated, tampered with, or was sealed under a different key
// (key rotation). Callers should treat it as "re-enter the credential",
// never as a fallback to plaintext.
type DecryptionError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt credential: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decrypt credential: %s", e.Reason)
}

// Unwrap returns the wrapped cause, if any.
func (e *DecryptionError) Unwrap() error { return e.Err }

// Codec encrypts and decrypts stored credentials with AES-256-GCM under a
// single process-wide key. Encryption draws a fresh random nonce per call,
// so the same plaintext never produces the same ciphertext twice.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec constructs a Codec from a 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != codecKeySize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", codecKeySize, len(key))
	}
	block, errCipher := aes.NewCipher(key)
	if errCipher != nil {
		return nil, fmt.Errorf("codec: new cipher: %w", errCipher)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return nil, fmt.Errorf("codec: new gcm: %w", errGCM)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals a plaintext credential into the stored wire format
// "hex(nonce):hex(ciphertext)".
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, errRead := io.ReadFull(rand.Reader, nonce); errRead != nil {
		return "", fmt.Errorf("codec: read nonce: %w", errRead)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens a stored ciphertext and returns the plaintext credential.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	parts := strings.Split(ciphertext, ":")
	if len(parts) != 2 {
		return "", &DecryptionError{Reason: "malformed ciphertext"}
	}
	nonce, errNonce := hex.DecodeString(parts[0])
	if errNonce != nil {
		return "", &DecryptionError{Reason: "malformed nonce", Err: errNonce}
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", &DecryptionError{Reason: "truncated nonce"}
	}
	sealed, errSealed := hex.DecodeString(parts[1])
	if errSealed != nil {
		return "", &DecryptionError{Reason: "malformed payload", Err: errSealed}
	}
	plaintext, errOpen := c.aead.Open(nil, nonce, sealed, nil)
	if errOpen != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: errOpen}
	}
	return string(plaintext), nil
}
