// Package cryptoutil provides AES-256-GCM helpers for protecting secrets at rest.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12

	// Versioned prefix to allow future key/algorithm rotations without data migrations.
	secretCipherPrefixV1 = "v1:"
	noopPrefix           = "noop:"
)

var (
	// ErrAuthenticationFailure is returned when a ciphertext does not verify
	// under the given key and nonce. No plaintext is ever returned with it.
	ErrAuthenticationFailure = errors.New("authentication failure")
	// ErrInvalidKey is returned for keys that are not 32 bytes.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// GenerateKey returns a fresh random 256-bit key encoded as standard base64.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// ParseKey decodes a 32-byte key given as base64 or hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == KeySize {
		return b, nil
	}
	if b, err := hex.DecodeString(s); err == nil && len(b) == KeySize {
		return b, nil
	}
	return nil, fmt.Errorf("%w: want %d bytes as base64 or hex", ErrInvalidKey, KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: aes-gcm key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key with a fresh random 96-bit nonce.
// The returned ciphertext carries the GCM tag.
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal. Any tag, key or nonce mismatch
// yields ErrAuthenticationFailure.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrAuthenticationFailure, NonceSize)
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return pt, nil
}

// EncryptString encrypts plaintext with a base64 key and returns base64 nonce and ciphertext.
func EncryptString(b64Key, plaintext string) (nonceB64, ciphertextB64 string, err error) {
	key, err := ParseKey(b64Key)
	if err != nil {
		return "", "", err
	}
	nonce, ct, err := Seal(key, []byte(plaintext))
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(nonce), base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptString reverses EncryptString.
func DecryptString(b64Key, nonceB64, ciphertextB64 string) (string, error) {
	key, err := ParseKey(b64Key)
	if err != nil {
		return "", err
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("%w: decode nonce: %w", ErrAuthenticationFailure, err)
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %w", ErrAuthenticationFailure, err)
	}
	pt, err := Open(key, nonce, ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Encryptor encrypts and decrypts self-describing secret strings.
type Encryptor interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// AESGCMEncryptor implements Encryptor as "v1:" + base64(nonce||ciphertext).
type AESGCMEncryptor struct {
	key []byte
}

// NewAESGCMEncryptor constructs a new AESGCMEncryptor. Key must be 32 bytes (AES-256).
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: aes-gcm key must be %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return &AESGCMEncryptor{key: append([]byte(nil), key...)}, nil
}

// Encrypt seals plaintext and returns the versioned envelope.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte) (string, error) {
	nonce, ct, err := Seal(e.key, plaintext)
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, len(nonce)+len(ct))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return secretCipherPrefixV1 + base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt opens an envelope created by Encrypt. noop: envelopes are accepted
// so values written before a key was configured stay readable.
func (e *AESGCMEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	if strings.HasPrefix(ciphertext, noopPrefix) {
		return NoopEncryptor{}.Decrypt(ciphertext)
	}

	b64, ok := strings.CutPrefix(ciphertext, secretCipherPrefixV1)
	if !ok {
		return nil, fmt.Errorf("unknown ciphertext version (prefix: %.10s)", ciphertext)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrAuthenticationFailure, err)
	}
	if len(data) < NonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrAuthenticationFailure)
	}
	return Open(e.key, data[:NonceSize], data[NonceSize:])
}

// NoopEncryptor stores plaintext with a prefix marker. Used when no key is configured.
type NoopEncryptor struct{}

// Encrypt wraps plaintext in a noop: envelope.
func (NoopEncryptor) Encrypt(plaintext []byte) (string, error) {
	return noopPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

// Decrypt unwraps a noop: envelope.
func (NoopEncryptor) Decrypt(ciphertext string) ([]byte, error) {
	b64, ok := strings.CutPrefix(ciphertext, noopPrefix)
	if !ok {
		return nil, errors.New("invalid noop ciphertext")
	}
	return base64.StdEncoding.DecodeString(b64)
}

// IsEnvelope reports whether s looks like an Encryptor output.
func IsEnvelope(s string) bool {
	return strings.HasPrefix(s, secretCipherPrefixV1) || strings.HasPrefix(s, noopPrefix)
}
