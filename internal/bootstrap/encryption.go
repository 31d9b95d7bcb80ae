package bootstrap

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/a11y-scanner/internal/data/cryptoutil"
)

// CreateEncryptor creates an AES-GCM encryptor from the provided key.
// The key may be base64 (as printed by keygen) or hex encoded 32 bytes; any
// other value is hashed to 32 bytes. Returns a noop encryptor if the key is
// empty or invalid (with warning log).
//
//nolint:ireturn // Returning interface is intentional for encryptor abstraction
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if key == "" {
		if logger != nil {
			logger.Warn("encryption key is empty, using noop encryptor")
		}
		return &cryptoutil.NoopEncryptor{}
	}

	enc, err := createAESGCMEncryptor(key)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create encryptor, using noop encryptor", "error", err)
		}
		return &cryptoutil.NoopEncryptor{}
	}

	return enc
}

func createAESGCMEncryptor(key string) (*cryptoutil.AESGCMEncryptor, error) {
	if key == "" {
		return nil, errors.New("encryption key is required")
	}

	keyBytes, err := cryptoutil.ParseKey(key)
	if err != nil {
		// Otherwise, hash the key to get a 32-byte key
		hash := sha256.Sum256([]byte(key))
		keyBytes = hash[:]
	}

	return cryptoutil.NewAESGCMEncryptor(keyBytes)
}

// ResolveSecret returns value unchanged unless it is an encrypted envelope,
// in which case it is decrypted with enc.
func ResolveSecret(enc cryptoutil.Encryptor, value string) (string, error) {
	if !cryptoutil.IsEnvelope(value) {
		return value, nil
	}
	pt, err := enc.Decrypt(value)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	return string(pt), nil
}
