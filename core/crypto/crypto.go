package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Vault encrypts and decrypts OAuth tokens before and after persistence.
// Tokens are only ever decrypted in memory for the duration of a single
// provider call.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type aesVault struct {
	aead cipher.AEAD
}

var keySalt = []byte("appointly-token-vault")

// NewVault derives an AES-256-GCM key from the configured secret. An empty
// secret is a deployment misconfiguration and is rejected up front.
func NewVault(secret string) (Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("encryption key is not configured")
	}

	key := pbkdf2.Key([]byte(secret), keySalt, 4096, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return &aesVault{aead: aead}, nil
}

func (v *aesVault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (v *aesVault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	if len(raw) < v.aead.NonceSize() {
		return "", fmt.Errorf("failed to decrypt token: ciphertext too short")
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return string(plaintext), nil
}
