package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// Service provides AES-256-GCM encryption for record payloads and
// credential documents at rest.
type Service struct {
	key []byte
}

// NewService creates an encryption service from a shared secret.
// The key is derived as SHA-256(secret) so any secret of sufficient
// length yields a valid 32-byte AES key.
func NewService(secret string) (*Service, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("encryption secret must be at least 32 characters")
	}
	key := sha256.Sum256([]byte(secret))
	return &Service{key: key[:]}, nil
}

// Encrypt encrypts plaintext with AES-256-GCM. The nonce is prepended
// to the ciphertext.
func (s *Service) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts data produced by Encrypt.
func (s *Service) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, payload := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// EncryptToString encrypts plaintext and base64-encodes the result.
func (s *Service) EncryptToString(plaintext []byte) (string, error) {
	encrypted, err := s.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// DecryptFromString decrypts a base64-encoded ciphertext.
func (s *Service) DecryptFromString(encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	return s.Decrypt(ciphertext)
}

// HashData returns the SHA-256 digest of data as a lowercase hex string.
// Content hashes stored on-chain and document hashes on credentials both
// use this form.
func HashData(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}
