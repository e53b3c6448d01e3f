package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

const (
	privateKeyFile = "ed25519_private.pem"
	publicKeyFile  = "ed25519_public.pem"
	metadataFile   = "key_metadata.json"
)

// keyMetadata is the on-disk description of the persisted keypair
type keyMetadata struct {
	KeyID       string    `json:"keyId"`
	KeyType     string    `json:"keyType"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Manager owns the service Ed25519 signing keypair. Keys are resolved
// in order: configuration material, PEM files under the keys directory,
// freshly generated (and persisted for subsequent boots).
type Manager struct {
	privateKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	publicKeyPEM string
	keyID        string
	generatedAt  time.Time
	logger       *logger.Logger
}

// NewManager initializes the key manager using the given SSI configuration
func NewManager(cfg *config.SSIConfig, log *logger.Logger) (*Manager, error) {
	m := &Manager{logger: log}

	if cfg.PrivateKey != "" && cfg.PublicKey != "" {
		if err := m.loadFromConfig(cfg); err != nil {
			return nil, types.NewCryptoError(types.ErrCodeKeyInitFailed,
				"failed to load signing keys from configuration", err)
		}
		log.WithField("key_id", m.keyID).Info("Signing keys loaded from configuration")
		return m, nil
	}

	loaded, err := m.loadFromFiles(cfg.KeysDir)
	if err != nil {
		return nil, types.NewCryptoError(types.ErrCodeKeyInitFailed,
			"failed to load signing keys from disk", err)
	}
	if loaded {
		log.WithField("key_id", m.keyID).Info("Signing keys loaded from disk")
		return m, nil
	}

	if err := m.generate(cfg.KeysDir); err != nil {
		return nil, types.NewCryptoError(types.ErrCodeKeyInitFailed,
			"failed to generate signing keys", err)
	}
	log.WithField("key_id", m.keyID).Info("New signing keypair generated")
	return m, nil
}

// loadFromConfig decodes base64-encoded raw key material from configuration
func (m *Manager) loadFromConfig(cfg *config.SSIConfig) error {
	privBytes, err := base64.StdEncoding.DecodeString(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("invalid private key encoding: %w", err)
	}
	pubBytes, err := base64.StdEncoding.DecodeString(cfg.PublicKey)
	if err != nil {
		return fmt.Errorf("invalid public key encoding: %w", err)
	}

	if len(privBytes) != ed25519.PrivateKeySize {
		return fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(privBytes))
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pubBytes))
	}

	m.privateKey = ed25519.PrivateKey(privBytes)
	m.publicKey = ed25519.PublicKey(pubBytes)

	if err := m.finalize(); err != nil {
		return err
	}

	if cfg.KeyID != "" {
		m.keyID = cfg.KeyID
	}
	if cfg.GeneratedAt != "" {
		if t, err := time.Parse(time.RFC3339, cfg.GeneratedAt); err == nil {
			m.generatedAt = t
		}
	}
	return nil
}

// loadFromFiles reads PEM-encoded keys from the keys directory.
// Returns false if no key files are present.
func (m *Manager) loadFromFiles(dir string) (bool, error) {
	privPath := filepath.Join(dir, privateKeyFile)
	privPEM, err := os.ReadFile(privPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read private key file: %w", err)
	}

	block, _ := pem.Decode(privPEM)
	if block == nil {
		return false, fmt.Errorf("no PEM block in %s", privPath)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return false, fmt.Errorf("failed to parse private key: %w", err)
	}

	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return false, fmt.Errorf("key in %s is not ed25519", privPath)
	}

	m.privateKey = priv
	m.publicKey = priv.Public().(ed25519.PublicKey)

	if err := m.finalize(); err != nil {
		return false, err
	}

	if metaBytes, err := os.ReadFile(filepath.Join(dir, metadataFile)); err == nil {
		var meta keyMetadata
		if err := json.Unmarshal(metaBytes, &meta); err == nil {
			if meta.KeyID != "" {
				m.keyID = meta.KeyID
			}
			if !meta.GeneratedAt.IsZero() {
				m.generatedAt = meta.GeneratedAt
			}
		}
	}

	return true, nil
}

// generate creates a fresh keypair and persists it for subsequent boots
func (m *Manager) generate(dir string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("keypair generation failed: %w", err)
	}

	m.privateKey = priv
	m.publicKey = pub
	m.generatedAt = time.Now().UTC()

	if err := m.finalize(); err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return fmt.Errorf("failed to marshal private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), privPEM, 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), []byte(m.publicKeyPEM), 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	meta := keyMetadata{
		KeyID:       m.keyID,
		KeyType:     string(types.KeyTypeEd25519),
		GeneratedAt: m.generatedAt,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal key metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), metaBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write key metadata: %w", err)
	}

	return nil
}

// finalize derives the public key PEM and the key ID from the loaded keypair.
// The key ID is the first 16 hex chars of SHA-256 over the public key PEM.
func (m *Manager) finalize() error {
	pubDER, err := x509.MarshalPKIXPublicKey(m.publicKey)
	if err != nil {
		return fmt.Errorf("failed to marshal public key: %w", err)
	}
	m.publicKeyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	digest := sha256.Sum256([]byte(m.publicKeyPEM))
	m.keyID = hex.EncodeToString(digest[:])[:16]

	if m.generatedAt.IsZero() {
		m.generatedAt = time.Now().UTC()
	}
	return nil
}

// Sign signs payload with the service private key and returns the
// base64-encoded signature.
func (m *Manager) Sign(payload []byte) (string, error) {
	if m.privateKey == nil {
		return "", types.NewCryptoError(types.ErrCodeSigningFailed, "signing key not initialized", nil)
	}
	sig := ed25519.Sign(m.privateKey, payload)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64-encoded signature over payload against the
// service public key.
func (m *Manager) Verify(payload []byte, signature string) (bool, error) {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature encoding: %w", err)
	}
	return ed25519.Verify(m.publicKey, payload, sig), nil
}

// CreateDigitalSignature signs payload and wraps the result in the
// signature envelope attached to credentials.
func (m *Manager) CreateDigitalSignature(payload []byte) (*types.DigitalSignature, error) {
	sig, err := m.Sign(payload)
	if err != nil {
		return nil, err
	}
	return &types.DigitalSignature{
		Signature: sig,
		Algorithm: "Ed25519",
		PublicKey: m.publicKeyPEM,
		Timestamp: time.Now().UTC(),
		KeyID:     m.keyID,
		KeyType:   types.KeyTypeEd25519,
	}, nil
}

// PublicKeyPEM returns the PEM encoding of the service public key
func (m *Manager) PublicKeyPEM() string {
	return m.publicKeyPEM
}

// KeyID returns the stable identifier of the service keypair
func (m *Manager) KeyID() string {
	return m.keyID
}

// KeyInfo returns the public description of the service keypair,
// including a did:key document.
func (m *Manager) KeyInfo() (*types.SigningKeyInfo, error) {
	doc, err := m.ExportDIDDocument("key", "")
	if err != nil {
		return nil, err
	}
	return &types.SigningKeyInfo{
		KeyID:       m.keyID,
		KeyType:     types.KeyTypeEd25519,
		Algorithm:   "Ed25519",
		GeneratedAt: m.generatedAt,
		DIDDocument: doc,
	}, nil
}
