package keys

import (
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/medichain/ssi-custody/pkg/types"
)

// ExportDIDDocument builds a W3C DID document for the service signing key.
// Supported methods are "key", "web" (domain names the identifier), and any
// other method string which yields a generic did:<method>:<keyId> identifier.
func (m *Manager) ExportDIDDocument(method, domain string) (*types.DIDDocument, error) {
	multibase, err := m.publicKeyMultibase()
	if err != nil {
		return nil, err
	}

	var did string
	switch method {
	case "key":
		did = "did:key:" + multibase
	case "web":
		if domain == "" {
			domain = "localhost"
		}
		did = "did:web:" + domain
	default:
		did = fmt.Sprintf("did:%s:%s", method, m.keyID)
	}

	vmID := did + "#" + m.keyID
	doc := &types.DIDDocument{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/ed25519-2020/v1",
		},
		ID: did,
		VerificationMethod: []types.VerificationMethod{
			{
				ID:                 vmID,
				Type:               "Ed25519VerificationKey2020",
				Controller:         did,
				PublicKeyMultibase: multibase,
				PublicKeyPem:       m.publicKeyPEM,
			},
		},
		Authentication:       []string{vmID},
		AssertionMethod:      []string{vmID},
		CapabilityInvocation: []string{vmID},
		CapabilityDelegation: []string{vmID},
	}
	return doc, nil
}

// publicKeyMultibase encodes the DER public key with a "z" multibase prefix
// over its hex form.
func (m *Manager) publicKeyMultibase() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(m.publicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return "z" + hex.EncodeToString(der), nil
}
