package interfaces

import (
	"context"

	"github.com/medichain/ssi-custody/pkg/types"
)

// Signer abstracts the service signing keypair
type Signer interface {
	Sign(payload []byte) (string, error)
	Verify(payload []byte, signature string) (bool, error)
	CreateDigitalSignature(payload []byte) (*types.DigitalSignature, error)
	ExportDIDDocument(method, domain string) (*types.DIDDocument, error)
	KeyID() string
	KeyInfo() (*types.SigningKeyInfo, error)
}

// IdentityService defines credential lifecycle operations
type IdentityService interface {
	StoreCredentials(ctx context.Context, userID string, proofs []types.ProofSubmission) ([]*types.VerifiableCredential, error)
	VerifyCredential(ctx context.Context, credentialID string, request *types.VerificationRequest) (*types.VerifiableCredential, error)
	RevokeCredential(ctx context.Context, credentialID, revokedBy, reason string) (*types.VerifiableCredential, error)
	GetUserCredentials(ctx context.Context, userID string, status types.CredentialStatus) ([]*types.VerifiableCredential, error)
	HasValidCredentials(ctx context.Context, userID, role string) (*types.CredentialCheck, error)
	HasValidCredentialTypes(ctx context.Context, userID string, requiredTypes []types.ProofType) (*types.CredentialCheck, error)
	KeyInfo(ctx context.Context) (*types.SigningKeyInfo, error)
}
