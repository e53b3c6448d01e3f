package repository

import (
	"context"

	"github.com/medichain/ssi-custody/pkg/types"
)

// CredentialRepositoryInterface defines the interface for credential persistence
type CredentialRepositoryInterface interface {
	Create(ctx context.Context, credential *types.VerifiableCredential) (*types.VerifiableCredential, error)
	GetByID(ctx context.Context, credentialID string) (*types.VerifiableCredential, error)
	GetByUserID(ctx context.Context, userID string) ([]*types.VerifiableCredential, error)
	GetByUserAndType(ctx context.Context, userID string, proofType types.ProofType) ([]*types.VerifiableCredential, error)
	GetByUserAndStatus(ctx context.Context, userID string, status types.CredentialStatus) ([]*types.VerifiableCredential, error)
	Update(ctx context.Context, credential *types.VerifiableCredential) error
}

// RecordRepositoryInterface defines the interface for medical record persistence
type RecordRepositoryInterface interface {
	Create(ctx context.Context, record *types.MedicalRecord) (*types.MedicalRecord, error)
	GetByID(ctx context.Context, recordID string) (*types.MedicalRecord, error)
	GetByPatientID(ctx context.Context, patientID string) ([]*types.MedicalRecord, error)
	GetPendingAnchor(ctx context.Context, limit int) ([]*types.MedicalRecord, error)
	UpdateTxHash(ctx context.Context, recordID, txHash string) error
	AddSharedWith(ctx context.Context, recordID, granteeAddress string) error
	RemoveSharedWith(ctx context.Context, recordID, granteeAddress string) error
	SetSharedWith(ctx context.Context, recordID string, sharedWith []string) error
}

// AccessLogRepositoryInterface defines the interface for access audit logs
type AccessLogRepositoryInterface interface {
	Create(ctx context.Context, entry *types.AccessLogEntry) error
	GetByPatientID(ctx context.Context, patientID string, limit int) ([]*types.AccessLogEntry, error)
	GetByRecordID(ctx context.Context, recordID string, limit int) ([]*types.AccessLogEntry, error)
}
