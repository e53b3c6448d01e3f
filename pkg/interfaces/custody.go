package interfaces

import (
	"context"

	"github.com/medichain/ssi-custody/pkg/types"
)

// ContentStore abstracts the encrypted content-addressed storage gateway
type ContentStore interface {
	StoreEncrypted(ctx context.Context, content []byte, filename string) (cid string, err error)
	RetrieveDecrypted(ctx context.Context, cid string) ([]byte, error)
	Health(ctx context.Context) error
}

// ChainLedger abstracts the on-chain record custody contract
type ChainLedger interface {
	StoreRecord(ctx context.Context, patientAddress, cid, contentHash string) (txHash string, err error)
	GrantAccess(ctx context.Context, patientAddress, granteeAddress, cid string, expirationTime int64) (txHash string, err error)
	RevokeAccess(ctx context.Context, patientAddress, granteeAddress, cid string) (txHash string, err error)
	CheckAccess(ctx context.Context, patientAddress, accessorAddress, cid string) (bool, error)
	GetRecord(ctx context.Context, patientAddress, cid string) (*types.ChainRecordInfo, error)
}

// CustodyService defines medical record custody operations
type CustodyService interface {
	CreateRecord(ctx context.Context, request *types.CreateRecordRequest) (*types.MedicalRecord, error)
	GetRecord(ctx context.Context, recordID, accessorID, accessorAddress string) (*types.MedicalRecord, error)
	GetPatientRecords(ctx context.Context, patientID string) ([]*types.MedicalRecord, error)
	DownloadRecord(ctx context.Context, recordID, accessorID, accessorAddress string) (*types.RecordFile, error)
	ShareRecord(ctx context.Context, recordID, patientID, granteeAddress string, expirationTime int64) (*types.MedicalRecord, error)
	RevokeRecordAccess(ctx context.Context, recordID, patientID, granteeAddress string) (*types.MedicalRecord, error)
	VerifyRecord(ctx context.Context, recordID string) (bool, error)
	RetryBlockchainStorage(ctx context.Context, limit int) (int, error)
	GetAccessLogs(ctx context.Context, patientID string, limit int) ([]*types.AccessLogEntry, error)
}
