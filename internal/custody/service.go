package custody

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/interfaces"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
	"github.com/medichain/ssi-custody/pkg/repository"
	"github.com/medichain/ssi-custody/pkg/types"
)

// maxRecordSize bounds decoded record content before hashing or upload
const maxRecordSize = 30 * 1024 * 1024

// accessLogTimeout bounds the background write of one audit entry
const accessLogTimeout = 10 * time.Second

var _ interfaces.CustodyService = (*Service)(nil)

// Service implements medical record custody: encrypted off-chain content,
// on-chain anchoring and access control, and an append-only audit trail.
type Service struct {
	records    repository.RecordRepositoryInterface
	accessLogs repository.AccessLogRepositoryInterface
	store      interfaces.ContentStore
	ledger     interfaces.ChainLedger
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector
}

// NewService creates a new custody service
func NewService(
	records repository.RecordRepositoryInterface,
	accessLogs repository.AccessLogRepositoryInterface,
	store interfaces.ContentStore,
	ledger interfaces.ChainLedger,
	log *logger.Logger,
	metrics *monitoring.MetricsCollector,
) *Service {
	return &Service{
		records:    records,
		accessLogs: accessLogs,
		store:      store,
		ledger:     ledger,
		logger:     log,
		metrics:    metrics,
	}
}

// CreateRecord ingests a record: content is encrypted and pinned, the
// database row is written, and the record is anchored on-chain. Anchoring
// failure does not fail ingestion; the record keeps the pending marker
// until RetryBlockchainStorage succeeds.
func (s *Service) CreateRecord(ctx context.Context, request *types.CreateRecordRequest) (*types.MedicalRecord, error) {
	if err := s.validateCreateRequest(request); err != nil {
		return nil, err
	}

	patientAddress, err := NormalizeAddress(request.PatientAddress)
	if err != nil {
		return nil, err
	}

	contentHash := encryption.HashData(request.Content)

	cid, err := s.store.StoreEncrypted(ctx, request.Content, request.OriginalFilename)
	if err != nil {
		return nil, err
	}

	record := &types.MedicalRecord{
		PatientID:        request.PatientID,
		PatientAddress:   patientAddress,
		RecordType:       request.RecordType,
		Title:            request.Title,
		Description:      request.Description,
		IPFSHash:         cid,
		ContentHash:      contentHash,
		BlockchainTxHash: types.PendingBlockchainStorage,
		CreatedBy:        request.DoctorID,
		HospitalID:       request.HospitalID,
		OriginalFilename: request.OriginalFilename,
		MimeType:         request.MimeType,
		SharedWith:       []string{},
	}
	if record.CreatedBy == "" {
		record.CreatedBy = request.PatientID
	}

	record, err = s.records.Create(ctx, record)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to persist medical record", err)
	}

	txHash, chainErr := s.ledger.StoreRecord(ctx, patientAddress, cid, contentHash)
	if chainErr != nil {
		s.logger.WithError(chainErr).WithFields(map[string]interface{}{
			"record_id": record.ID,
			"cid":       cid,
		}).Warn("Blockchain anchoring failed, record left pending")
		if s.metrics != nil {
			s.metrics.RecordRecordAccess(string(types.AccessTypeUpload), "pending")
		}
	} else {
		if err := s.records.UpdateTxHash(ctx, record.ID, txHash); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Error("Failed to persist anchor tx hash")
		} else {
			record.BlockchainTxHash = txHash
		}
		if s.metrics != nil {
			s.metrics.RecordRecordAccess(string(types.AccessTypeUpload), "success")
		}
	}

	s.logAccessAsync(&types.AccessLogEntry{
		PatientID:          record.PatientID,
		AccessorID:         record.CreatedBy,
		RecordID:           record.ID,
		RecordTitle:        record.Title,
		AccessType:         types.AccessTypeUpload,
		HospitalID:         record.HospitalID,
		BlockchainVerified: chainErr == nil,
	})

	return record, nil
}

// GetRecord fetches a record after verifying the accessor may see it
func (s *Service) GetRecord(ctx context.Context, recordID, accessorID, accessorAddress string) (*types.MedicalRecord, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	allowed, verified, err := s.checkAccess(ctx, record, accessorID, accessorAddress)
	if err != nil {
		return nil, err
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.RecordRecordAccess(string(types.AccessTypeView), "denied")
		}
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden,
			fmt.Sprintf("access to record %s denied", recordID))
	}

	if s.metrics != nil {
		s.metrics.RecordRecordAccess(string(types.AccessTypeView), "success")
	}
	s.logAccessAsync(&types.AccessLogEntry{
		PatientID:          record.PatientID,
		AccessorID:         accessorID,
		RecordID:           record.ID,
		RecordTitle:        record.Title,
		AccessType:         types.AccessTypeView,
		BlockchainVerified: verified,
	})

	return record, nil
}

// GetPatientRecords lists a patient's own records
func (s *Service) GetPatientRecords(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	return s.records.GetByPatientID(ctx, patientID)
}

// DownloadRecord retrieves and decrypts a record's content, enforcing
// both access control and content integrity. A hash mismatch means the
// pinned content no longer matches what was anchored and is fatal.
func (s *Service) DownloadRecord(ctx context.Context, recordID, accessorID, accessorAddress string) (*types.RecordFile, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}

	allowed, verified, err := s.checkAccess(ctx, record, accessorID, accessorAddress)
	if err != nil {
		return nil, err
	}
	if !allowed {
		if s.metrics != nil {
			s.metrics.RecordRecordAccess(string(types.AccessTypeDownload), "denied")
		}
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden,
			fmt.Sprintf("access to record %s denied", recordID))
	}

	content, err := s.store.RetrieveDecrypted(ctx, record.IPFSHash)
	if err != nil {
		return nil, err
	}

	if encryption.HashData(content) != record.ContentHash {
		if s.metrics != nil {
			s.metrics.RecordIntegrityViolation()
		}
		s.logger.Security("record_integrity_violation", accessorID, map[string]interface{}{
			"record_id": record.ID,
			"cid":       record.IPFSHash,
		})
		return nil, types.NewIntegrityError(
			fmt.Sprintf("content of record %s does not match its anchored hash", recordID),
			map[string]interface{}{"recordId": recordID, "cid": record.IPFSHash})
	}

	if s.metrics != nil {
		s.metrics.RecordRecordAccess(string(types.AccessTypeDownload), "success")
	}
	s.logAccessAsync(&types.AccessLogEntry{
		PatientID:          record.PatientID,
		AccessorID:         accessorID,
		RecordID:           record.ID,
		RecordTitle:        record.Title,
		AccessType:         types.AccessTypeDownload,
		BlockchainVerified: verified,
	})

	return &types.RecordFile{
		Content:  content,
		Filename: record.OriginalFilename,
		MimeType: record.MimeType,
	}, nil
}

// ShareRecord grants a grantee address time-bounded access to a record.
// Only the owning patient may share, the expiration must be strictly in
// the future, and the grant must land on-chain before the cached shared
// list is updated.
func (s *Service) ShareRecord(ctx context.Context, recordID, patientID, granteeAddress string, expirationTime int64) (*types.MedicalRecord, error) {
	if expirationTime <= time.Now().Unix() {
		return nil, types.NewValidationError(types.ErrCodeInvalidExpiration,
			"access expiration must be in the future",
			map[string]interface{}{"expirationTime": expirationTime})
	}

	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.PatientID != patientID {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden,
			"only the record owner can share it")
	}

	grantee, err := NormalizeAddress(granteeAddress)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(grantee, record.PatientAddress) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			"cannot share a record with its owner", nil)
	}

	if _, err := s.ledger.GrantAccess(ctx, record.PatientAddress, grantee, record.IPFSHash, expirationTime); err != nil {
		return nil, err
	}

	if err := s.records.AddSharedWith(ctx, recordID, grantee); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to update shared grantees", err)
	}
	record.SharedWith = appendUnique(record.SharedWith, grantee)

	if s.metrics != nil {
		s.metrics.RecordRecordAccess(string(types.AccessTypeShare), "success")
	}
	s.logAccessAsync(&types.AccessLogEntry{
		PatientID:          record.PatientID,
		AccessorID:         patientID,
		RecordID:           record.ID,
		RecordTitle:        record.Title,
		AccessType:         types.AccessTypeShare,
		BlockchainVerified: true,
		Notes: fmt.Sprintf("granted to %s until %s", grantee,
			time.Unix(expirationTime, 0).UTC().Format(time.RFC3339)),
	})

	return record, nil
}

// RevokeRecordAccess removes a grantee's access to a record
func (s *Service) RevokeRecordAccess(ctx context.Context, recordID, patientID, granteeAddress string) (*types.MedicalRecord, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.PatientID != patientID {
		return nil, types.NewAuthorizationError(types.ErrCodeForbidden,
			"only the record owner can revoke access")
	}

	grantee, err := NormalizeAddress(granteeAddress)
	if err != nil {
		return nil, err
	}

	if _, err := s.ledger.RevokeAccess(ctx, record.PatientAddress, grantee, record.IPFSHash); err != nil {
		return nil, err
	}

	if err := s.records.RemoveSharedWith(ctx, recordID, grantee); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError,
			"failed to update shared grantees", err)
	}
	record.SharedWith = removeElement(record.SharedWith, grantee)

	if s.metrics != nil {
		s.metrics.RecordRecordAccess(string(types.AccessTypeRevoke), "success")
	}
	s.logAccessAsync(&types.AccessLogEntry{
		PatientID:          record.PatientID,
		AccessorID:         patientID,
		RecordID:           record.ID,
		RecordTitle:        record.Title,
		AccessType:         types.AccessTypeRevoke,
		BlockchainVerified: true,
		Notes:              "revoked from " + grantee,
	})

	return record, nil
}

// VerifyRecord compares the stored content hash against the on-chain one
func (s *Service) VerifyRecord(ctx context.Context, recordID string) (bool, error) {
	record, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return false, err
	}
	if record.BlockchainTxHash == types.PendingBlockchainStorage || record.BlockchainTxHash == "" {
		return false, nil
	}

	chainRecord, err := s.ledger.GetRecord(ctx, record.PatientAddress, record.IPFSHash)
	if err != nil {
		return false, err
	}
	return chainRecord.ContentHash == record.ContentHash, nil
}

// RetryBlockchainStorage re-anchors records left with the pending marker.
// Returns the number of records successfully anchored.
func (s *Service) RetryBlockchainStorage(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}
	pending, err := s.records.GetPendingAnchor(ctx, limit)
	if err != nil {
		return 0, types.NewInternalError(types.ErrCodeInternalError,
			"failed to list pending records", err)
	}

	anchored := 0
	for _, record := range pending {
		txHash, err := s.ledger.StoreRecord(ctx, record.PatientAddress, record.IPFSHash, record.ContentHash)
		if err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Warn("Retry anchoring failed")
			continue
		}
		if err := s.records.UpdateTxHash(ctx, record.ID, txHash); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Error("Failed to persist anchor tx hash on retry")
			continue
		}
		anchored++
	}

	s.logger.WithFields(map[string]interface{}{
		"pending":  len(pending),
		"anchored": anchored,
	}).Info("Pending anchor retry pass completed")

	return anchored, nil
}

// GetAccessLogs lists a patient's most recent access log entries
func (s *Service) GetAccessLogs(ctx context.Context, patientID string, limit int) ([]*types.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.accessLogs.GetByPatientID(ctx, patientID, limit)
}

// checkAccess decides whether an accessor may read a record. Owners are
// always allowed. For others the chain is authoritative when the record
// is anchored; the cached shared list is reconciled against the chain's
// answer as a side effect. Unanchored records fall back to the cache.
// Returns (allowed, chainVerified, error).
func (s *Service) checkAccess(ctx context.Context, record *types.MedicalRecord, accessorID, accessorAddress string) (bool, bool, error) {
	if accessorID == record.PatientID {
		return true, false, nil
	}

	accessor, err := NormalizeAddress(accessorAddress)
	if err != nil {
		return false, false, err
	}
	if strings.EqualFold(accessor, record.PatientAddress) {
		return true, false, nil
	}

	if record.BlockchainTxHash == types.PendingBlockchainStorage || record.BlockchainTxHash == "" {
		return containsFold(record.SharedWith, accessor), false, nil
	}

	allowed, err := s.ledger.CheckAccess(ctx, record.PatientAddress, accessor, record.IPFSHash)
	if err != nil {
		return false, false, err
	}

	cached := containsFold(record.SharedWith, accessor)
	if allowed && !cached {
		if err := s.records.AddSharedWith(ctx, record.ID, accessor); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Warn("Failed to reconcile shared list after chain grant")
		}
	} else if !allowed && cached {
		if err := s.records.RemoveSharedWith(ctx, record.ID, accessor); err != nil {
			s.logger.WithError(err).WithField("record_id", record.ID).
				Warn("Failed to reconcile shared list after chain revoke")
		}
	}

	return allowed, true, nil
}

// logAccessAsync appends an audit entry without blocking the request path.
// Entries without an explicit access method default to direct access.
func (s *Service) logAccessAsync(entry *types.AccessLogEntry) {
	if entry.AccessMethod == "" {
		entry.AccessMethod = types.AccessMethodDirect
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), accessLogTimeout)
		defer cancel()
		if err := s.accessLogs.Create(ctx, entry); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"record_id":   entry.RecordID,
				"access_type": entry.AccessType,
			}).Error("Failed to append access log")
		}
	}()
}

func (s *Service) validateCreateRequest(request *types.CreateRecordRequest) error {
	if request == nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "request is required", nil)
	}
	if request.PatientID == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "patientId is required", nil)
	}
	if request.Title == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "title is required", nil)
	}
	if request.RecordType == "" {
		return types.NewValidationError(types.ErrCodeInvalidInput, "recordType is required", nil)
	}
	if len(request.Content) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "content is required", nil)
	}
	if len(request.Content) > maxRecordSize {
		return types.NewValidationError(types.ErrCodeDocumentTooLarge,
			fmt.Sprintf("record content exceeds %d bytes", maxRecordSize),
			map[string]interface{}{"size": len(request.Content)})
	}
	return nil
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, value string) []string {
	if containsFold(list, value) {
		return list
	}
	return append(list, value)
}

func removeElement(list []string, value string) []string {
	out := list[:0]
	for _, item := range list {
		if !strings.EqualFold(item, value) {
			out = append(out, item)
		}
	}
	return out
}
