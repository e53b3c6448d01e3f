package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// RecordRepository handles medical record persistence
type RecordRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *logger.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

const recordColumns = `id, patient_id, patient_address, record_type, title, description,
	ipfs_hash, content_hash, blockchain_tx_hash, created_by, hospital_id,
	original_filename, mime_type, shared_with, record_date, created_at, updated_at`

// Create inserts a new medical record
func (r *RecordRepository) Create(ctx context.Context, record *types.MedicalRecord) (*types.MedicalRecord, error) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.RecordDate.IsZero() {
		record.RecordDate = now
	}
	if record.SharedWith == nil {
		record.SharedWith = []string{}
	}

	query := `
		INSERT INTO medical_records (
			id, patient_id, patient_address, record_type, title, description,
			ipfs_hash, content_hash, blockchain_tx_hash, created_by, hospital_id,
			original_filename, mime_type, shared_with, record_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.PatientID, record.PatientAddress, record.RecordType,
		record.Title, nullString(record.Description),
		record.IPFSHash, record.ContentHash, nullString(record.BlockchainTxHash),
		record.CreatedBy, nullString(record.HospitalID),
		nullString(record.OriginalFilename), nullString(record.MimeType),
		pq.Array(record.SharedWith), record.RecordDate, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert medical record: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"record_id":  record.ID,
		"patient_id": record.PatientID,
	}).Debug("Medical record persisted")

	return record, nil
}

// GetByID retrieves a medical record by its ID
func (r *RecordRepository) GetByID(ctx context.Context, recordID string) (*types.MedicalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM medical_records WHERE id = $1`, recordColumns)
	row := r.db.QueryRowContext(ctx, query, recordID)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("medical record %s not found", recordID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}
	return record, nil
}

// GetByPatientID retrieves all records belonging to a patient
func (r *RecordRepository) GetByPatientID(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM medical_records WHERE patient_id = $1 ORDER BY record_date DESC`, recordColumns)
	return r.queryRecords(ctx, query, patientID)
}

// GetPendingAnchor retrieves records whose blockchain anchoring has not completed
func (r *RecordRepository) GetPendingAnchor(ctx context.Context, limit int) ([]*types.MedicalRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM medical_records WHERE blockchain_tx_hash = $1 OR blockchain_tx_hash IS NULL ORDER BY created_at ASC LIMIT $2`,
		recordColumns)
	return r.queryRecords(ctx, query, types.PendingBlockchainStorage, limit)
}

// UpdateTxHash sets the blockchain transaction hash of an anchored record
func (r *RecordRepository) UpdateTxHash(ctx context.Context, recordID, txHash string) error {
	query := `UPDATE medical_records SET blockchain_tx_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOnRecord(ctx, query, recordID, txHash)
}

// AddSharedWith appends a grantee address to the record's shared list
func (r *RecordRepository) AddSharedWith(ctx context.Context, recordID, granteeAddress string) error {
	query := `
		UPDATE medical_records
		SET shared_with = array_append(shared_with, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(shared_with))`
	_, err := r.db.ExecContext(ctx, query, recordID, granteeAddress)
	if err != nil {
		return fmt.Errorf("failed to add shared grantee: %w", err)
	}
	return nil
}

// RemoveSharedWith removes a grantee address from the record's shared list
func (r *RecordRepository) RemoveSharedWith(ctx context.Context, recordID, granteeAddress string) error {
	query := `
		UPDATE medical_records
		SET shared_with = array_remove(shared_with, $2), updated_at = NOW()
		WHERE id = $1`
	return r.execOnRecord(ctx, query, recordID, granteeAddress)
}

// SetSharedWith replaces the record's shared list wholesale
func (r *RecordRepository) SetSharedWith(ctx context.Context, recordID string, sharedWith []string) error {
	if sharedWith == nil {
		sharedWith = []string{}
	}
	query := `UPDATE medical_records SET shared_with = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, recordID, pq.Array(sharedWith))
	if err != nil {
		return fmt.Errorf("failed to set shared grantees: %w", err)
	}
	return nil
}

func (r *RecordRepository) execOnRecord(ctx context.Context, query, recordID string, arg interface{}) error {
	result, err := r.db.ExecContext(ctx, query, recordID, arg)
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("medical record %s not found", recordID))
	}
	return nil
}

func (r *RecordRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]*types.MedicalRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query medical records: %w", err)
	}
	defer rows.Close()

	var records []*types.MedicalRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medical record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row rowScanner) (*types.MedicalRecord, error) {
	var (
		record      types.MedicalRecord
		description sql.NullString
		txHash      sql.NullString
		hospitalID  sql.NullString
		filename    sql.NullString
		mimeType    sql.NullString
		sharedWith  pq.StringArray
	)

	err := row.Scan(
		&record.ID, &record.PatientID, &record.PatientAddress, &record.RecordType,
		&record.Title, &description,
		&record.IPFSHash, &record.ContentHash, &txHash,
		&record.CreatedBy, &hospitalID, &filename, &mimeType,
		&sharedWith, &record.RecordDate, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Description = description.String
	record.BlockchainTxHash = txHash.String
	record.HospitalID = hospitalID.String
	record.OriginalFilename = filename.String
	record.MimeType = mimeType.String
	record.SharedWith = []string(sharedWith)
	if record.SharedWith == nil {
		record.SharedWith = []string{}
	}

	return &record, nil
}
