package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// AccessLogRepository handles the append-only record access audit trail
type AccessLogRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewAccessLogRepository creates a new access log repository
func NewAccessLogRepository(db *sql.DB, logger *logger.Logger) *AccessLogRepository {
	return &AccessLogRepository{
		db:     db,
		logger: logger,
	}
}

const accessLogColumns = `id, patient_id, accessor_id, record_id, record_title,
	access_type, access_method, ip_address, user_agent, hospital_id,
	blockchain_verified, notes, created_at`

// Create appends an access log entry
func (r *AccessLogRepository) Create(ctx context.Context, entry *types.AccessLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.AccessMethod == "" {
		entry.AccessMethod = types.AccessMethodDirect
	}

	query := `
		INSERT INTO access_logs (
			id, patient_id, accessor_id, record_id, record_title,
			access_type, access_method, ip_address, user_agent, hospital_id,
			blockchain_verified, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.PatientID, entry.AccessorID, entry.RecordID,
		nullString(entry.RecordTitle), entry.AccessType, entry.AccessMethod,
		nullString(entry.IPAddress), nullString(entry.UserAgent),
		nullString(entry.HospitalID), entry.BlockchainVerified,
		nullString(entry.Notes), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// GetByPatientID retrieves the most recent access logs for a patient
func (r *AccessLogRepository) GetByPatientID(ctx context.Context, patientID string, limit int) ([]*types.AccessLogEntry, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM access_logs WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accessLogColumns)
	return r.queryLogs(ctx, query, patientID, limit)
}

// GetByRecordID retrieves the most recent access logs for a record
func (r *AccessLogRepository) GetByRecordID(ctx context.Context, recordID string, limit int) ([]*types.AccessLogEntry, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM access_logs WHERE record_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accessLogColumns)
	return r.queryLogs(ctx, query, recordID, limit)
}

func (r *AccessLogRepository) queryLogs(ctx context.Context, query string, args ...interface{}) ([]*types.AccessLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query access logs: %w", err)
	}
	defer rows.Close()

	var entries []*types.AccessLogEntry
	for rows.Next() {
		var (
			entry       types.AccessLogEntry
			recordTitle sql.NullString
			ipAddress   sql.NullString
			userAgent   sql.NullString
			hospitalID  sql.NullString
			notes       sql.NullString
		)
		err := rows.Scan(
			&entry.ID, &entry.PatientID, &entry.AccessorID, &entry.RecordID,
			&recordTitle, &entry.AccessType, &entry.AccessMethod,
			&ipAddress, &userAgent, &hospitalID,
			&entry.BlockchainVerified, &notes, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access log: %w", err)
		}
		entry.RecordTitle = recordTitle.String
		entry.IPAddress = ipAddress.String
		entry.UserAgent = userAgent.String
		entry.HospitalID = hospitalID.String
		entry.Notes = notes.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
