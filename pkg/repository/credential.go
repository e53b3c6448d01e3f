package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

// CredentialRepository handles verifiable credential persistence
type CredentialRepository struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sql.DB, logger *logger.Logger) *CredentialRepository {
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

const credentialColumns = `id, user_id, proof_type, status, metadata, document_hash,
	encrypted_document_url, thumbnail_url, digital_signature, verification_history,
	is_revoked, revoked_at, revoked_reason, self_sovereign_data, did_context, did_url,
	credential_format, region_code, governance_framework, created_at, updated_at`

// Create inserts a new credential
func (r *CredentialRepository) Create(ctx context.Context, credential *types.VerifiableCredential) (*types.VerifiableCredential, error) {
	if credential.ID == "" {
		credential.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	credential.CreatedAt = now
	credential.UpdatedAt = now

	metadataJSON, err := json.Marshal(credential.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	historyJSON, err := json.Marshal(credential.VerificationHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verification history: %w", err)
	}

	signatureJSON, err := marshalNullable(credential.DigitalSignature)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal digital signature: %w", err)
	}

	ssdJSON, err := marshalNullable(credential.SelfSovereignData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal self-sovereign data: %w", err)
	}

	didJSON, err := marshalNullable(credential.DIDContext)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DID context: %w", err)
	}

	query := `
		INSERT INTO credentials (
			id, user_id, proof_type, status, metadata, document_hash,
			encrypted_document_url, thumbnail_url, digital_signature, verification_history,
			is_revoked, self_sovereign_data, did_context, did_url,
			credential_format, region_code, governance_framework, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.db.ExecContext(ctx, query,
		credential.ID, credential.UserID, credential.ProofType, credential.Status,
		metadataJSON, credential.DocumentHash,
		nullString(credential.EncryptedDocumentURL), nullString(credential.ThumbnailURL),
		signatureJSON, historyJSON,
		credential.IsRevoked, ssdJSON, didJSON, nullString(credential.DIDUrl),
		credential.CredentialFormat, nullString(credential.RegionCode),
		nullString(credential.GovernanceFramework),
		credential.CreatedAt, credential.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"credential_id": credential.ID,
		"user_id":       credential.UserID,
		"proof_type":    credential.ProofType,
	}).Debug("Credential persisted")

	return credential, nil
}

// GetByID retrieves a credential by its ID
func (r *CredentialRepository) GetByID(ctx context.Context, credentialID string) (*types.VerifiableCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE id = $1`, credentialColumns)
	row := r.db.QueryRowContext(ctx, query, credentialID)

	credential, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("credential %s not found", credentialID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return credential, nil
}

// GetByUserID retrieves all credentials belonging to a user
func (r *CredentialRepository) GetByUserID(ctx context.Context, userID string) ([]*types.VerifiableCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE user_id = $1 ORDER BY created_at DESC`, credentialColumns)
	return r.queryCredentials(ctx, query, userID)
}

// GetByUserAndType retrieves a user's credentials of a specific proof type
func (r *CredentialRepository) GetByUserAndType(ctx context.Context, userID string, proofType types.ProofType) ([]*types.VerifiableCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE user_id = $1 AND proof_type = $2 ORDER BY created_at DESC`, credentialColumns)
	return r.queryCredentials(ctx, query, userID, proofType)
}

// GetByUserAndStatus retrieves a user's credentials in a specific status
func (r *CredentialRepository) GetByUserAndStatus(ctx context.Context, userID string, status types.CredentialStatus) ([]*types.VerifiableCredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC`, credentialColumns)
	return r.queryCredentials(ctx, query, userID, status)
}

// Update persists all mutable fields of a credential
func (r *CredentialRepository) Update(ctx context.Context, credential *types.VerifiableCredential) error {
	credential.UpdatedAt = time.Now().UTC()

	historyJSON, err := json.Marshal(credential.VerificationHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal verification history: %w", err)
	}

	signatureJSON, err := marshalNullable(credential.DigitalSignature)
	if err != nil {
		return fmt.Errorf("failed to marshal digital signature: %w", err)
	}

	query := `
		UPDATE credentials SET
			status = $2,
			digital_signature = $3,
			verification_history = $4,
			is_revoked = $5,
			revoked_at = $6,
			revoked_reason = $7,
			updated_at = $8
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		credential.ID, credential.Status, signatureJSON, historyJSON,
		credential.IsRevoked, credential.RevokedAt, nullString(credential.RevokedReason),
		credential.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound,
			fmt.Sprintf("credential %s not found", credential.ID))
	}
	return nil
}

func (r *CredentialRepository) queryCredentials(ctx context.Context, query string, args ...interface{}) ([]*types.VerifiableCredential, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	var credentials []*types.VerifiableCredential
	for rows.Next() {
		credential, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		credentials = append(credentials, credential)
	}
	return credentials, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row rowScanner) (*types.VerifiableCredential, error) {
	var (
		credential    types.VerifiableCredential
		metadataJSON  []byte
		historyJSON   []byte
		signatureJSON []byte
		ssdJSON       []byte
		didJSON       []byte
		encDocURL     sql.NullString
		thumbURL      sql.NullString
		revokedAt     sql.NullTime
		revokedReason sql.NullString
		didURL        sql.NullString
		regionCode    sql.NullString
		governance    sql.NullString
	)

	err := row.Scan(
		&credential.ID, &credential.UserID, &credential.ProofType, &credential.Status,
		&metadataJSON, &credential.DocumentHash,
		&encDocURL, &thumbURL, &signatureJSON, &historyJSON,
		&credential.IsRevoked, &revokedAt, &revokedReason,
		&ssdJSON, &didJSON, &didURL,
		&credential.CredentialFormat, &regionCode, &governance,
		&credential.CreatedAt, &credential.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(metadataJSON, &credential.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &credential.VerificationHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verification history: %w", err)
		}
	}
	if len(signatureJSON) > 0 {
		if err := json.Unmarshal(signatureJSON, &credential.DigitalSignature); err != nil {
			return nil, fmt.Errorf("failed to unmarshal digital signature: %w", err)
		}
	}
	if len(ssdJSON) > 0 {
		if err := json.Unmarshal(ssdJSON, &credential.SelfSovereignData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal self-sovereign data: %w", err)
		}
	}
	if len(didJSON) > 0 {
		if err := json.Unmarshal(didJSON, &credential.DIDContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal DID context: %w", err)
		}
	}

	credential.EncryptedDocumentURL = encDocURL.String
	credential.ThumbnailURL = thumbURL.String
	credential.RevokedReason = revokedReason.String
	credential.DIDUrl = didURL.String
	credential.RegionCode = regionCode.String
	credential.GovernanceFramework = governance.String
	if revokedAt.Valid {
		credential.RevokedAt = &revokedAt.Time
	}

	return &credential, nil
}

// marshalNullable marshals v to JSON or returns nil for a nil pointer,
// so the column stores SQL NULL rather than the string "null".
func marshalNullable(v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case *types.DigitalSignature:
		if val == nil {
			return nil, nil
		}
	case *types.SelfSovereignData:
		if val == nil {
			return nil, nil
		}
	case *types.DIDDocument:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
