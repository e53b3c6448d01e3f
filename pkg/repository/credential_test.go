package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

var credentialRows = []string{
	"id", "user_id", "proof_type", "status", "metadata", "document_hash",
	"encrypted_document_url", "thumbnail_url", "digital_signature", "verification_history",
	"is_revoked", "revoked_at", "revoked_reason", "self_sovereign_data", "did_context", "did_url",
	"credential_format", "region_code", "governance_framework", "created_at", "updated_at",
}

func TestCredentialRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCredentialRepository(db, logger.New("error"))

	credential := &types.VerifiableCredential{
		UserID:       "user-1",
		ProofType:    types.ProofTypePassport,
		Status:       types.CredentialStatusPending,
		DocumentHash: "abc123",
		Metadata: types.ProofMetadata{
			Issuer:         "Passport Office",
			IssuedDate:     time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
			DocumentNumber: "A1234567",
		},
		DigitalSignature: &types.DigitalSignature{
			Signature: "c2ln",
			Algorithm: "Ed25519",
		},
		VerificationHistory: []types.VerificationResult{},
		CredentialFormat:    types.CredentialFormatJSONLD,
	}

	mock.ExpectExec("INSERT INTO credentials").
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.Create(context.Background(), credential)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCredentialRepository(db, logger.New("error"))

	now := time.Now().UTC()
	metadata, _ := json.Marshal(types.ProofMetadata{
		Issuer:         "Passport Office",
		IssuedDate:     now,
		DocumentNumber: "A1234567",
	})
	signature, _ := json.Marshal(types.DigitalSignature{
		Signature: "c2ln", Algorithm: "Ed25519", KeyID: "key-1",
	})
	history, _ := json.Marshal([]types.VerificationResult{
		{IsValid: true, VerifiedBy: "reviewer-1", VerifiedAt: now},
	})

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
		WithArgs("cred-1").
		WillReturnRows(sqlmock.NewRows(credentialRows).AddRow(
			"cred-1", "user-1", "passport", "verified", metadata, "abc123",
			nil, nil, signature, history,
			false, nil, nil, nil, nil, "did:key:ztest",
			"json-ld", "global", "W3C Verifiable Credentials", now, now,
		))

	credential, err := repo.GetByID(context.Background(), "cred-1")
	assert.NoError(t, err)
	assert.Equal(t, "user-1", credential.UserID)
	assert.Equal(t, types.CredentialStatusVerified, credential.Status)
	assert.Equal(t, "c2ln", credential.DigitalSignature.Signature)
	assert.Len(t, credential.VerificationHistory, 1)
	assert.Equal(t, "did:key:ztest", credential.DIDUrl)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCredentialRepository(db, logger.New("error"))

	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(credentialRows))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_GetByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCredentialRepository(db, logger.New("error"))

	now := time.Now().UTC()
	metadata, _ := json.Marshal(types.ProofMetadata{Issuer: "x", IssuedDate: now, DocumentNumber: "1"})

	rows := sqlmock.NewRows(credentialRows)
	for _, id := range []string{"cred-1", "cred-2"} {
		rows.AddRow(id, "user-1", "aadhaar", "pending", metadata, "hash",
			nil, nil, nil, []byte("[]"),
			false, nil, nil, nil, nil, nil,
			"json-ld", nil, nil, now, now)
	}
	mock.ExpectQuery("SELECT (.+) FROM credentials WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	credentials, err := repo.GetByUserID(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Len(t, credentials, 2)
	assert.Nil(t, credentials[0].DigitalSignature)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := NewCredentialRepository(db, logger.New("error"))

	mock.ExpectExec("UPDATE credentials SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), &types.VerifiableCredential{ID: "missing"})
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
