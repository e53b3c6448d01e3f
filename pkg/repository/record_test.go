package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

func newMockRepo(t *testing.T) (*RecordRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	repo := NewRecordRepository(db, logger.New("error"))
	return repo, mock, func() { db.Close() }
}

func TestRecordRepository_Create(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO medical_records").
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &types.MedicalRecord{
		PatientID:      "patient-1",
		PatientAddress: "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		RecordType:     "lab_report",
		Title:          "CBC Panel",
		IPFSHash:       "QmTestCid",
		ContentHash:    "abc123",
		CreatedBy:      "doctor-1",
	}

	created, err := repo.Create(context.Background(), record)
	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotNil(t, created.SharedWith)
	assert.False(t, created.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_GetByID(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "patient_address", "record_type", "title", "description",
		"ipfs_hash", "content_hash", "blockchain_tx_hash", "created_by", "hospital_id",
		"original_filename", "mime_type", "shared_with", "record_date", "created_at", "updated_at",
	}).AddRow(
		"rec-1", "patient-1", "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		"lab_report", "CBC Panel", "Quarterly panel",
		"QmTestCid", "abc123", "0xdeadbeef", "doctor-1", "hosp-1",
		"cbc.pdf", "application/pdf", pq.StringArray{"0xAbc"}, now, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM medical_records WHERE id =").
		WithArgs("rec-1").
		WillReturnRows(rows)

	record, err := repo.GetByID(context.Background(), "rec-1")
	assert.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.Equal(t, "0xdeadbeef", record.BlockchainTxHash)
	assert.Equal(t, []string{"0xAbc"}, record.SharedWith)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_GetByID_NotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM medical_records WHERE id =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}

func TestRecordRepository_UpdateTxHash(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE medical_records SET blockchain_tx_hash").
		WithArgs("rec-1", "0xfeed").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateTxHash(context.Background(), "rec-1", "0xfeed")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_UpdateTxHash_NotFound(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("UPDATE medical_records SET blockchain_tx_hash").
		WithArgs("missing", "0xfeed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTxHash(context.Background(), "missing", "0xfeed")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeNotFound))
}

func TestRecordRepository_SharedWithMutations(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	mock.ExpectExec("array_append").
		WithArgs("rec-1", "0xGrantee").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("array_remove").
		WithArgs("rec-1", "0xGrantee").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.AddSharedWith(context.Background(), "rec-1", "0xGrantee"))
	assert.NoError(t, repo.RemoveSharedWith(context.Background(), "rec-1", "0xGrantee"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_GetPendingAnchor(t *testing.T) {
	repo, mock, cleanup := newMockRepo(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "patient_id", "patient_address", "record_type", "title", "description",
		"ipfs_hash", "content_hash", "blockchain_tx_hash", "created_by", "hospital_id",
		"original_filename", "mime_type", "shared_with", "record_date", "created_at", "updated_at",
	}).AddRow(
		"rec-2", "patient-1", "0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		"imaging", "X-Ray", nil,
		"QmOtherCid", "def456", types.PendingBlockchainStorage, "doctor-1", nil,
		nil, nil, pq.StringArray{}, now, now, now,
	)

	mock.ExpectQuery("SELECT (.+) FROM medical_records WHERE blockchain_tx_hash").
		WithArgs(types.PendingBlockchainStorage, 10).
		WillReturnRows(rows)

	records, err := repo.GetPendingAnchor(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, types.PendingBlockchainStorage, records[0].BlockchainTxHash)
}
