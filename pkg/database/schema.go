package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for credential and record custody
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	tables := []string{
		createCredentialsTable,
		createMedicalRecordsTable,
		createAccessLogsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createCredentialsIndexes,
		createMedicalRecordsIndexes,
		createAccessLogsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createCredentialsTable = `
		CREATE TABLE IF NOT EXISTS credentials (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id VARCHAR(100) NOT NULL,
			proof_type VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			metadata JSONB NOT NULL,
			document_hash VARCHAR(64) NOT NULL,
			encrypted_document_url TEXT,
			thumbnail_url TEXT,
			digital_signature JSONB,
			verification_history JSONB NOT NULL DEFAULT '[]',
			is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
			revoked_at TIMESTAMP WITH TIME ZONE,
			revoked_reason TEXT,
			self_sovereign_data JSONB,
			did_context JSONB,
			did_url TEXT,
			credential_format VARCHAR(20) NOT NULL DEFAULT 'json-ld',
			region_code VARCHAR(10),
			governance_framework TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createMedicalRecordsTable = `
		CREATE TABLE IF NOT EXISTS medical_records (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id VARCHAR(100) NOT NULL,
			patient_address VARCHAR(42) NOT NULL,
			record_type VARCHAR(50) NOT NULL,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			ipfs_hash VARCHAR(100) NOT NULL,
			content_hash VARCHAR(64) NOT NULL,
			blockchain_tx_hash VARCHAR(100),
			created_by VARCHAR(100) NOT NULL,
			hospital_id VARCHAR(100),
			original_filename VARCHAR(255),
			mime_type VARCHAR(100),
			shared_with TEXT[] NOT NULL DEFAULT '{}',
			record_date TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createAccessLogsTable = `
		CREATE TABLE IF NOT EXISTS access_logs (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			patient_id VARCHAR(100) NOT NULL,
			accessor_id VARCHAR(100) NOT NULL,
			record_id UUID NOT NULL,
			record_title VARCHAR(200),
			access_type VARCHAR(20) NOT NULL,
			access_method VARCHAR(20) NOT NULL DEFAULT 'direct',
			ip_address VARCHAR(45),
			user_agent TEXT,
			hospital_id VARCHAR(100),
			blockchain_verified BOOLEAN NOT NULL DEFAULT FALSE,
			notes TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createCredentialsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_credentials_user_id ON credentials(user_id);
		CREATE INDEX IF NOT EXISTS idx_credentials_user_proof ON credentials(user_id, proof_type);
		CREATE INDEX IF NOT EXISTS idx_credentials_status ON credentials(status);`

	createMedicalRecordsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_medical_records_patient ON medical_records(patient_id);
		CREATE INDEX IF NOT EXISTS idx_medical_records_tx_hash ON medical_records(blockchain_tx_hash);
		CREATE INDEX IF NOT EXISTS idx_medical_records_shared_with ON medical_records USING GIN(shared_with);`

	createAccessLogsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_access_logs_patient ON access_logs(patient_id);
		CREATE INDEX IF NOT EXISTS idx_access_logs_record ON access_logs(record_id);
		CREATE INDEX IF NOT EXISTS idx_access_logs_created ON access_logs(created_at);`
)
