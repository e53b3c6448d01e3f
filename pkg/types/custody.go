package types

import "time"

// AccessType classifies a record access event
type AccessType string

const (
	AccessTypeView     AccessType = "view"
	AccessTypeDownload AccessType = "download"
	AccessTypeShare    AccessType = "share"
	AccessTypeRevoke   AccessType = "revoke"
	AccessTypeUpload   AccessType = "upload"
)

// AccessMethod records how the accessor reached the record
type AccessMethod string

const (
	AccessMethodDirect AccessMethod = "direct"
	AccessMethodQR     AccessMethod = "qr"
	AccessMethodOTP    AccessMethod = "otp"
	AccessMethodWallet AccessMethod = "wallet"
)

// PendingBlockchainStorage marks records stored off-chain but not yet
// anchored. RetryBlockchainStorage recovers records carrying this sentinel.
const PendingBlockchainStorage = "pending-blockchain-storage"

// MedicalRecord holds the custody-relevant fields of a stored record
type MedicalRecord struct {
	ID               string    `json:"id"`
	PatientID        string    `json:"patientId"`
	PatientAddress   string    `json:"patientAddress"`
	RecordType       string    `json:"recordType"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	IPFSHash         string    `json:"ipfsHash"`
	ContentHash      string    `json:"contentHash"`
	BlockchainTxHash string    `json:"blockchainTxHash,omitempty"`
	CreatedBy        string    `json:"createdBy"`
	HospitalID       string    `json:"hospitalId,omitempty"`
	OriginalFilename string    `json:"originalFilename,omitempty"`
	MimeType         string    `json:"mimeType,omitempty"`
	SharedWith       []string  `json:"sharedWith"`
	RecordDate       time.Time `json:"recordDate"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CreateRecordRequest carries everything needed to ingest a new record
type CreateRecordRequest struct {
	PatientID        string `json:"patientId"`
	PatientAddress   string `json:"patientAddress"`
	DoctorID         string `json:"doctorId,omitempty"`
	HospitalID       string `json:"hospitalId,omitempty"`
	RecordType       string `json:"recordType"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	OriginalFilename string `json:"originalFilename,omitempty"`
	MimeType         string `json:"mimeType,omitempty"`
	Content          []byte `json:"-"`
}

// RecordFile is a decrypted record payload with its stored metadata
type RecordFile struct {
	Content  []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// AccessLogEntry is one append-only access-audit row
type AccessLogEntry struct {
	ID                 string       `json:"id"`
	PatientID          string       `json:"patientId"`
	AccessorID         string       `json:"accessorId"`
	RecordID           string       `json:"recordId"`
	RecordTitle        string       `json:"recordTitle"`
	AccessType         AccessType   `json:"accessType"`
	AccessMethod       AccessMethod `json:"accessMethod"`
	IPAddress          string       `json:"ipAddress,omitempty"`
	UserAgent          string       `json:"userAgent,omitempty"`
	HospitalID         string       `json:"hospitalId,omitempty"`
	BlockchainVerified bool         `json:"blockchainVerified"`
	Notes              string       `json:"notes,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
}

// ChainRecordInfo is the on-chain view of an anchored record
type ChainRecordInfo struct {
	PatientAddress string    `json:"patientAddress"`
	ContentAddress string    `json:"contentAddress"`
	ContentHash    string    `json:"contentHash"`
	Timestamp      time.Time `json:"timestamp"`
}
