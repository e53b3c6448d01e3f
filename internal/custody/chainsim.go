package custody

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/medichain/ssi-custody/pkg/logger"
)

// simRecord is one anchored record in the simulated contract state.
// Grantees maps a lowercased address to the unix timestamp at which
// its grant expires.
type simRecord struct {
	PatientAddress string
	ContentHash    string
	Timestamp      time.Time
	Grantees       map[string]int64
}

// SimBackend is an in-memory ContractBackend used in development and
// tests. It mirrors the access semantics of the deployed custody
// contract: records are keyed by CID, owners always have access, and
// grants are time-bounded per grantee.
type SimBackend struct {
	mu      sync.RWMutex
	records map[string]*simRecord
	logger  *logger.Logger
}

// NewSimBackend creates an empty simulated contract backend
func NewSimBackend(log *logger.Logger) *SimBackend {
	return &SimBackend{
		records: make(map[string]*simRecord),
		logger:  log,
	}
}

// Submit executes a state-changing contract method against the in-memory state
func (s *SimBackend) Submit(ctx context.Context, method string, gasLimit uint64, args ...string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch method {
	case methodStoreRecord:
		if len(args) != 3 {
			return nil, fmt.Errorf("storeRecord expects 3 args, got %d", len(args))
		}
		patientAddress, cid, contentHash := args[0], args[1], args[2]
		if _, exists := s.records[cid]; exists {
			return nil, fmt.Errorf("execution reverted: record %s already anchored", cid)
		}
		s.records[cid] = &simRecord{
			PatientAddress: patientAddress,
			ContentHash:    contentHash,
			Timestamp:      time.Now().UTC(),
			Grantees:       make(map[string]int64),
		}
		return s.receipt()

	case methodGrantAccess:
		if len(args) != 4 {
			return nil, fmt.Errorf("grantAccess expects 4 args, got %d", len(args))
		}
		record, err := s.ownedRecord(args[0], args[2])
		if err != nil {
			return nil, err
		}
		expirationTime, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiration timestamp %q", args[3])
		}
		if expirationTime <= time.Now().Unix() {
			return nil, fmt.Errorf("execution reverted: expiration must be in the future")
		}
		record.Grantees[strings.ToLower(args[1])] = expirationTime
		return s.receipt()

	case methodRevokeAccess:
		if len(args) != 3 {
			return nil, fmt.Errorf("revokeAccess expects 3 args, got %d", len(args))
		}
		record, err := s.ownedRecord(args[0], args[2])
		if err != nil {
			return nil, err
		}
		delete(record.Grantees, strings.ToLower(args[1]))
		return s.receipt()

	default:
		return nil, fmt.Errorf("unknown contract method: %s", method)
	}
}

// Call executes a read-only contract method against the in-memory state
func (s *SimBackend) Call(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch method {
	case methodCheckAccess:
		if len(args) != 3 {
			return nil, fmt.Errorf("checkAccess expects 3 args, got %d", len(args))
		}
		patientAddress, accessorAddress, cid := args[0], args[1], args[2]
		record, exists := s.records[cid]
		allowed := false
		if exists && strings.EqualFold(record.PatientAddress, patientAddress) {
			if strings.EqualFold(accessorAddress, patientAddress) {
				allowed = true
			} else if expiry, ok := record.Grantees[strings.ToLower(accessorAddress)]; ok {
				allowed = expiry > time.Now().Unix()
			}
		}
		return json.Marshal(map[string]bool{"hasAccess": allowed})

	case methodGetRecord:
		if len(args) != 2 {
			return nil, fmt.Errorf("getRecord expects 2 args, got %d", len(args))
		}
		patientAddress, cid := args[0], args[1]
		record, exists := s.records[cid]
		if !exists || !strings.EqualFold(record.PatientAddress, patientAddress) {
			return nil, fmt.Errorf("execution reverted: record %s not found", cid)
		}
		return json.Marshal(map[string]interface{}{
			"patientAddress": record.PatientAddress,
			"contentAddress": cid,
			"contentHash":    record.ContentHash,
			"timestamp":      record.Timestamp.Unix(),
		})

	default:
		return nil, fmt.Errorf("unknown contract method: %s", method)
	}
}

// ownedRecord resolves a record by CID, enforcing that the patient owns it
func (s *SimBackend) ownedRecord(patientAddress, cid string) (*simRecord, error) {
	record, exists := s.records[cid]
	if !exists {
		return nil, fmt.Errorf("execution reverted: record %s not found", cid)
	}
	if !strings.EqualFold(record.PatientAddress, patientAddress) {
		return nil, fmt.Errorf("execution reverted: caller is not the record owner")
	}
	return record, nil
}

// receipt builds a minimal transaction receipt with a random hash
func (s *SimBackend) receipt() (json.RawMessage, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate tx hash: %w", err)
	}
	return json.Marshal(map[string]interface{}{
		"hash":   "0x" + hex.EncodeToString(buf),
		"status": 1,
	})
}
