package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/interfaces"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
	"github.com/medichain/ssi-custody/pkg/types"
)

// ChainClient implements record custody operations against a
// ContractBackend. It normalizes addresses, bounds confirmation waits,
// and extracts transaction hashes from whatever receipt shape the
// backend produces.
type ChainClient struct {
	backend ContractBackend
	config  *config.ChainConfig
	logger  *logger.Logger
	metrics *monitoring.MetricsCollector
}

var _ interfaces.ChainLedger = (*ChainClient)(nil)

// NewChainClient creates a new chain client
func NewChainClient(backend ContractBackend, cfg *config.ChainConfig, log *logger.Logger, metrics *monitoring.MetricsCollector) *ChainClient {
	return &ChainClient{
		backend: backend,
		config:  cfg,
		logger:  log,
		metrics: metrics,
	}
}

// StoreRecord anchors a record's CID and content hash under the patient's address
func (c *ChainClient) StoreRecord(ctx context.Context, patientAddress, cid, contentHash string) (string, error) {
	normalized, err := NormalizeAddress(patientAddress)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, methodStoreRecord, c.config.GasLimitStore, normalized, cid, contentHash)
}

// GrantAccess grants a grantee address time-bounded read access to an
// anchored record. The expiration is a unix timestamp in seconds and
// must be strictly in the future; a past or current timestamp is
// rejected here, before anything reaches the chain.
func (c *ChainClient) GrantAccess(ctx context.Context, patientAddress, granteeAddress, cid string, expirationTime int64) (string, error) {
	patient, err := NormalizeAddress(patientAddress)
	if err != nil {
		return "", err
	}
	grantee, err := NormalizeAddress(granteeAddress)
	if err != nil {
		return "", err
	}
	if expirationTime <= time.Now().Unix() {
		return "", types.NewValidationError(types.ErrCodeInvalidExpiration,
			"access expiration must be in the future",
			map[string]interface{}{"expirationTime": expirationTime})
	}
	return c.submit(ctx, methodGrantAccess, c.config.GasLimitAccess,
		patient, grantee, cid, strconv.FormatInt(expirationTime, 10))
}

// RevokeAccess revokes a grantee's access to an anchored record
func (c *ChainClient) RevokeAccess(ctx context.Context, patientAddress, granteeAddress, cid string) (string, error) {
	patient, err := NormalizeAddress(patientAddress)
	if err != nil {
		return "", err
	}
	grantee, err := NormalizeAddress(granteeAddress)
	if err != nil {
		return "", err
	}
	return c.submit(ctx, methodRevokeAccess, c.config.GasLimitAccess, patient, grantee, cid)
}

// CheckAccess queries the contract for an accessor's access to a record.
// The chain is authoritative for access decisions.
func (c *ChainClient) CheckAccess(ctx context.Context, patientAddress, accessorAddress, cid string) (bool, error) {
	patient, err := NormalizeAddress(patientAddress)
	if err != nil {
		return false, err
	}
	accessor, err := NormalizeAddress(accessorAddress)
	if err != nil {
		return false, err
	}

	response, err := c.backend.Call(ctx, methodCheckAccess, patient, accessor, cid)
	if err != nil {
		return false, c.classifyError(methodCheckAccess, err)
	}

	var result struct {
		HasAccess bool `json:"hasAccess"`
	}
	if err := json.Unmarshal(response, &result); err != nil {
		return false, types.NewChainError(types.ErrCodeChainError,
			"failed to parse access check response", err)
	}
	return result.HasAccess, nil
}

// GetRecord queries the contract for an anchored record's on-chain state
func (c *ChainClient) GetRecord(ctx context.Context, patientAddress, cid string) (*types.ChainRecordInfo, error) {
	patient, err := NormalizeAddress(patientAddress)
	if err != nil {
		return nil, err
	}

	response, err := c.backend.Call(ctx, methodGetRecord, patient, cid)
	if err != nil {
		return nil, c.classifyError(methodGetRecord, err)
	}

	var raw struct {
		PatientAddress string `json:"patientAddress"`
		ContentAddress string `json:"contentAddress"`
		ContentHash    string `json:"contentHash"`
		Timestamp      int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(response, &raw); err != nil {
		return nil, types.NewChainError(types.ErrCodeChainError,
			"failed to parse record response", err)
	}

	return &types.ChainRecordInfo{
		PatientAddress: raw.PatientAddress,
		ContentAddress: raw.ContentAddress,
		ContentHash:    raw.ContentHash,
		Timestamp:      time.Unix(raw.Timestamp, 0).UTC(),
	}, nil
}

// submit sends a transaction bounded by the confirmation timeout and
// returns the extracted transaction hash.
func (c *ChainClient) submit(ctx context.Context, method string, gasLimit uint64, args ...string) (string, error) {
	timeout := time.Duration(c.config.ConfirmTimeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	submitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	receipt, err := c.backend.Submit(submitCtx, method, gasLimit, args...)
	duration := time.Since(start)

	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordChainTransaction(method, "failure", duration)
		}
		if submitCtx.Err() == context.DeadlineExceeded {
			c.logger.ChainTransaction(ctx, method, "", false,
				map[string]interface{}{"reason": "confirmation timeout"})
			return "", types.NewTimeoutError(types.ErrCodePendingConfirmation,
				fmt.Sprintf("transaction %s not confirmed within %s", method, timeout), err)
		}
		classified := c.classifyError(method, err)
		c.logger.ChainTransaction(ctx, method, "", false,
			map[string]interface{}{"error": err.Error()})
		return "", classified
	}

	txHash := ExtractTxHash(receipt)
	if c.metrics != nil {
		c.metrics.RecordChainTransaction(method, "success", duration)
	}
	c.logger.ChainTransaction(ctx, method, txHash, true, nil)
	return txHash, nil
}

// classifyError maps backend errors onto stable error codes by message
// inspection, since transports surface node errors as opaque strings.
func (c *ChainClient) classifyError(method string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return types.NewChainError(types.ErrCodeInsufficientFunds,
			fmt.Sprintf("wallet cannot fund %s transaction", method), err)
	case strings.Contains(msg, "nonce"):
		return types.NewChainError(types.ErrCodeNonceConflict,
			fmt.Sprintf("nonce conflict submitting %s", method), err)
	case strings.Contains(msg, "gas"):
		return types.NewChainError(types.ErrCodeGasLimit,
			fmt.Sprintf("gas limit problem submitting %s", method), err)
	default:
		return types.NewChainError(types.ErrCodeChainError,
			fmt.Sprintf("%s transaction failed", method), err)
	}
}

// ExtractTxHash pulls a transaction hash out of a receipt of unknown
// shape. Backends disagree on receipt schemas, so fields are tried in
// decreasing order of likelihood; a bare string receipt is taken as the
// hash itself, and an unrecognizable receipt yields a pending marker so
// the submission is never mistaken for a failure.
func ExtractTxHash(receipt json.RawMessage) string {
	if len(receipt) == 0 {
		return pendingMarker()
	}

	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(receipt, &asMap); err == nil {
		if hash := stringField(asMap, "hash"); hash != "" {
			return hash
		}
		if hash := stringField(asMap, "transactionHash"); hash != "" {
			return hash
		}
		if nested, ok := asMap["transaction"]; ok {
			if hash := nestedHash(nested); hash != "" {
				return hash
			}
		}
		if nested, ok := asMap["tx"]; ok {
			if hash := nestedHash(nested); hash != "" {
				return hash
			}
		}
		return pendingMarker()
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(receipt, &asArray); err == nil && len(asArray) > 0 {
		if hash := nestedHash(asArray[0]); hash != "" {
			return hash
		}
		return pendingMarker()
	}

	var asString string
	if err := json.Unmarshal(receipt, &asString); err == nil && asString != "" {
		return asString
	}

	return pendingMarker()
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func nestedHash(raw json.RawMessage) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	return stringField(m, "hash")
}

func pendingMarker() string {
	return fmt.Sprintf("pending-%d", time.Now().UnixMilli())
}
