package custody

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/types"
)

const (
	ownerAddress   = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	granteeAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func testChainClient(backend ContractBackend) *ChainClient {
	return NewChainClient(backend, &config.ChainConfig{
		ConfirmTimeout: 5,
		GasLimitStore:  500000,
		GasLimitAccess: 300000,
	}, logger.New("error"), nil)
}

func TestNormalizeAddress(t *testing.T) {
	t.Run("lowercase input gets checksummed", func(t *testing.T) {
		got, err := NormalizeAddress(strings.ToLower(ownerAddress))
		assert.NoError(t, err)
		assert.Equal(t, ownerAddress, got)
	})

	t.Run("valid checksum accepted", func(t *testing.T) {
		got, err := NormalizeAddress(ownerAddress)
		assert.NoError(t, err)
		assert.Equal(t, ownerAddress, got)
	})

	t.Run("broken checksum rejected", func(t *testing.T) {
		broken := "0x8Ba1f109551bD432803012645Ac136ddd64DBA72"
		_, err := NormalizeAddress(broken)
		assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidAddress))
	})

	t.Run("missing prefix added", func(t *testing.T) {
		got, err := NormalizeAddress(ownerAddress[2:])
		assert.NoError(t, err)
		assert.Equal(t, ownerAddress, got)

		got, err = NormalizeAddress(strings.ToLower(ownerAddress[2:]))
		assert.NoError(t, err)
		assert.Equal(t, ownerAddress, got)
	})

	t.Run("bare address with broken checksum rejected", func(t *testing.T) {
		_, err := NormalizeAddress("8Ba1f109551bD432803012645Ac136ddd64DBA72")
		assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidAddress))
	})

	t.Run("malformed input rejected", func(t *testing.T) {
		for _, bad := range []string{"", "0x123", "not-an-address", "8ba1f109551bD43280"} {
			_, err := NormalizeAddress(bad)
			assert.Error(t, err, "address %q should be rejected", bad)
		}
	})
}

func TestExtractTxHash_FallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		receipt string
		want    string
	}{
		{"top-level hash", `{"hash":"0xaaa"}`, "0xaaa"},
		{"transactionHash", `{"transactionHash":"0xbbb"}`, "0xbbb"},
		{"nested transaction.hash", `{"transaction":{"hash":"0xccc"}}`, "0xccc"},
		{"nested tx.hash", `{"tx":{"hash":"0xddd"}}`, "0xddd"},
		{"array of receipts", `[{"hash":"0xeee"},{"hash":"0xfff"}]`, "0xeee"},
		{"bare string receipt", `"0x111"`, "0x111"},
		{"hash preferred over transactionHash", `{"hash":"0xaaa","transactionHash":"0xbbb"}`, "0xaaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTxHash(json.RawMessage(tt.receipt)))
		})
	}
}

func TestExtractTxHash_UnrecognizableYieldsPendingMarker(t *testing.T) {
	for _, receipt := range []string{"", `{}`, `{"status":1}`, `[]`, `42`} {
		got := ExtractTxHash(json.RawMessage(receipt))
		assert.True(t, strings.HasPrefix(got, "pending-"), "receipt %q yielded %q", receipt, got)
	}
}

type failingBackend struct {
	err error
}

func (f *failingBackend) Submit(ctx context.Context, method string, gasLimit uint64, args ...string) (json.RawMessage, error) {
	return nil, f.err
}

func (f *failingBackend) Call(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	return nil, f.err
}

func TestChainClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		message  string
		wantCode string
	}{
		{"insufficient funds for gas * price + value", types.ErrCodeInsufficientFunds},
		{"nonce too low", types.ErrCodeNonceConflict},
		{"intrinsic gas too low", types.ErrCodeGasLimit},
		{"execution reverted: record not found", types.ErrCodeChainError},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			client := testChainClient(&failingBackend{err: errors.New(tt.message)})
			_, err := client.StoreRecord(context.Background(), ownerAddress, "QmCid", "hash")
			assert.True(t, types.IsErrorCode(err, tt.wantCode),
				"expected %s for %q, got %v", tt.wantCode, tt.message, err)
		})
	}
}

func TestChainClient_AgainstSimBackend(t *testing.T) {
	sim := NewSimBackend(logger.New("error"))
	client := testChainClient(sim)
	ctx := context.Background()

	txHash, err := client.StoreRecord(ctx, ownerAddress, "QmCid1", "hash1")
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(txHash, "0x"))

	// Owner always has access, stranger does not
	ok, err := client.CheckAccess(ctx, ownerAddress, ownerAddress, "QmCid1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.CheckAccess(ctx, ownerAddress, granteeAddress, "QmCid1")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Grant then verify access, revoke then verify denial
	expiry := time.Now().Add(time.Hour).Unix()
	_, err = client.GrantAccess(ctx, ownerAddress, granteeAddress, "QmCid1", expiry)
	assert.NoError(t, err)

	ok, err = client.CheckAccess(ctx, ownerAddress, granteeAddress, "QmCid1")
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = client.RevokeAccess(ctx, ownerAddress, granteeAddress, "QmCid1")
	assert.NoError(t, err)

	ok, err = client.CheckAccess(ctx, ownerAddress, granteeAddress, "QmCid1")
	assert.NoError(t, err)
	assert.False(t, ok)

	// Anchored state is readable
	info, err := client.GetRecord(ctx, ownerAddress, "QmCid1")
	assert.NoError(t, err)
	assert.Equal(t, "hash1", info.ContentHash)
	assert.Equal(t, ownerAddress, info.PatientAddress)

	// Double anchoring reverts
	_, err = client.StoreRecord(ctx, ownerAddress, "QmCid1", "hash1")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeChainError))
}

func TestChainClient_RejectsInvalidAddresses(t *testing.T) {
	client := testChainClient(NewSimBackend(logger.New("error")))
	ctx := context.Background()

	_, err := client.StoreRecord(ctx, "bogus", "QmCid", "hash")
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidAddress))

	_, err = client.GrantAccess(ctx, ownerAddress, "bogus", "QmCid", time.Now().Add(time.Hour).Unix())
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidAddress))
}

func TestGrantAccess_PastExpirationNeverReachesBackend(t *testing.T) {
	sim := NewSimBackend(logger.New("error"))
	client := testChainClient(sim)
	ctx := context.Background()

	_, err := client.StoreRecord(ctx, ownerAddress, "QmCid1", "hash1")
	assert.NoError(t, err)

	_, err = client.GrantAccess(ctx, ownerAddress, granteeAddress, "QmCid1", time.Now().Add(-time.Minute).Unix())
	assert.True(t, types.IsErrorCode(err, types.ErrCodeInvalidExpiration))

	sim.mu.RLock()
	grants := len(sim.records["QmCid1"].Grantees)
	sim.mu.RUnlock()
	assert.Zero(t, grants, "rejected grant must not touch contract state")
}

func TestCheckAccess_ExpiredGrantIsDenied(t *testing.T) {
	sim := NewSimBackend(logger.New("error"))
	client := testChainClient(sim)
	ctx := context.Background()

	_, err := client.StoreRecord(ctx, ownerAddress, "QmCid1", "hash1")
	assert.NoError(t, err)
	_, err = client.GrantAccess(ctx, ownerAddress, granteeAddress, "QmCid1", time.Now().Add(time.Hour).Unix())
	assert.NoError(t, err)

	// Age the grant past its expiry
	sim.mu.Lock()
	sim.records["QmCid1"].Grantees[strings.ToLower(granteeAddress)] = time.Now().Add(-time.Minute).Unix()
	sim.mu.Unlock()

	ok, err := client.CheckAccess(ctx, ownerAddress, granteeAddress, "QmCid1")
	assert.NoError(t, err)
	assert.False(t, ok)

	// The owner is unaffected by grant expiry
	ok, err = client.CheckAccess(ctx, ownerAddress, ownerAddress, "QmCid1")
	assert.NoError(t, err)
	assert.True(t, ok)
}
