package custody

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/logger"
)

// RPCBackend talks to a transaction relay over JSON-RPC 2.0. The relay
// holds the hot wallet and signs contract calls on our behalf; this
// process never sees raw transaction material beyond the relay key.
type RPCBackend struct {
	url        string
	contract   string
	relayKey   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewRPCBackend creates a relay-backed contract backend
func NewRPCBackend(cfg *config.ChainConfig, log *logger.Logger) *RPCBackend {
	return &RPCBackend{
		url:      cfg.RPCURL,
		contract: cfg.ContractAddress,
		relayKey: cfg.WalletKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.ConfirmTimeout) * time.Second,
		},
		logger: log,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int64         `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int64           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Submit sends a state-changing contract call through the relay
func (b *RPCBackend) Submit(ctx context.Context, method string, gasLimit uint64, args ...string) (json.RawMessage, error) {
	return b.call(ctx, "relay_submit", map[string]interface{}{
		"contract": b.contract,
		"method":   method,
		"args":     args,
		"gasLimit": gasLimit,
	})
}

// Call sends a read-only contract call through the relay
func (b *RPCBackend) Call(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	return b.call(ctx, "relay_call", map[string]interface{}{
		"contract": b.contract,
		"method":   method,
		"args":     args,
	})
}

func (b *RPCBackend) call(ctx context.Context, rpcMethod string, params map[string]interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  rpcMethod,
		Params:  []interface{}{params},
		ID:      time.Now().UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.relayKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.relayKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read rpc response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
