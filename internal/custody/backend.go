package custody

import (
	"context"
	"encoding/json"
)

// Contract method names exposed by the record custody contract
const (
	methodStoreRecord  = "storeRecord"
	methodGrantAccess  = "grantAccess"
	methodRevokeAccess = "revokeAccess"
	methodCheckAccess  = "checkAccess"
	methodGetRecord    = "getRecord"
)

// ContractBackend abstracts the record custody contract transport. Submit
// sends a state-changing transaction and returns the raw receipt once the
// backend considers it accepted; Call performs a read-only query. Receipt
// shapes vary across backends, so callers must not assume a fixed schema.
type ContractBackend interface {
	Submit(ctx context.Context, method string, gasLimit uint64, args ...string) (json.RawMessage, error)
	Call(ctx context.Context, method string, args ...string) (json.RawMessage, error)
}
