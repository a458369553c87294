// Package simclient calls the simulation collaborator's
// base_validateUserOperation RPC method the Ingress RPC uses to admit
// incoming UserOperations (spec.md §4.2). Built on the teacher's
// rpcclient.RPCClient, reused verbatim for outbound JSON-RPC calls.
package simclient

import (
	"context"
	"fmt"
	"time"

	"github.com/flashbots/tips/rpcclient"
	"github.com/flashbots/tips/tipstypes"
)

// DefaultTimeout is the simulation call budget from spec.md §5.
const DefaultTimeout = 2000 * time.Millisecond

// ValidationResult is the decoded response of base_validateUserOperation.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	PreOpGas uint64 `json:"preOpGas,omitempty"`
	Prefund  string `json:"prefund,omitempty"`
}

// Client validates UserOperations against the simulation collaborator.
type Client struct {
	rpc     rpcclient.RPCClient
	timeout time.Duration
}

// New builds a Client against the simulation collaborator's endpoint.
func New(endpoint string) *Client {
	return &Client{
		rpc:     rpcclient.NewClient(endpoint),
		timeout: DefaultTimeout,
	}
}

// ValidateUserOperation calls base_validateUserOperation with uo (as decoded
// by tipstypes.DecodeUserOperation) and entryPoint, bounded by the 2000ms
// simulation timeout from spec.md §5.
func (c *Client) ValidateUserOperation(ctx context.Context, uo *tipstypes.UserOperation, entryPoint string) (*ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result ValidationResult
	if err := c.rpc.CallFor(ctx, &result, "base_validateUserOperation", uo, entryPoint); err != nil {
		return nil, fmt.Errorf("simclient: base_validateUserOperation: %w", err)
	}
	return &result, nil
}
