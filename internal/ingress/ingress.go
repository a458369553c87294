// Package ingress implements the JSON-RPC admission surface described in
// spec.md §4.2: it terminates eth_sendRawTransaction, eth_sendBundle,
// eth_cancelBundle, eth_sendUserOperation and eth_supportedEntryPoints,
// validates submissions against tipstypes, and publishes the resulting
// lifecycle events onto the ingress event log. Method dispatch is handled
// entirely by the teacher's rpcserver.JSONRPCHandler; this package only
// supplies the Methods map.
package ingress

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/simclient"
	"github.com/flashbots/tips/rpcserver"
	"github.com/flashbots/tips/rpctypes"
	"github.com/flashbots/tips/tipstypes"
)

// Structured JSON-RPC error codes, mirroring spec.md §7's logical error
// kinds as concrete wire codes in the -320xx custom-error range.
const (
	CodeTooManyTransactions    = -32001
	CodeGasLimitExceeded       = -32002
	CodeUnsupportedField       = -32003
	CodeWrongChainID           = -32004
	CodeDecodingError          = -32005
	CodeEntryPointNotSupported = -32006
	CodeSimulationRejected     = -32007
	CodeSimulationTimeout      = -32008
	CodePublishFailed          = -32009
)

// Publisher is the subset of *eventlog.Log the ingress service depends on,
// satisfied by *eventlog.Log in production and a fake in tests.
type Publisher interface {
	Publish(topic string, value any) error
}

// Simulator validates a UserOperation against the L2 simulation
// collaborator, satisfied by *simclient.Client in production.
type Simulator interface {
	ValidateUserOperation(ctx context.Context, uo *tipstypes.UserOperation, entryPoint string) (*simclient.ValidationResult, error)
}

// Config holds the admission parameters that are fixed for the lifetime of
// the Ingress RPC process (spec.md §6: TIPS_INGRESS_CHAIN_ID,
// TIPS_INGRESS_ENTRY_POINTS, TIPS_INGRESS_VALIDATE_USER_OPERATION_TIMEOUT_MS).
type Config struct {
	ChainID                        uint64
	EntryPoints                    []common.Address
	ValidateUserOperationTimeoutMs int
}

// Service implements the eth_* admission methods registered with
// rpcserver.NewJSONRPCHandler.
type Service struct {
	cfg       Config
	publisher Publisher
	simulator Simulator
}

// New builds a Service publishing through pub and validating UserOperations
// through sim.
func New(cfg Config, pub Publisher, sim Simulator) *Service {
	if cfg.ValidateUserOperationTimeoutMs == 0 {
		cfg.ValidateUserOperationTimeoutMs = int(simclient.DefaultTimeout / time.Millisecond)
	}
	return &Service{cfg: cfg, publisher: pub, simulator: sim}
}

// Methods returns the rpcserver.Methods map wiring the admission methods
// under their wire-compatible names.
func (s *Service) Methods() rpcserver.Methods {
	return rpcserver.Methods{
		"eth_sendRawTransaction":   s.EthSendRawTransaction,
		"eth_sendBundle":           s.EthSendBundle,
		"eth_cancelBundle":         s.EthCancelBundle,
		"eth_sendUserOperation":    s.EthSendUserOperation,
		"eth_supportedEntryPoints": s.EthSupportedEntryPoints,
	}
}

// nextEventNonce is the producer-assigned nonce that, combined with the
// entity id, forms the globally unique dedup key required by spec.md §4.4.
// Ingress never revisits an entity within a single RPC call, so the current
// wall-clock nanosecond is sufficiently unique without keeping per-entity
// state in an otherwise-stateless, horizontally-scaled process.
func nextEventNonce() uint64 {
	return uint64(time.Now().UnixNano())
}

// EthSendRawTransaction decodes raw, wraps it into a single-tx bundle and
// publishes a Created event (spec.md §4.2 admission algorithm).
func (s *Service) EthSendRawTransaction(ctx context.Context, raw rpctypes.EthSendRawTransactionArgs) (common.Hash, error) {
	tx, err := tipstypes.DecodeTx(raw)
	if err != nil {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeDecodingError, Message: err.Error()}
	}

	if err := tipstypes.Validate([]*tipstypes.Tx{tx}, s.cfg.ChainID); err != nil {
		return common.Hash{}, validationError(err)
	}

	id := uuid.New()
	bundle := tipstypes.WrapRawTx(tx, id, time.Now().UnixMilli())

	event := &tipstypes.BundleEvent{
		Event:     tipstypes.BundleEventCreated,
		Timestamp: time.Now().UnixMilli(),
		DedupKey:  tipstypes.EventKey(id.String(), nextEventNonce()),
		Bundle:    bundle,
	}
	if err := s.publisher.Publish(eventlog.TopicIngressBundles, event); err != nil {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodePublishFailed, Message: err.Error()}
	}

	return tx.Hash, nil
}

// EthSendBundle decodes and validates each transaction, then publishes
// either an Updated event (replacementUuid present) or a Created event with
// a freshly minted uuid (spec.md §4.2).
func (s *Service) EthSendBundle(ctx context.Context, args rpctypes.EthSendBundleArgs) (uuid.UUID, error) {
	if err := tipstypes.ValidateRawBundleArgs(len(args.DroppingTxHashes) > 0, hasRefundFields(args)); err != nil {
		return uuid.Nil, validationError(err)
	}

	txs := make([]*tipstypes.Tx, len(args.Txs))
	for i, raw := range args.Txs {
		tx, err := tipstypes.DecodeTx(raw)
		if err != nil {
			return uuid.Nil, &rpcserver.JSONRPCError{Code: CodeDecodingError, Message: err.Error()}
		}
		txs[i] = tx
	}

	if err := tipstypes.Validate(txs, s.cfg.ChainID); err != nil {
		return uuid.Nil, validationError(err)
	}

	blockNumber := uint64(0)
	if args.BlockNumber != nil {
		blockNumber = uint64(*args.BlockNumber)
	}

	tag := tipstypes.BundleEventCreated
	id := uuid.New()
	var replacementUUID *uuid.UUID
	if args.ReplacementUUID != nil {
		parsed, err := uuid.Parse(*args.ReplacementUUID)
		if err != nil {
			return uuid.Nil, &rpcserver.JSONRPCError{Code: CodeDecodingError, Message: "invalid replacementUuid"}
		}
		id = parsed
		replacementUUID = &parsed
		tag = tipstypes.BundleEventUpdated
	}

	minTimestamp, maxTimestamp := uint64(0), uint64(0)
	if args.MinTimestamp != nil {
		minTimestamp = *args.MinTimestamp
	}
	if args.MaxTimestamp != nil {
		maxTimestamp = *args.MaxTimestamp
	}

	bundle := tipstypes.NewBundle(id, txs, blockNumber, minTimestamp, maxTimestamp, replacementUUID, time.Now().UnixMilli())

	event := &tipstypes.BundleEvent{
		Event:     tag,
		Timestamp: time.Now().UnixMilli(),
		DedupKey:  tipstypes.EventKey(id.String(), nextEventNonce()),
		Bundle:    bundle,
	}
	if err := s.publisher.Publish(eventlog.TopicIngressBundles, event); err != nil {
		return uuid.Nil, &rpcserver.JSONRPCError{Code: CodePublishFailed, Message: err.Error()}
	}

	return id, nil
}

// EthCancelBundle publishes a Cancelled event; per spec.md §4.2 this is
// best-effort and always reports success once the event is published.
func (s *Service) EthCancelBundle(ctx context.Context, args rpctypes.EthCancelBundleArgs) (bool, error) {
	id, err := uuid.Parse(args.ReplacementUUID)
	if err != nil {
		return false, &rpcserver.JSONRPCError{Code: CodeDecodingError, Message: "invalid uuid"}
	}

	event := &tipstypes.BundleEvent{
		Event:     tipstypes.BundleEventCancelled,
		Timestamp: time.Now().UnixMilli(),
		DedupKey:  tipstypes.EventKey(id.String(), nextEventNonce()),
		UUID:      &id,
	}
	if err := s.publisher.Publish(eventlog.TopicIngressBundles, event); err != nil {
		return false, &rpcserver.JSONRPCError{Code: CodePublishFailed, Message: err.Error()}
	}
	return true, nil
}

// EthSendUserOperation validates entryPoint against the whitelist, decodes
// the UserOperation, calls the simulation collaborator under the configured
// timeout, and on success publishes an AddedToMempool event keyed by
// userOpHash (spec.md §4.2).
func (s *Service) EthSendUserOperation(ctx context.Context, rawUO json.RawMessage, entryPoint common.Address) (common.Hash, error) {
	if !s.entryPointSupported(entryPoint) {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeEntryPointNotSupported, Message: tipstypes.ErrEntryPointNotSupported.Error()}
	}

	uo, err := tipstypes.DecodeUserOperation(rawUO, entryPoint)
	if err != nil {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeDecodingError, Message: err.Error()}
	}

	timeout := time.Duration(s.cfg.ValidateUserOperationTimeoutMs) * time.Millisecond
	simCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := s.simulator.ValidateUserOperation(simCtx, uo, entryPoint.Hex())
	if err != nil {
		if simCtx.Err() != nil {
			return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeSimulationTimeout, Message: "validateUserOperation timed out"}
		}
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeSimulationRejected, Message: err.Error()}
	}
	if !result.Valid {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodeSimulationRejected, Message: result.Reason}
	}

	hash := uo.Hash(new(big.Int).SetUint64(s.cfg.ChainID))

	event := &tipstypes.UserOpEvent{
		Event:      tipstypes.UserOpEventAddedToMempool,
		Timestamp:  time.Now().UnixMilli(),
		DedupKey:   tipstypes.EventKey(hash.Hex(), nextEventNonce()),
		UserOpHash: hash,
		Sender:     &uo.Sender,
		EntryPoint: &entryPoint,
		Nonce:      nonceUint64(uo),
		UserOp:     uo,
	}
	if err := s.publisher.Publish(eventlog.TopicUserOperation, event); err != nil {
		return common.Hash{}, &rpcserver.JSONRPCError{Code: CodePublishFailed, Message: err.Error()}
	}

	return hash, nil
}

// EthSupportedEntryPoints returns the configured entry-point whitelist.
func (s *Service) EthSupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	return s.cfg.EntryPoints, nil
}

func (s *Service) entryPointSupported(ep common.Address) bool {
	for _, allowed := range s.cfg.EntryPoints {
		if allowed == ep {
			return true
		}
	}
	return false
}

func nonceUint64(uo *tipstypes.UserOperation) *uint64 {
	if uo.Nonce == nil {
		return nil
	}
	n := uo.Nonce.Uint64()
	return &n
}

func hasRefundFields(args rpctypes.EthSendBundleArgs) bool {
	return args.RefundPercent != nil || args.RefundRecipient != nil || len(args.RefundTxHashes) > 0
}

// validationError maps a tipstypes validation error onto the matching
// structured JSON-RPC error code.
func validationError(err error) error {
	code := CodeDecodingError
	switch err {
	case tipstypes.ErrTooManyTransactions:
		code = CodeTooManyTransactions
	case tipstypes.ErrGasLimitExceeded:
		code = CodeGasLimitExceeded
	case tipstypes.ErrUnsupportedField:
		code = CodeUnsupportedField
	case tipstypes.ErrWrongChainID:
		code = CodeWrongChainID
	case tipstypes.ErrDecoding:
		code = CodeDecodingError
	}
	return &rpcserver.JSONRPCError{Code: code, Message: err.Error()}
}
