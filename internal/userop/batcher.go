package userop

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"

	"github.com/flashbots/tips/internal/bundlersign"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/simclient"
	"github.com/flashbots/tips/tipstypes"
)

const (
	DefaultBatchSize      = 100
	DefaultBatchTimeoutMs = 1000

	baseHandleOpsGas = uint64(50_000)
	perUserOpGas     = uint64(200_000)
)

// Publisher publishes a built Directive onto the event log.
type Publisher interface {
	Publish(topic string, value any) error
}

// Simulator re-validates a UserOperation immediately before it is folded
// into a handleOps batch, so one that would now revert is dropped rather
// than poisoning the whole batch (spec.md §4.5 failure semantics).
type Simulator interface {
	ValidateUserOperation(ctx context.Context, uo *tipstypes.UserOperation, entryPoint string) (*simclient.ValidationResult, error)
}

// NonceSource supplies the bundler account's next nonce. Satisfied by
// *ethclient.Client's PendingNonceAt.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Directive is what the UserOp Bundler hands the builder collaborator:
// the signed handleOps transaction plus the block position it should be
// inserted at (spec.md §4.5).
type Directive struct {
	EntryPoint     common.Address `json:"entryPoint"`
	SignedTxRaw    []byte         `json:"signedTxRaw"`
	TxHash         common.Hash    `json:"txHash"`
	BundleHash     common.Hash    `json:"bundleHash"`
	Beneficiary    common.Address `json:"beneficiary"`
	InsertionIndex int            `json:"insertionIndex"`
	UserOpHashes   []common.Hash  `json:"userOpHashes"`
	Timestamp      int64          `json:"timestamp"`
}

// Key partitions the directive log by entry point.
func (d *Directive) Key() string {
	return d.EntryPoint.Hex()
}

// Config configures a Batcher.
type Config struct {
	ChainID        *big.Int
	BatchSize      int
	BatchTimeoutMs int
	Beneficiary    common.Address
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchTimeoutMs <= 0 {
		c.BatchTimeoutMs = DefaultBatchTimeoutMs
	}
	return c
}

// Batcher groups admitted UserOperations by entry point and flushes each
// group into at most one handleOps transaction per entry point per block
// (spec.md §4.5).
type Batcher struct {
	cfg         Config
	signer      *bundlersign.Signer
	simulator   Simulator
	publisher   Publisher
	nonceSource NonceSource

	mu      sync.Mutex
	pending map[common.Address][]*tipstypes.UserOperation
	timers  map[common.Address]*time.Timer
}

// New builds a Batcher.
func New(cfg Config, signer *bundlersign.Signer, sim Simulator, pub Publisher, nonceSource NonceSource) *Batcher {
	return &Batcher{
		cfg:         cfg.withDefaults(),
		signer:      signer,
		simulator:   sim,
		publisher:   pub,
		nonceSource: nonceSource,
		pending:     make(map[common.Address][]*tipstypes.UserOperation),
		timers:      make(map[common.Address]*time.Timer),
	}
}

// HandleEvent is the eventlog.Handler for tips-user-operation: it folds
// every AddedToMempool event's UserOperation into the entry point's batch.
func (b *Batcher) HandleEvent(ctx context.Context, topic, key string, value []byte) error {
	var event tipstypes.UserOpEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("userop: decoding event: %w", err)
	}
	if event.Event != tipstypes.UserOpEventAddedToMempool || event.EntryPoint == nil || event.UserOp == nil {
		return nil
	}
	b.Add(ctx, *event.EntryPoint, event.UserOp)
	return nil
}

// Add folds uo into entryPoint's pending batch, flushing immediately once
// BatchSize is reached or starting the BatchTimeoutMs timer for the first
// UO in a fresh batch.
func (b *Batcher) Add(ctx context.Context, entryPoint common.Address, uo *tipstypes.UserOperation) {
	b.mu.Lock()
	b.pending[entryPoint] = append(b.pending[entryPoint], uo)
	count := len(b.pending[entryPoint])
	var timer *time.Timer
	if count == 1 {
		timer = time.AfterFunc(time.Duration(b.cfg.BatchTimeoutMs)*time.Millisecond, func() {
			_ = b.Flush(context.Background(), entryPoint)
		})
		b.timers[entryPoint] = timer
	}
	flushNow := count >= b.cfg.BatchSize
	if flushNow {
		if t, ok := b.timers[entryPoint]; ok {
			t.Stop()
			delete(b.timers, entryPoint)
		}
	}
	b.mu.Unlock()

	if flushNow {
		_ = b.Flush(ctx, entryPoint)
	}
}

// Flush builds and publishes the handleOps directive for entryPoint's
// current batch, if any UOs survive re-simulation. Exported so it can be
// driven directly (tests, graceful-shutdown drains) as well as by the
// batch-size/timeout triggers in Add.
func (b *Batcher) Flush(ctx context.Context, entryPoint common.Address) error {
	b.mu.Lock()
	ops := b.pending[entryPoint]
	b.pending[entryPoint] = nil
	if t, ok := b.timers[entryPoint]; ok {
		t.Stop()
		delete(b.timers, entryPoint)
	}
	b.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	surviving := make([]*tipstypes.UserOperation, 0, len(ops))
	for _, uo := range ops {
		result, err := b.simulator.ValidateUserOperation(ctx, uo, entryPoint.Hex())
		if err != nil || result == nil || !result.Valid {
			continue
		}
		surviving = append(surviving, uo)
	}
	if len(surviving) == 0 {
		return nil
	}

	calldata, err := PackHandleOps(surviving, b.cfg.Beneficiary)
	if err != nil {
		return fmt.Errorf("userop: packing batch for %s: %w", entryPoint, err)
	}

	nonce, err := b.nonceSource.PendingNonceAt(ctx, b.signer.Address())
	if err != nil {
		return fmt.Errorf("userop: fetching bundler nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   b.cfg.ChainID,
		Nonce:     nonce,
		To:        &entryPoint,
		Data:      calldata,
		Gas:       baseHandleOpsGas + perUserOpGas*uint64(len(surviving)),
		GasFeeCap: big.NewInt(0),
		GasTipCap: big.NewInt(0),
	})

	signed, err := b.signer.SignTx(tx)
	if err != nil {
		return fmt.Errorf("userop: signing handleOps tx: %w", err)
	}
	signedRaw, err := signed.MarshalBinary()
	if err != nil {
		return fmt.Errorf("userop: encoding signed tx: %w", err)
	}

	bundleHash, userOpHashes := computeBundleHash(surviving, b.cfg.ChainID, signed.Hash(), b.cfg.Beneficiary)

	directive := &Directive{
		EntryPoint:     entryPoint,
		SignedTxRaw:    signedRaw,
		TxHash:         signed.Hash(),
		BundleHash:     bundleHash,
		Beneficiary:    b.cfg.Beneficiary,
		InsertionIndex: InsertionIndex(0, len(surviving)),
		UserOpHashes:   userOpHashes,
		Timestamp:      time.Now().UnixMilli(),
	}

	return b.publisher.Publish(eventlog.TopicBundlerDirectives, directive)
}

// computeBundleHash implements spec.md §4.5's audit hash:
// keccak(concat(uo.hash for uo in ops) || bundlerTx.hash || beneficiary).
func computeBundleHash(ops []*tipstypes.UserOperation, chainID *big.Int, txHash common.Hash, beneficiary common.Address) (common.Hash, []common.Hash) {
	hasher := sha3.NewLegacyKeccak256()
	hashes := make([]common.Hash, len(ops))
	for i, op := range ops {
		h := op.Hash(chainID)
		hashes[i] = h
		hasher.Write(h.Bytes())
	}
	hasher.Write(txHash.Bytes())
	hasher.Write(beneficiary.Bytes())
	return common.BytesToHash(hasher.Sum(nil)), hashes
}
