// Package maintenance implements the background, idempotent sweeper
// described in spec.md §4.6: it evicts bundles from the live catalog on
// timeout, per-account mempool cap, or global mempool cap, publishing
// Dropped(reason) onto the builder lifecycle log for the Bundle Store (and
// Audit) to observe. It never mutates the catalog directly — eviction is
// just another event, so multiple maintenance workers can run
// concurrently and each drop is naturally idempotent (the Bundle Store
// ignores a Dropped for an already-gone uuid).
package maintenance

import (
	"context"
	"math/big"
	"sort"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/metrics"
	"github.com/flashbots/tips/tipstypes"
)

// DefaultBundleTimeoutSeconds is the wall-clock fallback horizon applied
// when a bundle carries no explicit maxTimestamp (spec.md §3: "0 = any
// within a 24h horizon").
const DefaultBundleTimeoutSeconds = 24 * 60 * 60

// DefaultPerAccountCap and DefaultGlobalCap bound how many Ready bundles a
// single sender, and the catalog as a whole, may occupy before Maintenance
// starts evicting (spec.md §4.6).
const (
	DefaultPerAccountCap = 64
	DefaultGlobalCap     = 50_000
)

// Reader is the subset of the Bundle Store's reader surface Maintenance
// needs: the whole catalog; Sweep itself keeps only the Ready entries and
// applies timeouts and caps to those.
type Reader interface {
	ListAll() []*tipstypes.Bundle
}

// Publisher publishes a Dropped event onto the builder lifecycle log.
type Publisher interface {
	Publish(topic string, value any) error
}

// Config bounds the sweep.
type Config struct {
	BundleTimeoutSeconds int64
	PerAccountCap        int
	GlobalCap            int
}

func (c Config) withDefaults() Config {
	if c.BundleTimeoutSeconds <= 0 {
		c.BundleTimeoutSeconds = DefaultBundleTimeoutSeconds
	}
	if c.PerAccountCap <= 0 {
		c.PerAccountCap = DefaultPerAccountCap
	}
	if c.GlobalCap <= 0 {
		c.GlobalCap = DefaultGlobalCap
	}
	return c
}

// Sweeper runs one idempotent pass over the live catalog per Sweep call.
type Sweeper struct {
	cfg    Config
	reader Reader
	pub    Publisher
	now    func() time.Time
}

// New builds a Sweeper.
func New(cfg Config, reader Reader, pub Publisher) *Sweeper {
	return &Sweeper{cfg: cfg.withDefaults(), reader: reader, pub: pub, now: time.Now}
}

// Run ticks Sweep every interval until ctx is cancelled, counting (in the
// sweep-error metric) but not stopping on individual sweep errors — the next tick will retry the same
// idempotent transitions.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				metrics.IncMaintenanceSweepError()
			}
		}
	}
}

// Sweep runs one pass: timeout eviction, then per-account cap, then global
// cap, over the Ready entries of the current catalog snapshot. Each
// candidate observed as already evicted by a concurrent worker is simply
// not re-published (Publish is only ever called for bundles this pass
// itself decided to drop).
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := s.now()
	live := readyBundles(s.reader.ListAll())

	live = s.evictTimeouts(ctx, live, now)
	live = s.evictPerAccountCap(ctx, live)
	s.evictGlobalCap(ctx, live, now)

	return nil
}

func readyBundles(all []*tipstypes.Bundle) []*tipstypes.Bundle {
	out := make([]*tipstypes.Bundle, 0, len(all))
	for _, b := range all {
		if b.State == tipstypes.BundleStateReady {
			out = append(out, b)
		}
	}
	return out
}

// evictTimeouts drops every bundle whose inclusion window has passed: an
// explicit maxTimestamp in the past, or (when unset) the default horizon
// measured from createdAt.
func (s *Sweeper) evictTimeouts(ctx context.Context, bundles []*tipstypes.Bundle, now time.Time) []*tipstypes.Bundle {
	nowMs := now.UnixMilli()
	kept := make([]*tipstypes.Bundle, 0, len(bundles))
	for _, b := range bundles {
		deadline := b.CreatedAt + s.cfg.BundleTimeoutSeconds*1000
		if b.MaxTimestamp != 0 {
			deadline = int64(b.MaxTimestamp) * 1000
		}
		if nowMs > deadline {
			s.drop(ctx, b, tipstypes.BundleDropTimeout)
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

// evictPerAccountCap groups the remaining bundles by the sender of their
// first transaction and, for any sender over cap, drops the highest-nonce
// entries first (spec.md §4.6: "drop by descending nonce").
func (s *Sweeper) evictPerAccountCap(ctx context.Context, bundles []*tipstypes.Bundle) []*tipstypes.Bundle {
	bySender := make(map[string][]*tipstypes.Bundle)
	for _, b := range bundles {
		sender := senderOf(b)
		bySender[sender] = append(bySender[sender], b)
	}

	kept := make([]*tipstypes.Bundle, 0, len(bundles))
	for _, group := range bySender {
		if len(group) <= s.cfg.PerAccountCap {
			kept = append(kept, group...)
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return nonceOf(group[i]) > nonceOf(group[j])
		})
		excess := len(group) - s.cfg.PerAccountCap
		for _, b := range group[:excess] {
			s.drop(ctx, b, tipstypes.BundleDropCapExceeded)
		}
		kept = append(kept, group[excess:]...)
	}
	return kept
}

// evictGlobalCap drops the oldest, lowest-fee bundles once the catalog
// exceeds GlobalCap, per spec.md §4.6's "age + low-effective-base-fee
// composite key".
func (s *Sweeper) evictGlobalCap(ctx context.Context, bundles []*tipstypes.Bundle, now time.Time) {
	if len(bundles) <= s.cfg.GlobalCap {
		return
	}

	sort.Slice(bundles, func(i, j int) bool {
		return compositeEvictionScore(bundles[i], now) > compositeEvictionScore(bundles[j], now)
	})

	excess := len(bundles) - s.cfg.GlobalCap
	for _, b := range bundles[:excess] {
		s.drop(ctx, b, tipstypes.BundleDropCapExceeded)
	}
}

// compositeEvictionScore ranks bundles worst-first: older and cheaper
// bundles score higher (more eligible for eviction). Fee is weighted in
// gwei per gas, age in seconds, so a bundle twice as old outranks a
// marginal fee difference without a fee-less bundle ever outliving a
// well-tipped one indefinitely.
func compositeEvictionScore(b *tipstypes.Bundle, now time.Time) float64 {
	ageSeconds := float64(now.UnixMilli()-b.CreatedAt) / 1000
	fee := effectiveFeePerGas(b)
	feeGwei := new(big.Float).Quo(new(big.Float).SetInt(fee), big.NewFloat(1e9))
	feeScore, _ := feeGwei.Float64()
	if feeScore <= 0 {
		feeScore = 0.001
	}
	return ageSeconds / feeScore
}

// effectiveFeePerGas decodes the bundle's first transaction to recover its
// fee cap. The canonical Tx value TIPS stores is deliberately opaque
// (spec.md §3), so this is the one place Maintenance pays the cost of
// re-decoding the raw envelope.
func effectiveFeePerGas(b *tipstypes.Bundle) *big.Int {
	if len(b.Txs) == 0 {
		return big.NewInt(0)
	}
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(b.Txs[0].Raw); err != nil {
		return big.NewInt(0)
	}
	if fee := tx.GasFeeCap(); fee != nil {
		return fee
	}
	return big.NewInt(0)
}

func senderOf(b *tipstypes.Bundle) string {
	if len(b.Txs) == 0 {
		return ""
	}
	return b.Txs[0].Sender.Hex()
}

func nonceOf(b *tipstypes.Bundle) uint64 {
	if len(b.Txs) == 0 {
		return 0
	}
	return b.Txs[0].Nonce
}

var eventNonce uint64

// nextEventNonce returns wall-clock nanoseconds plus a per-process counter,
// so successive drops from this process get distinct event keys without
// shared state across workers.
func nextEventNonce() uint64 {
	eventNonce++
	return uint64(time.Now().UnixNano()) + eventNonce
}

func (s *Sweeper) drop(ctx context.Context, b *tipstypes.Bundle, reason tipstypes.BundleDropReason) {
	id := b.UUID
	event := &tipstypes.BundleEvent{
		Event:     tipstypes.BundleEventDropped,
		Timestamp: time.Now().UnixMilli(),
		DedupKey:  tipstypes.EventKey(id.String(), nextEventNonce()),
		UUID:      &id,
		Reason:    &reason,
	}
	if err := s.pub.Publish(eventlog.TopicBuilderEvents, event); err != nil {
		metrics.IncMaintenanceSweepError()
		return
	}
	metrics.IncMaintenanceEvicted(string(reason))
}
