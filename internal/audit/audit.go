// Package audit implements the Audit Pipeline (spec.md §4.4): it merges
// the ingress and builder event streams into a per-entity, append-only
// history persisted in the object store, and maintains the
// transactions/by_hash/<txHash> index used to answer "which bundle(s) did
// this tx end up in".
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/flashbots/tips/internal/objectstore"
	"github.com/flashbots/tips/logutils"
	"github.com/flashbots/tips/tipstypes"
)

// historyDoc is the object layout stored at bundles/<uuid> and
// userops/<userOpHash> (spec.md §4.4).
type historyDoc struct {
	History []json.RawMessage `json:"history"`
}

// txIndexDoc is the object layout stored at transactions/by_hash/<txHash>.
type txIndexDoc struct {
	BundleIDs []string `json:"bundle_ids"`
}

// rawMeta extracts the fields common to both BundleEvent and UserOpEvent
// wire envelopes, enough to dedup and order history entries without
// knowing which variant a raw event is.
type rawMeta struct {
	Timestamp  int64        `json:"timestamp"`
	Key        string       `json:"key"`
	UserOpHash *interface{} `json:"userOpHash"`
}

// objectStore is the subset of *objectstore.Store the pipeline needs,
// narrowed to an interface so tests can exercise the merge/retry logic
// against a fake instead of a live S3-compatible endpoint.
type objectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// Pipeline merges the ingress/builder streams into per-entity histories.
type Pipeline struct {
	store      objectStore
	maxBackoff time.Duration
}

// New builds a Pipeline persisting through store.
func New(store objectStore) *Pipeline {
	return &Pipeline{store: store, maxBackoff: 30 * time.Second}
}

// Handle processes a single raw event from either tips-ingress-bundles,
// tips-user-operation, or tips-builder-events, discriminating bundle vs
// UserOp events by the presence of the userOpHash field, and persists the
// updated history with indefinite exponential-backoff retry on transient
// object-store failures (spec.md §4.4 failure semantics). It returns only
// once the write has succeeded, so the caller may safely commit the
// consumer offset on a nil return.
func (p *Pipeline) Handle(ctx context.Context, topic, key string, value []byte) error {
	var meta rawMeta
	if err := json.Unmarshal(value, &meta); err != nil {
		return fmt.Errorf("audit: decoding event envelope: %w", err)
	}

	if meta.UserOpHash != nil {
		return p.handleUserOpEvent(ctx, value)
	}
	return p.handleBundleEvent(ctx, value)
}

func (p *Pipeline) handleBundleEvent(ctx context.Context, raw []byte) error {
	var event tipstypes.BundleEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("audit: decoding bundle event: %w", err)
	}
	entityID := event.EntityID()
	if entityID == "" {
		return nil
	}

	key := objectstore.BundleKey(entityID)
	appended, err := p.mergeAndPersist(ctx, key, raw)
	if err != nil {
		return err
	}
	if !appended || event.Bundle == nil {
		return nil
	}

	for _, tx := range event.Bundle.Txs {
		if err := p.addToTxIndex(ctx, tx.Hash.Hex(), entityID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) handleUserOpEvent(ctx context.Context, raw []byte) error {
	var event tipstypes.UserOpEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("audit: decoding userop event: %w", err)
	}
	key := objectstore.UserOpKey(event.EntityID())
	_, err := p.mergeAndPersist(ctx, key, raw)
	return err
}

// mergeAndPersist loads the history at key, appends raw if its dedup key
// is new, re-sorts by timestamp, and writes back. It retries indefinitely
// on object-store errors with exponential backoff, per spec.md §4.4.
func (p *Pipeline) mergeAndPersist(ctx context.Context, key string, raw json.RawMessage) (appended bool, err error) {
	var doc historyDoc
	existing, err := p.retryGet(ctx, key)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return false, fmt.Errorf("audit: decoding history at %q: %w", key, err)
		}
	}

	merged, appended, err := mergeHistory(doc.History, raw)
	if err != nil {
		return false, err
	}
	if !appended {
		return false, nil
	}

	out, err := json.Marshal(historyDoc{History: merged})
	if err != nil {
		return false, fmt.Errorf("audit: encoding history at %q: %w", key, err)
	}
	if err := p.retryPut(ctx, key, out); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) addToTxIndex(ctx context.Context, txHash, bundleID string) error {
	key := objectstore.TransactionIndexKey(txHash)

	var doc txIndexDoc
	existing, err := p.retryGet(ctx, key)
	if err != nil {
		return err
	}
	if existing != nil {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return fmt.Errorf("audit: decoding tx index at %q: %w", key, err)
		}
	}

	for _, id := range doc.BundleIDs {
		if id == bundleID {
			return nil
		}
	}
	doc.BundleIDs = append(doc.BundleIDs, bundleID)

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("audit: encoding tx index at %q: %w", key, err)
	}
	return p.retryPut(ctx, key, out)
}

// mergeHistory appends newEvent to existing unless an entry with the same
// dedup key is already present (idempotence, spec.md §4.4 step 3), then
// stable-sorts the result by timestamp (step 4).
func mergeHistory(existing []json.RawMessage, newEvent json.RawMessage) ([]json.RawMessage, bool, error) {
	var newMeta rawMeta
	if err := json.Unmarshal(newEvent, &newMeta); err != nil {
		return nil, false, fmt.Errorf("audit: decoding event meta: %w", err)
	}

	type entry struct {
		raw  json.RawMessage
		meta rawMeta
	}
	entries := make([]entry, 0, len(existing)+1)
	for _, e := range existing {
		var m rawMeta
		if err := json.Unmarshal(e, &m); err != nil {
			return nil, false, fmt.Errorf("audit: decoding history entry: %w", err)
		}
		if m.Key == newMeta.Key {
			return existing, false, nil
		}
		entries = append(entries, entry{raw: e, meta: m})
	}
	entries = append(entries, entry{raw: newEvent, meta: newMeta})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].meta.Timestamp < entries[j].meta.Timestamp
	})

	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = e.raw
	}
	return out, true, nil
}

// retryGet reads key, returning (nil, nil) if it does not exist yet, and
// retries transient errors with exponential backoff (capped at
// p.maxBackoff) until ctx is cancelled.
func (p *Pipeline) retryGet(ctx context.Context, key string) ([]byte, error) {
	backoff := 100 * time.Millisecond
	for {
		data, err := p.store.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logutils.ZapFromContext(ctx).Warn("audit: retrying object store read", zap.String("key", key), zap.Error(err))
		backoff = p.sleepBackoff(ctx, backoff)
	}
}

func (p *Pipeline) retryPut(ctx context.Context, key string, data []byte) error {
	backoff := 100 * time.Millisecond
	for {
		err := p.store.Put(ctx, key, data)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logutils.ZapFromContext(ctx).Warn("audit: retrying object store write", zap.String("key", key), zap.Error(err))
		backoff = p.sleepBackoff(ctx, backoff)
	}
}

func (p *Pipeline) sleepBackoff(ctx context.Context, backoff time.Duration) time.Duration {
	select {
	case <-time.After(backoff):
	case <-ctx.Done():
	}
	next := backoff * 2
	if next > p.maxBackoff {
		next = p.maxBackoff
	}
	return next
}
