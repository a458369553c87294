// Package bundlestore owns the live catalog of bundles described in
// spec.md §4.3: a single writer applies the ingress/builder event streams,
// any number of readers observe a point-in-time snapshot. The snapshot is
// swapped atomically on every write (copy-on-write), so readers never
// block on or race with the writer — there is no suitable third-party
// primitive for this in the retrieved pack, so it uses sync/atomic's
// generic Pointer directly (see DESIGN.md).
package bundlestore

import (
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/flashbots/tips/internal/metrics"
	"github.com/flashbots/tips/tipstypes"
)

// snapshot is the immutable point-in-time view readers observe. A new
// snapshot is built and swapped in on every applied event; existing readers
// keep their own reference and never see a partially-applied mutation.
type snapshot struct {
	byUUID        map[uuid.UUID]*tipstypes.Bundle
	byHash        map[common.Hash]uuid.UUID
	bySenderNonce map[tipstypes.SenderNonce]uuid.UUID
}

func emptySnapshot() *snapshot {
	return &snapshot{
		byUUID:        make(map[uuid.UUID]*tipstypes.Bundle),
		byHash:        make(map[common.Hash]uuid.UUID),
		bySenderNonce: make(map[tipstypes.SenderNonce]uuid.UUID),
	}
}

// clone builds a shallow copy of s: Bundle values themselves are replaced
// wholesale on update, never mutated in place, so sharing the *Bundle
// pointers across snapshots is safe.
func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		byUUID:        make(map[uuid.UUID]*tipstypes.Bundle, len(s.byUUID)),
		byHash:        make(map[common.Hash]uuid.UUID, len(s.byHash)),
		bySenderNonce: make(map[tipstypes.SenderNonce]uuid.UUID, len(s.bySenderNonce)),
	}
	for k, v := range s.byUUID {
		next.byUUID[k] = v
	}
	for k, v := range s.byHash {
		next.byHash[k] = v
	}
	for k, v := range s.bySenderNonce {
		next.bySenderNonce[k] = v
	}
	return next
}

// Store is the single-writer, many-reader live bundle catalog.
type Store struct {
	head    atomic.Pointer[snapshot]
	writeMu sync.Mutex // serializes Apply calls; readers never take this lock
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	s.head.Store(emptySnapshot())
	return s
}

// ListReady returns every bundle currently in the Ready state, as a
// snapshot slice safe to iterate without locking (spec.md §4.3 reader
// contract).
func (s *Store) ListReady() []*tipstypes.Bundle {
	snap := s.head.Load()
	out := make([]*tipstypes.Bundle, 0, len(snap.byUUID))
	for _, b := range snap.byUUID {
		if b.State == tipstypes.BundleStateReady {
			out = append(out, b)
		}
	}
	return out
}

// ListAll returns every catalog entry regardless of state, for callers
// (Maintenance) that need to sweep the whole live catalog rather than just
// what the builder may currently pull.
func (s *Store) ListAll() []*tipstypes.Bundle {
	snap := s.head.Load()
	out := make([]*tipstypes.Bundle, 0, len(snap.byUUID))
	for _, b := range snap.byUUID {
		out = append(out, b)
	}
	return out
}

// Get returns the bundle for id, if present in the current snapshot.
func (s *Store) Get(id uuid.UUID) (*tipstypes.Bundle, bool) {
	snap := s.head.Load()
	b, ok := snap.byUUID[id]
	return b, ok
}

// Size reports the number of entries in the current snapshot, regardless
// of state.
func (s *Store) Size() int {
	return len(s.head.Load().byUUID)
}

// Apply advances the catalog by one event from the ingress or builder
// lifecycle log, per the transition table in spec.md §4.3. Unknown-uuid
// updates and double-cancels are silently ignored (the defined
// "best-effort" behavior); malformed events are the caller's
// responsibility to have already rejected at decode time.
func (s *Store) Apply(event *tipstypes.BundleEvent) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.head.Load()
	next := cur.clone()

	switch event.Event {
	case tipstypes.BundleEventCreated:
		applyCreated(next, event.Bundle)
	case tipstypes.BundleEventUpdated:
		applyUpdated(next, event.Bundle)
	case tipstypes.BundleEventCancelled:
		applyCancelled(next, event)
	case tipstypes.BundleEventIncludedByBuilder:
		applyIncludedByBuilder(next, event)
	case tipstypes.BundleEventIncludedInBlock, tipstypes.BundleEventDropped:
		if event.UUID != nil {
			removeEntry(next, *event.UUID)
		}
	}

	s.head.Store(next)
	metrics.SetBundleStoreCatalogSize(len(next.byUUID))
}

// applyCreated implements spec.md §4.3's Created algorithm: merge into an
// existing bundleHash match (I1), else replace by (sender,nonce) for
// single-tx raw-tx bundles, else insert new.
func applyCreated(snap *snapshot, bundle *tipstypes.Bundle) {
	if bundle == nil {
		return
	}
	if existingID, ok := snap.byHash[bundle.BundleHash]; ok {
		merged := *bundle
		merged.CreatedAt = snap.byUUID[existingID].CreatedAt
		upsert(snap, existingID, &merged)
		return
	}
	if sn, ok := bundle.SenderNonce(); ok {
		if existingID, ok := snap.bySenderNonce[sn]; ok {
			removeEntry(snap, existingID)
			upsert(snap, bundle.UUID, bundle)
			return
		}
	}
	upsert(snap, bundle.UUID, bundle)
}

// applyUpdated overwrites the existing entry's mutable fields iff the uuid
// exists; unknown uuids are dropped silently (best-effort).
func applyUpdated(snap *snapshot, bundle *tipstypes.Bundle) {
	if bundle == nil {
		return
	}
	existing, ok := snap.byUUID[bundle.UUID]
	if !ok {
		return
	}
	updated := *bundle
	updated.CreatedAt = existing.CreatedAt
	removeEntry(snap, bundle.UUID)
	upsert(snap, bundle.UUID, &updated)
}

func applyCancelled(snap *snapshot, event *tipstypes.BundleEvent) {
	if event.UUID != nil {
		removeEntry(snap, *event.UUID)
		return
	}
	if event.Nonce != nil {
		for sn, id := range snap.bySenderNonce {
			if sn.Nonce == *event.Nonce {
				removeEntry(snap, id)
			}
		}
	}
}

func applyIncludedByBuilder(snap *snapshot, event *tipstypes.BundleEvent) {
	if event.UUID == nil {
		return
	}
	b, ok := snap.byUUID[*event.UUID]
	if !ok {
		return
	}
	updated := *b
	updated.State = tipstypes.BundleStateIncludedByBuilder
	snap.byUUID[*event.UUID] = &updated
}

func upsert(snap *snapshot, id uuid.UUID, bundle *tipstypes.Bundle) {
	stored := *bundle
	stored.UUID = id
	snap.byUUID[id] = &stored
	snap.byHash[stored.BundleHash] = id
	if sn, ok := stored.SenderNonce(); ok {
		snap.bySenderNonce[sn] = id
	}
}

func removeEntry(snap *snapshot, id uuid.UUID) {
	b, ok := snap.byUUID[id]
	if !ok {
		return
	}
	delete(snap.byUUID, id)
	if snap.byHash[b.BundleHash] == id {
		delete(snap.byHash, b.BundleHash)
	}
	if sn, ok := b.SenderNonce(); ok {
		if snap.bySenderNonce[sn] == id {
			delete(snap.bySenderNonce, sn)
		}
	}
}
