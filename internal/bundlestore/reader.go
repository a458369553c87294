package bundlestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flashbots/tips/rpcserver"
	"github.com/flashbots/tips/tipstypes"
)

// Reader is the Bundle Store's reader contract (spec.md §4.3): the builder
// collaborator polls ListReady, and individual lookups go through Get. It is
// exposed both as this plain Go interface for in-process callers and, via
// Methods, as a JSON-RPC surface for the out-of-process builder.
type Reader interface {
	ListReady() []*tipstypes.Bundle
	ListAll() []*tipstypes.Bundle
	Get(id uuid.UUID) (*tipstypes.Bundle, bool)
	Size() int
}

// Service adapts a Store to the rpcserver.Methods calling convention.
type Service struct {
	store Reader
}

// NewService wraps store for JSON-RPC exposure.
func NewService(store Reader) *Service {
	return &Service{store: store}
}

// Methods returns the JSON-RPC method table for the Bundle Store reader
// surface, suitable for rpcserver.NewJSONRPCHandler.
func (s *Service) Methods() rpcserver.Methods {
	return rpcserver.Methods{
		"bundleStore_listReady": s.BundleStoreListReady,
		"bundleStore_listAll":   s.BundleStoreListAll,
		"bundleStore_get":       s.BundleStoreGet,
		"bundleStore_size":      s.BundleStoreSize,
	}
}

// BundleStoreListReady returns every bundle currently in the Ready state.
func (s *Service) BundleStoreListReady(ctx context.Context) ([]*tipstypes.Bundle, error) {
	return s.store.ListReady(), nil
}

// BundleStoreListAll returns every catalog entry regardless of state, for
// Maintenance's eviction sweeps.
func (s *Service) BundleStoreListAll(ctx context.Context) ([]*tipstypes.Bundle, error) {
	return s.store.ListAll(), nil
}

// BundleStoreGet returns the bundle for id, or a custom not-found error.
func (s *Service) BundleStoreGet(ctx context.Context, id uuid.UUID) (*tipstypes.Bundle, error) {
	b, ok := s.store.Get(id)
	if !ok {
		return nil, &rpcserver.JSONRPCError{
			Code:    rpcserver.CodeCustomError,
			Message: fmt.Sprintf("bundle %s not found", id),
		}
	}
	return b, nil
}

// BundleStoreSize reports the number of entries in the catalog, for
// monitoring and smoke tests.
func (s *Service) BundleStoreSize(ctx context.Context) (int, error) {
	return s.store.Size(), nil
}
