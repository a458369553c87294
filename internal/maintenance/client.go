package maintenance

import (
	"context"

	"github.com/flashbots/tips/internal/metrics"
	"github.com/flashbots/tips/rpcclient"
	"github.com/flashbots/tips/tipstypes"
)

// BundleStoreClient reads the live catalog through the Bundle Store's
// bundleStore_listAll JSON-RPC method (internal/bundlestore.Service),
// since Maintenance runs as its own process and has no in-process access
// to the Store (spec.md §5: components share nothing but the event log
// and object store).
type BundleStoreClient struct {
	rpc rpcclient.RPCClient
}

// NewBundleStoreClient builds a Reader against the Bundle Store's
// JSON-RPC endpoint.
func NewBundleStoreClient(endpoint string) *BundleStoreClient {
	return &BundleStoreClient{rpc: rpcclient.NewClient(endpoint)}
}

// ListAll implements Reader.
func (c *BundleStoreClient) ListAll() []*tipstypes.Bundle {
	var bundles []*tipstypes.Bundle
	if err := c.rpc.CallFor(context.Background(), &bundles, "bundleStore_listAll"); err != nil {
		metrics.IncMaintenanceSweepError()
		return nil
	}
	return bundles
}
