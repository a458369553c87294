package bundlestore_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/tips/internal/bundlestore"
	"github.com/flashbots/tips/rpcserver"
	"github.com/flashbots/tips/tipstypes"
)

func TestService_BundleStoreGet_NotFound(t *testing.T) {
	store := bundlestore.New()
	svc := bundlestore.NewService(store)

	_, err := svc.BundleStoreGet(context.Background(), uuid.New())
	require.Error(t, err)

	var rpcErr *rpcserver.JSONRPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, rpcserver.CodeCustomError, rpcErr.Code)
}

func TestService_BundleStoreGet_Found(t *testing.T) {
	store := bundlestore.New()
	sender := common.HexToAddress("0x5555")
	id := uuid.New()
	store.Apply(createdEvent(newWrappedBundle(sender, id)))

	svc := bundlestore.NewService(store)
	got, err := svc.BundleStoreGet(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, got.UUID)
}

func TestService_BundleStoreListReadyAndSize(t *testing.T) {
	store := bundlestore.New()
	sender := common.HexToAddress("0x6666")
	store.Apply(createdEvent(newWrappedBundle(sender, uuid.New())))

	svc := bundlestore.NewService(store)

	ready, err := svc.BundleStoreListReady(context.Background())
	require.NoError(t, err)
	require.Len(t, ready, 1)

	size, err := svc.BundleStoreSize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, size)
}

func TestService_Methods_RegistersAllFour(t *testing.T) {
	svc := bundlestore.NewService(bundlestore.New())
	methods := svc.Methods()
	for _, name := range []string{"bundleStore_listReady", "bundleStore_listAll", "bundleStore_get", "bundleStore_size"} {
		require.Contains(t, methods, name)
	}
}

func TestService_BundleStoreListAll_IncludesNonReadyEntries(t *testing.T) {
	store := bundlestore.New()
	id := uuid.New()
	store.Apply(createdEvent(newWrappedBundle(common.HexToAddress("0x7777"), id)))
	store.Apply(&tipstypes.BundleEvent{Event: tipstypes.BundleEventIncludedByBuilder, UUID: &id})

	svc := bundlestore.NewService(store)

	ready, err := svc.BundleStoreListReady(context.Background())
	require.NoError(t, err)
	require.Empty(t, ready, "an IncludedByBuilder bundle is no longer Ready")

	all, err := svc.BundleStoreListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1, "ListAll must still see the non-Ready entry")
}

func newWrappedBundle(sender common.Address, id uuid.UUID) *tipstypes.Bundle {
	return tipstypes.WrapRawTx(newTx(sender, 0, 0x01), id, 1000)
}
