package maintenance_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/maintenance"
	"github.com/flashbots/tips/tipstypes"
)

type fakeReader struct {
	bundles []*tipstypes.Bundle
}

func (f *fakeReader) ListAll() []*tipstypes.Bundle { return f.bundles }

type fakePublisher struct {
	events []*tipstypes.BundleEvent
}

func (f *fakePublisher) Publish(topic string, value any) error {
	if topic != eventlog.TopicBuilderEvents {
		return nil
	}
	event, ok := value.(*tipstypes.BundleEvent)
	if ok {
		f.events = append(f.events, event)
	}
	return nil
}

func signedTx(t *testing.T, nonce uint64, feeCapGwei int64) []byte {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   big.NewInt(8453),
		Nonce:     nonce,
		GasFeeCap: big.NewInt(feeCapGwei * 1e9),
		GasTipCap: big.NewInt(0),
		Gas:       21000,
		To:        &common.Address{},
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewLondonSigner(big.NewInt(8453)), key)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func newBundle(t *testing.T, sender common.Address, nonce uint64, createdAt int64, maxTimestamp uint64, feeGwei int64) *tipstypes.Bundle {
	t.Helper()
	tx := &tipstypes.Tx{
		Raw:    signedTx(t, nonce, feeGwei),
		Hash:   common.BytesToHash([]byte{byte(nonce)}),
		Sender: sender,
		Nonce:  nonce,
	}
	return &tipstypes.Bundle{
		UUID:         uuid.New(),
		BundleHash:   tipstypes.ComputeBundleHash([]*tipstypes.Tx{tx}),
		Txs:          []*tipstypes.Tx{tx},
		MaxTimestamp: maxTimestamp,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
		State:        tipstypes.BundleStateReady,
	}
}

func TestSweep_EvictsExpiredByMaxTimestamp(t *testing.T) {
	now := time.Now()
	expired := newBundle(t, common.HexToAddress("0x1"), 0, now.Add(-time.Hour).UnixMilli(), uint64(now.Add(-time.Minute).Unix()), 10)
	fresh := newBundle(t, common.HexToAddress("0x2"), 0, now.UnixMilli(), uint64(now.Add(time.Hour).Unix()), 10)

	reader := &fakeReader{bundles: []*tipstypes.Bundle{expired, fresh}}
	pub := &fakePublisher{}
	sweeper := maintenance.New(maintenance.Config{}, reader, pub)

	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, pub.events, 1)
	require.Equal(t, expired.UUID, *pub.events[0].UUID)
	require.Equal(t, tipstypes.BundleDropTimeout, *pub.events[0].Reason)
}

func TestSweep_PerAccountCapDropsHighestNonceFirst(t *testing.T) {
	sender := common.HexToAddress("0xaaaa")
	now := time.Now()

	var bundles []*tipstypes.Bundle
	for nonce := uint64(0); nonce < 3; nonce++ {
		bundles = append(bundles, newBundle(t, sender, nonce, now.UnixMilli(), uint64(now.Add(time.Hour).Unix()), 10))
	}

	reader := &fakeReader{bundles: bundles}
	pub := &fakePublisher{}
	sweeper := maintenance.New(maintenance.Config{PerAccountCap: 1}, reader, pub)

	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, pub.events, 2, "2 of the 3 same-sender bundles must be evicted down to the cap")
	for _, event := range pub.events {
		require.Equal(t, tipstypes.BundleDropCapExceeded, *event.Reason)
	}
}

func TestSweep_GlobalCapEvictsOldestLowestFeeFirst(t *testing.T) {
	now := time.Now()
	oldCheap := newBundle(t, common.HexToAddress("0x1"), 0, now.Add(-time.Hour).UnixMilli(), uint64(now.Add(time.Hour).Unix()), 1)
	newExpensive := newBundle(t, common.HexToAddress("0x2"), 0, now.UnixMilli(), uint64(now.Add(time.Hour).Unix()), 100)

	reader := &fakeReader{bundles: []*tipstypes.Bundle{oldCheap, newExpensive}}
	pub := &fakePublisher{}
	sweeper := maintenance.New(maintenance.Config{GlobalCap: 1}, reader, pub)

	require.NoError(t, sweeper.Sweep(context.Background()))

	require.Len(t, pub.events, 1)
	require.Equal(t, oldCheap.UUID, *pub.events[0].UUID)
	require.Equal(t, tipstypes.BundleDropCapExceeded, *pub.events[0].Reason)
}

func TestSweep_UnderCapsIsNoop(t *testing.T) {
	now := time.Now()
	bundles := []*tipstypes.Bundle{
		newBundle(t, common.HexToAddress("0x1"), 0, now.UnixMilli(), uint64(now.Add(time.Hour).Unix()), 10),
		newBundle(t, common.HexToAddress("0x2"), 0, now.UnixMilli(), uint64(now.Add(time.Hour).Unix()), 10),
	}

	reader := &fakeReader{bundles: bundles}
	pub := &fakePublisher{}
	sweeper := maintenance.New(maintenance.Config{}, reader, pub)

	require.NoError(t, sweeper.Sweep(context.Background()))
	require.Empty(t, pub.events)
}
