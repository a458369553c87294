package objectstore_test

import (
	"testing"

	"github.com/flashbots/tips/internal/objectstore"
	"github.com/stretchr/testify/require"
)

func TestKeyHelpers(t *testing.T) {
	require.Equal(t, "bundles/abc-123", objectstore.BundleKey("abc-123"))
	require.Equal(t, "userops/0xdead", objectstore.UserOpKey("0xdead"))
	require.Equal(t, "transactions/by_hash/0xbeef", objectstore.TransactionIndexKey("0xbeef"))
}
