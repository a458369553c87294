// Package tipstypes defines the canonical in-memory representation TIPS
// uses for everything that flows through the ingress event log: bundles,
// their constituent transactions, UserOperations, and the lifecycle
// events that describe their journey through the stack.
package tipstypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// BundleState is the lifecycle state of a live catalog entry (spec.md §3).
type BundleState int

const (
	BundleStateReady BundleState = iota
	BundleStateIncludedByBuilder
)

func (s BundleState) String() string {
	switch s {
	case BundleStateReady:
		return "Ready"
	case BundleStateIncludedByBuilder:
		return "IncludedByBuilder"
	default:
		return "Unknown"
	}
}

// Bundle is the canonical unit TIPS admits, stores, and audits.
//
// revertingTxHashes is always exactly {tx.hash : tx in Txs} (I3) — the
// source protocol's separate revert-protection selection is not
// supported in this version, so the field exists only to satisfy wire
// compatibility with eth_sendBundle/mev_sendBundle callers.
type Bundle struct {
	UUID              uuid.UUID     `json:"uuid"`
	BundleHash        common.Hash   `json:"bundleHash"`
	Txs               []*Tx         `json:"txs"`
	BlockNumber       uint64        `json:"blockNumber"`
	MinTimestamp      uint64        `json:"minTimestamp,omitempty"`
	MaxTimestamp      uint64        `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash `json:"revertingTxHashes"`
	ReplacementUUID   *uuid.UUID    `json:"replacementUuid,omitempty"`
	CreatedAt         int64         `json:"createdAt"`
	UpdatedAt         int64         `json:"updatedAt"`
	State             BundleState   `json:"state"`

	// FromRawTx marks a bundle wrapped from a single eth_sendRawTransaction
	// submission (WrapRawTx), as opposed to a 1-tx eth_sendBundle. Only the
	// former is eligible for the (sender,nonce) replacement key (I5); a
	// 1-tx eth_sendBundle is still only replaceable by uuid like any other
	// bundle submission.
	FromRawTx bool `json:"fromRawTx,omitempty"`
}

// SenderNonce identifies a bundle wrapped from a single raw transaction,
// used as the secondary replacement key (I5).
type SenderNonce struct {
	Sender common.Address
	Nonce  uint64
}

// IsSingleTx reports whether this bundle was admitted as a raw
// transaction (wrapped into a 1-tx bundle) rather than via eth_sendBundle.
func (b *Bundle) IsSingleTx() bool {
	return b.FromRawTx
}

// SenderNonce returns the (sender,nonce) key for bundles wrapped from a
// raw transaction, and ok=false otherwise — a 1-tx eth_sendBundle
// submission is not raw-tx-origin and is only ever replaceable by uuid,
// not by (sender,nonce) (I5).
func (b *Bundle) SenderNonce() (SenderNonce, bool) {
	if !b.FromRawTx || len(b.Txs) != 1 {
		return SenderNonce{}, false
	}
	tx := b.Txs[0]
	return SenderNonce{Sender: tx.Sender, Nonce: tx.Nonce}, true
}

// ComputeBundleHash computes keccak(concat(tx.hash for tx in txs)),
// order-sensitive — no canonicalization of tx order happens here
// (spec.md §4.1, property P2).
func ComputeBundleHash(txs []*Tx) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	for _, tx := range txs {
		hasher.Write(tx.Hash.Bytes())
	}
	return common.BytesToHash(hasher.Sum(nil))
}

// revertingTxHashesFor builds the I3-mandated reverting-hash set: exactly
// the hashes of every tx in the bundle, in tx order.
func revertingTxHashesFor(txs []*Tx) []common.Hash {
	hashes := make([]common.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash
	}
	return hashes
}

// WrapRawTx wraps a single decoded transaction into the canonical
// single-tx bundle shape used by eth_sendRawTransaction (spec.md §4.1):
// blockNumber=0 (any block within the horizon), revertingTxHashes equal
// to the tx's own hash, every other optional field unset.
func WrapRawTx(tx *Tx, id uuid.UUID, now int64) *Bundle {
	txs := []*Tx{tx}
	return &Bundle{
		UUID:              id,
		BundleHash:        ComputeBundleHash(txs),
		Txs:               txs,
		BlockNumber:       0,
		RevertingTxHashes: revertingTxHashesFor(txs),
		CreatedAt:         now,
		UpdatedAt:         now,
		State:             BundleStateReady,
		FromRawTx:         true,
	}
}

// NewBundle builds a canonical Bundle from a list of decoded transactions
// and the optional inclusion constraints carried by eth_sendBundle,
// computing bundleHash and the I3 reverting-hash set.
func NewBundle(id uuid.UUID, txs []*Tx, blockNumber, minTimestamp, maxTimestamp uint64, replacementUUID *uuid.UUID, now int64) *Bundle {
	return &Bundle{
		UUID:              id,
		BundleHash:        ComputeBundleHash(txs),
		Txs:               txs,
		BlockNumber:       blockNumber,
		MinTimestamp:      minTimestamp,
		MaxTimestamp:      maxTimestamp,
		RevertingTxHashes: revertingTxHashesFor(txs),
		ReplacementUUID:   replacementUUID,
		CreatedAt:         now,
		UpdatedAt:         now,
		State:             BundleStateReady,
	}
}

// Validate enforces the structural invariants (I3, I4) and the configured
// chain id (spec.md §4.1) before a bundle is admitted onto the ingress log.
func Validate(txs []*Tx, chainID uint64) error {
	if len(txs) == 0 || len(txs) > MaxBundleTxs {
		return ErrTooManyTransactions
	}

	var totalGas uint64
	for _, tx := range txs {
		totalGas += tx.Gas
		if tx.ChainID == nil || tx.ChainID.Uint64() != chainID {
			return ErrWrongChainID
		}
	}
	if totalGas > MaxBundleGas {
		return ErrGasLimitExceeded
	}

	return nil
}

// ValidateRawBundleArgs mirrors Validate but also rejects the
// beaverbuild/titanbuilder extension fields (droppingTxHashes,
// refund_percent, refund_recipient, refund_tx_hashes) that I3 says must
// be empty/absent in this version of the protocol.
func ValidateRawBundleArgs(hasDroppingHashes, hasRefundFields bool) error {
	if hasDroppingHashes || hasRefundFields {
		return ErrUnsupportedField
	}
	return nil
}
