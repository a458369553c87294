package tipstypes

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BundleDropReason enumerates why Maintenance (or the builder) dropped a
// bundle from the live catalog (spec.md §3).
type BundleDropReason string

const (
	BundleDropTimeout         BundleDropReason = "TIMEOUT"
	BundleDropIncludedByOther BundleDropReason = "INCLUDED_BY_OTHER"
	BundleDropReverted        BundleDropReason = "REVERTED"
	// BundleDropCapExceeded covers Maintenance's per-account and global
	// mempool cap evictions (spec.md §4.6), which need their own reason
	// distinct from TIMEOUT so Audit and operators can tell "expired" apart
	// from "evicted to make room".
	BundleDropCapExceeded BundleDropReason = "CAP_EXCEEDED"
)

// UserOpDropReason enumerates why a UserOperation left the mempool
// without being included (spec.md §3).
type UserOpDropReason struct {
	Kind    string `json:"kind"` // "Invalid" | "Expired" | "ReplacedByHigherFee"
	Message string `json:"message,omitempty"`
}

func InvalidDropReason(reason string) UserOpDropReason {
	return UserOpDropReason{Kind: "Invalid", Message: reason}
}

var (
	ExpiredDropReason             = UserOpDropReason{Kind: "Expired"}
	ReplacedByHigherFeeDropReason = UserOpDropReason{Kind: "ReplacedByHigherFee"}
)

// BundleEventTag discriminates the tagged variant carried on the
// tips-ingress-bundles / tips-builder-events topics (spec.md §3, §9 —
// "dynamic dispatch over bundle vs UO events... tagged variant with an
// exhaustive match at each consumer").
type BundleEventTag string

const (
	BundleEventCreated           BundleEventTag = "Created"
	BundleEventUpdated           BundleEventTag = "Updated"
	BundleEventCancelled         BundleEventTag = "Cancelled"
	BundleEventIncludedByBuilder BundleEventTag = "IncludedByBuilder"
	BundleEventIncludedInBlock   BundleEventTag = "IncludedInBlock"
	BundleEventDropped           BundleEventTag = "Dropped"
)

// BundleEvent is the wire envelope for a bundle lifecycle event. Exactly
// one of the payload fields is populated, selected by Event.
type BundleEvent struct {
	Event     BundleEventTag `json:"event"`
	Timestamp int64          `json:"timestamp"`
	DedupKey  string         `json:"key"`

	// Created / Updated
	Bundle *Bundle `json:"bundle,omitempty"`

	// Cancelled: either field may be set, uuid takes precedence
	UUID  *uuid.UUID `json:"uuid,omitempty"`
	Nonce *uint64    `json:"nonce,omitempty"`

	// IncludedByBuilder
	FlashblockIndex *uint64 `json:"flashblockIdx,omitempty"`
	BlockNumber     *uint64 `json:"blockNumber,omitempty"`
	BuilderID       *string `json:"builderId,omitempty"`

	// IncludedInBlock
	BlockHash *common.Hash `json:"blockHash,omitempty"`

	// Dropped
	Reason *BundleDropReason `json:"reason,omitempty"`
}

// EventKey builds the producer-assigned dedup key described in spec.md
// §4.4: "<entity_id>-<event_nonce>".
func EventKey(entityID string, nonce uint64) string {
	return entityID + "-" + strconv.FormatUint(nonce, 10)
}

// Key partitions the event log by entity so that all events for a given
// bundle land on the same partition and are consumed in order.
func (e *BundleEvent) Key() string {
	return e.EntityID()
}

// EntityID returns the entity this event pertains to, used by the Bundle
// Store and Audit Pipeline to route the event (spec.md §4.4 step 1).
func (e *BundleEvent) EntityID() string {
	switch e.Event {
	case BundleEventCreated, BundleEventUpdated:
		if e.Bundle != nil {
			return e.Bundle.UUID.String()
		}
	case BundleEventCancelled, BundleEventIncludedByBuilder, BundleEventIncludedInBlock, BundleEventDropped:
		if e.UUID != nil {
			return e.UUID.String()
		}
	}
	return ""
}

// UserOpEventTag discriminates the tagged variant for UserOperation
// lifecycle events (spec.md §3).
type UserOpEventTag string

const (
	UserOpEventAddedToMempool UserOpEventTag = "AddedToMempool"
	UserOpEventIncluded       UserOpEventTag = "Included"
	UserOpEventDropped        UserOpEventTag = "Dropped"
)

// UserOpEvent is the wire envelope for a UserOperation lifecycle event.
type UserOpEvent struct {
	Event     UserOpEventTag `json:"event"`
	Timestamp int64          `json:"timestamp"`
	DedupKey  string         `json:"key"`

	UserOpHash common.Hash `json:"userOpHash"`

	// AddedToMempool
	Sender     *common.Address `json:"sender,omitempty"`
	EntryPoint *common.Address `json:"entryPoint,omitempty"`
	Nonce      *uint64         `json:"nonce,omitempty"`
	UserOp     *UserOperation  `json:"userOp,omitempty"`

	// Included
	BlockNumber *uint64      `json:"blockNumber,omitempty"`
	TxHash      *common.Hash `json:"txHash,omitempty"`

	// Dropped
	Reason *UserOpDropReason `json:"reason,omitempty"`
}

// EntityID returns the userOpHash this event pertains to.
func (e *UserOpEvent) EntityID() string {
	return e.UserOpHash.Hex()
}

// Key partitions the event log by userOpHash so all events for a given
// UserOperation land on the same partition and are consumed in order.
func (e *UserOpEvent) Key() string {
	return e.EntityID()
}
