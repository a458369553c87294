package bundlestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/tipstypes"
)

// Subscribe registers Store.Apply as the handler for both the ingress
// bundle topic and the builder lifecycle topic, so the catalog reflects
// Created/Updated/Cancelled events from ingress and IncludedByBuilder/
// IncludedInBlock/Dropped transitions from the builder (spec.md §4.3).
func Subscribe(consumer *eventlog.Consumer, store *Store) {
	handler := decodeAndApply(store)
	consumer.Subscribe(eventlog.TopicIngressBundles, handler)
	consumer.Subscribe(eventlog.TopicBuilderEvents, handler)
}

func decodeAndApply(store *Store) eventlog.Handler {
	return func(ctx context.Context, topic, key string, value []byte) error {
		var event tipstypes.BundleEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return fmt.Errorf("bundlestore: decoding event from %q: %w", topic, err)
		}
		store.Apply(&event)
		return nil
	}
}
