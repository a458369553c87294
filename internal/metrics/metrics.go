// Package metrics defines the VictoriaMetrics counters/summaries shared by
// every TIPS component, following the label-templated style of
// rpcserver/metrics.go.
package metrics

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

const (
	eventsPublishedLabel   = `tips_eventlog_published_total{topic="%s"}`
	eventsConsumedLabel    = `tips_eventlog_consumed_total{topic="%s"}`
	eventsPublishErrLabel  = `tips_eventlog_publish_errors_total{topic="%s"}`
	objectStorePutLabel    = `tips_objectstore_put_total{prefix="%s"}`
	objectStoreGetLabel    = `tips_objectstore_get_total{prefix="%s"}`
	objectStoreErrLabel    = `tips_objectstore_errors_total{op="%s"}`
	bundleStoreSizeSummary = `tips_bundlestore_catalog_size`
	bundlerBatchSizeLabel  = `tips_userop_bundler_batch_size{entry_point="%s"}`
	bundlerBatchLatencyLbl = `tips_userop_bundler_batch_latency_milliseconds{entry_point="%s"}`
	maintenanceEvictedLbl  = `tips_maintenance_evicted_total{reason="%s"}`
	maintenanceSweepErrLbl = `tips_maintenance_sweep_errors_total`
)

// IncEventPublished records a successful publish to the event log.
func IncEventPublished(topic string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(eventsPublishedLabel, topic)).Inc()
}

// IncEventPublishError records a failed publish to the event log.
func IncEventPublishError(topic string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(eventsPublishErrLabel, topic)).Inc()
}

// IncEventConsumed records a message received from the event log.
func IncEventConsumed(topic string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(eventsConsumedLabel, topic)).Inc()
}

// IncObjectStorePut records a successful object store write.
func IncObjectStorePut(prefix string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(objectStorePutLabel, prefix)).Inc()
}

// IncObjectStoreGet records a successful object store read.
func IncObjectStoreGet(prefix string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(objectStoreGetLabel, prefix)).Inc()
}

// IncObjectStoreError records an object store operation failure.
func IncObjectStoreError(op string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(objectStoreErrLabel, op)).Inc()
}

// SetBundleStoreCatalogSize reports the current size of the live bundle
// catalog.
func SetBundleStoreCatalogSize(n int) {
	metrics.GetOrCreateSummary(bundleStoreSizeSummary).Update(float64(n))
}

// ObserveBundlerBatch records the size and wall-clock latency of a UserOp
// bundler batch for a given entry point.
func ObserveBundlerBatch(entryPoint string, size int, latencyMillis int64) {
	metrics.GetOrCreateSummary(fmt.Sprintf(bundlerBatchSizeLabel, entryPoint)).Update(float64(size))
	metrics.GetOrCreateSummary(fmt.Sprintf(bundlerBatchLatencyLbl, entryPoint)).Update(float64(latencyMillis))
}

// IncMaintenanceEvicted records a bundle dropped by the maintenance
// sweeper, labeled by drop reason.
func IncMaintenanceEvicted(reason string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(maintenanceEvictedLbl, reason)).Inc()
}

// IncMaintenanceSweepError records a sweep pass that failed to publish one
// or more Dropped events; the next tick retries the same transitions.
func IncMaintenanceSweepError() {
	metrics.GetOrCreateCounter(maintenanceSweepErrLbl).Inc()
}
