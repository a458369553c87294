// Command tips-maintenance runs the background sweeper described in
// spec.md §4.6: it periodically scans the live bundle catalog for
// timed-out and cap-exceeding entries and publishes Dropped(reason) onto
// the builder lifecycle log. Multiple instances may run concurrently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flashbots/tips/envflag"
	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/maintenance"
	"github.com/flashbots/tips/logutils"
)

func main() {
	os.Exit(run())
}

func run() int {
	envflag.SetPrefix("TIPS_MAINTENANCE")

	configPath := envflag.String("config", "", "path to a YAML config file, overridden by flags/env")
	bundleStoreEndpoint := envflag.String("bundle-store-endpoint", "", "Bundle Store JSON-RPC endpoint to read the live catalog from")
	sweepIntervalMs := envflag.Int("sweep-interval-ms", 5000, "time between sweep passes")
	bundleTimeoutSeconds := envflag.Int("bundle-timeout-seconds", maintenance.DefaultBundleTimeoutSeconds, "default inclusion horizon for bundles with no maxTimestamp")
	perAccountCap := envflag.Int("per-account-cap", maintenance.DefaultPerAccountCap, "max Ready bundles a single sender may occupy")
	globalCap := envflag.Int("global-cap", maintenance.DefaultGlobalCap, "max Ready bundles across the whole catalog")
	kafkaPartitions := envflag.Int("kafka-partitions", 3, "partition count for auto-provisioned topics")
	kafkaReplicas := envflag.Int("kafka-replicas", 1, "replication factor for auto-provisioned topics")

	preParsed := config.RegisterSharedFlags(config.Shared{})
	flag.Parse()

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitConfigError
	}
	shared := preParsed.Resolve()
	if len(shared.Kafka.Brokers) == 0 {
		shared.Kafka.Brokers = fileCfg.Kafka.Brokers
	}
	if shared.Kafka.PropertiesFile == "" {
		shared.Kafka.PropertiesFile = fileCfg.Kafka.PropertiesFile
	}
	kafkaProps, err := shared.Kafka.LoadProperties()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitConfigError
	}

	logger := logutils.GetZapLogger(
		logutils.LogLevel(shared.LogLevel),
		logutils.LogDevMode(shared.LogDev),
	)
	defer logutils.FlushZap(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logutils.ContextWithZap(ctx, logger)

	if *bundleStoreEndpoint == "" {
		logger.Error("bundle-store-endpoint is required")
		return config.ExitConfigError
	}

	elog, err := eventlog.New(eventlog.Config{
		Brokers:    shared.Kafka.Brokers,
		Partitions: int32(*kafkaPartitions),
		Replicas:   int16(*kafkaReplicas),
		Properties: kafkaProps,
	})
	if err != nil {
		logger.Error("failed to connect to event log", zap.Error(err))
		return config.ExitRuntimeError
	}
	defer elog.Close()

	reader := maintenance.NewBundleStoreClient(*bundleStoreEndpoint)
	sweeper := maintenance.New(maintenance.Config{
		BundleTimeoutSeconds: int64(*bundleTimeoutSeconds),
		PerAccountCap:        *perAccountCap,
		GlobalCap:            *globalCap,
	}, reader, elog)

	logger.Info("tips-maintenance sweeping",
		zap.String("bundleStore", *bundleStoreEndpoint),
		zap.Int("sweepIntervalMs", *sweepIntervalMs))

	if err := sweeper.Run(ctx, time.Duration(*sweepIntervalMs)*time.Millisecond); err != nil && ctx.Err() == nil {
		logger.Error("sweeper exited unexpectedly", zap.Error(err))
		return config.ExitRuntimeError
	}

	return config.ExitOK
}
