// Command tips-audit runs the Audit Pipeline described in spec.md §4.4:
// it consumes the ingress and builder event streams and persists merged
// per-entity histories, plus the transaction-hash index, to the object
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/flashbots/tips/envflag"
	"github.com/flashbots/tips/internal/audit"
	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/objectstore"
	"github.com/flashbots/tips/logutils"
)

func main() {
	os.Exit(run())
}

func run() int {
	envflag.SetPrefix("TIPS_AUDIT")

	configPath := envflag.String("config", "", "path to a YAML config file, overridden by flags/env")
	consumerGroup := envflag.String("consumer-group", "tips-audit", "kafka consumer group id")

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

	if shared.ObjectStore.Bucket == "" {
		logger.Error("object-store-bucket is required")
		return config.ExitConfigError
	}

	store, err := objectstore.New(ctx, shared.ObjectStore.Bucket, shared.ObjectStore.Region, shared.ObjectStore.Endpoint)
	if err != nil {
		logger.Error("failed to construct object store client", zap.Error(err))
		return config.ExitRuntimeError
	}

	pipeline := audit.New(store)

	consumer, err := eventlog.NewConsumer(eventlog.Config{
		Brokers:    shared.Kafka.Brokers,
		GroupID:    *consumerGroup,
		Properties: kafkaProps,
	})
	if err != nil {
		logger.Error("failed to start consumer", zap.Error(err))
		return config.ExitRuntimeError
	}
	defer consumer.Close()

	consumer.Subscribe(eventlog.TopicIngressBundles, pipeline.Handle)
	consumer.Subscribe(eventlog.TopicUserOperation, pipeline.Handle)
	consumer.Subscribe(eventlog.TopicBuilderEvents, pipeline.Handle)

	logger.Info("tips-audit consuming", zap.Strings("brokers", shared.Kafka.Brokers), zap.String("bucket", shared.ObjectStore.Bucket))
	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("consumer exited unexpectedly", zap.Error(err))
		return config.ExitRuntimeError
	}

	return config.ExitOK
}
