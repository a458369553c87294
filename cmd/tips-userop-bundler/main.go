// Command tips-userop-bundler runs the UserOp Bundler described in spec.md
// §4.5: it consumes admitted UserOperations off the mempool stream, groups
// them per entry point, and publishes signed handleOps directives for the
// builder collaborator to insert.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/flashbots/tips/envflag"
	"github.com/flashbots/tips/internal/bundlersign"
	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/simclient"
	"github.com/flashbots/tips/internal/userop"
	"github.com/flashbots/tips/logutils"
)

func main() {
	os.Exit(run())
}

func run() int {
	envflag.SetPrefix("TIPS_USEROP_BUNDLER")

	configPath := envflag.String("config", "", "path to a YAML config file, overridden by flags/env")
	consumerGroup := envflag.String("consumer-group", "tips-userop-bundler", "kafka consumer group id")
	chainID := envflag.Int("chain-id", 8453, "L2 chain id the bundler tx is signed for")
	batchSize := envflag.Int("batch-size", userop.DefaultBatchSize, "max UserOperations per handleOps batch")
	batchTimeoutMs := envflag.Int("batch-timeout-ms", userop.DefaultBatchTimeoutMs, "max time a partial batch waits before flushing")
	beneficiaryRaw := envflag.String("beneficiary", "", "address credited with unused gas from handleOps")
	simulatorEndpoint := envflag.String("simulator-endpoint", "", "base_validateUserOperation JSON-RPC endpoint used for re-simulation before flush")
	executionHTTP := envflag.String("execution-http-uri", "", "execution client HTTP endpoint used to fetch the bundler account's nonce")
	bundlerPrivateKey := envflag.String("bundler-private-key", "", "hex-encoded private key the bundler signs handleOps transactions with")
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

	if *bundlerPrivateKey == "" {
		logger.Error("bundler-private-key is required")
		return config.ExitConfigError
	}

	signer, err := bundlersign.New(*bundlerPrivateKey, big.NewInt(int64(*chainID)))
	if err != nil {
		logger.Error("failed to construct bundler signer", zap.Error(err))
		return config.ExitConfigError
	}

	if *executionHTTP == "" {
		logger.Error("execution-http-uri is required")
		return config.ExitConfigError
	}
	ethClient, err := ethclient.DialContext(ctx, *executionHTTP)
	if err != nil {
		logger.Error("failed to dial execution client", zap.Error(err))
		return config.ExitRuntimeError
	}
	defer ethClient.Close()

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

	sim := simclient.New(*simulatorEndpoint)

	batcher := userop.New(userop.Config{
		ChainID:        big.NewInt(int64(*chainID)),
		BatchSize:      *batchSize,
		BatchTimeoutMs: *batchTimeoutMs,
		Beneficiary:    common.HexToAddress(*beneficiaryRaw),
	}, signer, sim, elog, ethClient)

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

	consumer.Subscribe(eventlog.TopicUserOperation, batcher.HandleEvent)

	logger.Info("tips-userop-bundler consuming",
		zap.Strings("brokers", shared.Kafka.Brokers),
		zap.String("bundler", signer.Address().Hex()),
		zap.Int("chainId", *chainID))

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("consumer exited unexpectedly", zap.Error(err))
		return config.ExitRuntimeError
	}

	return config.ExitOK
}
