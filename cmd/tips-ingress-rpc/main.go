// Command tips-ingress-rpc runs the JSON-RPC admission daemon described in
// spec.md §4.2: it terminates eth_sendRawTransaction, eth_sendBundle,
// eth_cancelBundle, eth_sendUserOperation and eth_supportedEntryPoints, and
// publishes admitted submissions onto the ingress event log.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/flashbots/tips/envflag"
	"github.com/flashbots/tips/httplogger"
	"github.com/flashbots/tips/internal/chainhead"
	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/internal/ingress"
	"github.com/flashbots/tips/internal/simclient"
	"github.com/flashbots/tips/logutils"
	"github.com/flashbots/tips/rpcserver"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	envflag.SetPrefix("TIPS_INGRESS")

	configPath := envflag.String("config", "", "path to a YAML config file, overridden by flags/env")
	listenAddr := envflag.String("listen-addr", ":8080", "address to serve JSON-RPC and health checks on")
	chainID := envflag.Int("chain-id", 8453, "L2 chain id admitted bundles/txs must carry")
	entryPointsRaw := envflag.String("entry-points", "", "comma-separated whitelist of ERC-4337 entry point addresses")
	simulatorEndpoint := envflag.String("simulator-endpoint", "", "base_validateUserOperation JSON-RPC endpoint")
	validateTimeoutMs := envflag.Int("validate-user-operation-timeout-ms", 2000, "UserOperation simulation timeout")
	kafkaPartitions := envflag.Int("kafka-partitions", 3, "partition count for auto-provisioned topics")
	kafkaReplicas := envflag.Int("kafka-replicas", 1, "replication factor for auto-provisioned topics")
	chainHeadHTTP := envflag.String("chain-head-http-uri", "", "execution client HTTP endpoint used for readiness")
	chainHeadWS := envflag.String("chain-head-ws-uri", "", "execution client websocket endpoint used for readiness")

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

	entryPoints := parseEntryPoints(*entryPointsRaw)

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

	svc := ingress.New(ingress.Config{
		ChainID:                        uint64(*chainID),
		EntryPoints:                    entryPoints,
		ValidateUserOperationTimeoutMs: *validateTimeoutMs,
	}, elog, sim)

	var tracker *chainhead.Tracker
	if *chainHeadHTTP != "" || *chainHeadWS != "" {
		headers := make(chan *ethtypes.Header)
		tracker = chainhead.New(ctx, *chainHeadHTTP, *chainHeadWS, headers)
		go func() {
			for range headers {
			}
		}()
		if err := tracker.Start(); err != nil {
			logger.Error("failed to start chain head tracker", zap.Error(err))
			return config.ExitRuntimeError
		}
	}

	handler, err := rpcserver.NewJSONRPCHandler(svc.Methods(), rpcserver.JSONRPCHandlerOpts{
		ExtractOriginFromHeader: true,
		ReadyHandler:            readyHandler(tracker),
	})
	if err != nil {
		logger.Error("failed to build JSON-RPC handler", zap.Error(err))
		return config.ExitConfigError
	}

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: httplogger.LoggingMiddleware(handler),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("tips-ingress-rpc listening", zap.String("addr", *listenAddr), zap.Int("chainId", *chainID))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server exited", zap.Error(err))
		return config.ExitRuntimeError
	}

	return config.ExitOK
}

func readyHandler(tracker *chainhead.Tracker) func(w http.ResponseWriter, r *http.Request) error {
	return func(w http.ResponseWriter, r *http.Request) error {
		if tracker != nil && tracker.CurrentBlockNumber() == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready\n"))
			return nil
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return nil
	}
}

func parseEntryPoints(raw string) []common.Address {
	if raw == "" {
		return nil
	}
	var out []common.Address
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, common.HexToAddress(part))
	}
	return out
}
