// Command tips-bundle-store runs the live bundle catalog described in
// spec.md §4.3: it consumes the ingress and builder event streams into an
// in-memory copy-on-write catalog, and exposes it for the builder
// collaborator over a JSON-RPC reader surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flashbots/tips/envflag"
	"github.com/flashbots/tips/httplogger"
	"github.com/flashbots/tips/internal/bundlestore"
	"github.com/flashbots/tips/internal/config"
	"github.com/flashbots/tips/internal/devtls"
	"github.com/flashbots/tips/internal/eventlog"
	"github.com/flashbots/tips/logutils"
	"github.com/flashbots/tips/rpcserver"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	envflag.SetPrefix("TIPS_BUNDLE_STORE")

	configPath := envflag.String("config", "", "path to a YAML config file, overridden by flags/env")
	listenAddr := envflag.String("listen-addr", ":8090", "address to serve the reader JSON-RPC surface and health checks on")
	consumerGroup := envflag.String("consumer-group", "tips-bundle-store", "kafka consumer group id")
	devTLS := envflag.Bool("dev-tls", false, "serve the reader surface over HTTPS with a self-signed, locally-cached certificate (local/dev only)")
	devTLSCertPath := envflag.String("dev-tls-cert-path", "tips-bundle-store-cert.pem", "path to cache the dev-mode certificate")
	devTLSKeyPath := envflag.String("dev-tls-key-path", "tips-bundle-store-key.pem", "path to cache the dev-mode private key")

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

	store := bundlestore.New()

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

	bundlestore.Subscribe(consumer, store)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	svc := bundlestore.NewService(store)
	handler, err := rpcserver.NewJSONRPCHandler(svc.Methods(), rpcserver.JSONRPCHandlerOpts{
		ExtractOriginFromHeader: true,
		ReadyHandler: func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return nil
		},
	})
	if err != nil {
		logger.Error("failed to build JSON-RPC handler", zap.Error(err))
		return config.ExitConfigError
	}

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: httplogger.LoggingMiddleware(handler),
	}

	if *devTLS {
		tlsConfig, err := devtls.LoadOrGenerate(devtls.Config{
			CertPath: *devTLSCertPath,
			KeyPath:  *devTLSKeyPath,
		})
		if err != nil {
			logger.Error("failed to load or generate dev-mode TLS certificate", zap.Error(err))
			return config.ExitConfigError
		}
		server.TLSConfig = tlsConfig
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("tips-bundle-store listening", zap.String("addr", *listenAddr), zap.Bool("tls", *devTLS))

	var serveErr error
	if *devTLS {
		serveErr = server.ListenAndServeTLS("", "")
	} else {
		serveErr = server.ListenAndServe()
	}
	if serveErr != nil && serveErr != http.ErrServerClosed {
		logger.Error("server exited", zap.Error(serveErr))
		return config.ExitRuntimeError
	}

	if err := <-consumerDone; err != nil && ctx.Err() == nil {
		logger.Error("consumer exited unexpectedly", zap.Error(err))
		return config.ExitRuntimeError
	}

	return config.ExitOK
}
