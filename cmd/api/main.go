// Package main is the entry point for the PayBridge API server.
//
// It loads configuration, connects the database pool, constructs the provider
// facades (PayFast and Stripe) with their webhook verifiers, wires the
// handlers onto the core chassis, and serves HTTP with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"paybridge/internal/api/handlers"
	"paybridge/internal/audit"
	"paybridge/internal/config"
	"paybridge/internal/core"
	"paybridge/internal/db"
	"paybridge/internal/external"
	"paybridge/internal/pay"
	"paybridge/internal/pay/payfast"
	"paybridge/internal/pay/stripe"
	"paybridge/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("paybridge API starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	intents := db.NewIntentRepository(pool)

	archive, err := audit.NewArchive(pool)
	if err != nil {
		return fmt.Errorf("creating delivery archive: %w", err)
	}
	defer archive.Close()

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating event publisher: %w", err)
	}

	pf, st := newProviders(cfg, logger)
	registry := pay.NewRegistry(pf, st)

	if cfg.Stripe.ManageWebhookEndpoint {
		notifyURL := cfg.Server.APIExternalURL + "/webhooks/stripe"
		if _, err := st.EnsureWebhookEndpoint(ctx, notifyURL); err != nil {
			return fmt.Errorf("ensuring Stripe webhook endpoint: %w", err)
		}
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = append(srv.HealthProbes, db.Probe{Pool: pool}, payfastProbe{pf: pf})

	paymentsHandler := handlers.NewPaymentsHandler(registry, intents, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, paymentsHandler.RegisterRoutes)

	webhookHandler := handlers.NewWebhookHandler(registry, intents, archive, publisher, logger)
	srv.RootRouteRegistrars = append(srv.RootRouteRegistrars, webhookHandler.RegisterRoutes)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// payfastProbe reports PayFast API reachability via the signed ping
// endpoint.
type payfastProbe struct {
	pf *payfast.Payfast
}

func (p payfastProbe) Name() string { return "payfast" }

func (p payfastProbe) Check(ctx context.Context) error {
	_, err := p.pf.Ping(ctx)
	return err
}

// newProviders constructs the PayFast and Stripe facades.
func newProviders(cfg *config.Config, logger *slog.Logger) (*payfast.Payfast, *stripe.Stripe) {
	pfClient := external.NewPayfastClient(
		&http.Client{Timeout: 10 * time.Second},
		external.PayfastClientConfig{
			ValidateURL: cfg.Payfast.ValidateURL(),
			PingURL:     cfg.Payfast.PingURL(),
			Logger:      logger,
		},
	)

	verifier := payfast.NewVerifier(payfast.VerifierOptions{
		Passphrase:   cfg.Payfast.Passphrase,
		CheckAddress: cfg.Payfast.HookCheckAddress,
		CheckServer:  cfg.Payfast.HookCheckServer,
		Resolver:     external.NewHostResolver(),
		Confirmer:    pfClient,
		Logger:       logger,
	})

	return payfast.New(cfg.Payfast, verifier, pfClient, logger),
		stripe.New(cfg.Stripe, logger)
}

// newPublisher builds the SQS-backed event publisher. The endpoint override
// routes to LocalStack in local environments.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*queue.EventPublisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	return queue.NewEventPublisher(client, cfg.AWS, logger), nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful
// shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	return slog.New(handler)
}
