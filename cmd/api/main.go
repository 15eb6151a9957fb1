package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-processor/config"
	httpHandler "payment-processor/internal/adapter/http/handler"
	"payment-processor/internal/adapter/settlement"
	pgStorage "payment-processor/internal/adapter/storage/postgres"
	redisStorage "payment-processor/internal/adapter/storage/redis"
	"payment-processor/internal/core/ports"
	"payment-processor/internal/service"
	"payment-processor/internal/worker"
	"payment-processor/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payment Processor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	merchantRepo := pgStorage.NewMerchantRepo(pool)
	keyRepo := pgStorage.NewPaymentKeyRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	refundRepo := pgStorage.NewRefundRepo(pool)
	subRepo := pgStorage.NewWebhookSubscriptionRepo(pool)
	deliveryRepo := pgStorage.NewDeliveryRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	taskQueue := redisStorage.NewTaskQueue(rdb, cfg.Worker.BlockInterval, cfg.Worker.VisibilityTimeout)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Settlement gateway: real HTTP collaborator, or the simulator when no
	// URL is configured.
	var gateway ports.SettlementGateway
	if cfg.Settlement.URL != "" {
		gateway = settlement.NewHTTPGateway(cfg.Settlement.URL, &http.Client{Timeout: cfg.Settlement.Timeout})
		log.Info().Str("url", cfg.Settlement.URL).Msg("Using HTTP settlement gateway")
	} else {
		gateway = settlement.NewSimulator()
		log.Warn().Msg("No settlement URL configured, using simulator")
	}

	// Initialize business services
	emitter := service.NewEventEmitter(subRepo, deliveryRepo, log)
	authSvc := service.NewAuthService(merchantRepo, keyRepo, hashSvc, tokenSvc)
	paymentSvc := service.NewPaymentService(txRepo, keyRepo, idempotencyCache, taskQueue, log)
	processorSvc := service.NewProcessorService(
		txRepo, gateway, emitter,
		cfg.Settlement.MaxAttempts, cfg.Settlement.RetryBaseDelay, log,
	)
	refundSvc := service.NewRefundService(
		refundRepo, txRepo, transactor, taskQueue, gateway, emitter,
		cfg.Settlement.MaxAttempts, cfg.Settlement.RetryBaseDelay,
		cfg.Worker.VisibilityTimeout, log,
	)
	webhookSvc := service.NewWebhookService(subRepo, encSvc, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Start background workers
	workerPool := worker.NewTaskWorkerPool(
		taskQueue, processorSvc, refundSvc,
		cfg.Worker.Concurrency, cfg.Worker.ReapInterval, log,
	)
	workerPool.Start(ctx)

	dispatcher := worker.NewWebhookDispatcher(
		deliveryRepo, subRepo, encSvc, sigSvc,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		worker.DispatcherConfig{
			MaxAttempts:  cfg.Webhook.MaxAttempts,
			BaseDelay:    cfg.Webhook.BaseDelay,
			MaxDelay:     cfg.Webhook.MaxDelay,
			Timeout:      cfg.Webhook.Timeout,
			BatchSize:    cfg.Webhook.BatchSize,
			PollInterval: cfg.Webhook.PollInterval,
			ClaimLease:   cfg.Webhook.ClaimLease,
		},
		log,
	)
	dispatcher.Start(ctx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PaymentSvc:     paymentSvc,
		RefundSvc:      refundSvc,
		WebhookSvc:     webhookSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown: first the HTTP server, then the workers drain.
	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	workerPool.Wait()
	dispatcher.Wait()

	log.Info().Msg("Server exited")
}
