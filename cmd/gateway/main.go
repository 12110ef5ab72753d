package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-gateway/auth"
	"channel-gateway/dispatch"
	"channel-gateway/infrastructure/httpapi"
	"channel-gateway/internal"
	"channel-gateway/observability"
	"channel-gateway/repositories"
	"channel-gateway/runtime/workers"
	"channel-gateway/services"
	"channel-gateway/transport/redisbridge"
	"channel-gateway/transport/ws"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gateway terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Audit store (BadgerDB)
	options := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("audit store opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core components
	monitoring := observability.NewMonitoring()
	tokenStore := auth.NewTokenStore([]byte(config.SessionSecret), config.AuthTokenDuration)
	verifier := auth.NewVerifier(tokenStore)
	authorizer := auth.NewAuthorizer(config.AppKey, []byte(config.AppSecret))
	hub := ws.NewHub(logger, verifier, authorizer, monitoring, config.SendBufferSize)
	dispatcher := dispatch.NewDispatcher(logger, hub, nil, monitoring)

	auditRepository := repositories.NewAuditRepository(db, logger)
	if config.AdminCredentialHash == "" {
		logger.Warn("ADMIN_CREDENTIAL_HASH not set, every admin request will be refused")
	}
	adminService := services.NewAdminService(logger, verifier, tokenStore, auditRepository, config.AdminCredentialHash)

	// 4. Background workers
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(hub)
	supervisor.Add(workers.NewTelemetryWorker(logger, monitoring, dispatcher, config.MetricInterval))

	// 4.bis Optional cross-node fan-out over redis pub/sub
	if config.RedisURL != nil {
		opt, err := redis.ParseURL(*config.RedisURL)
		if err != nil {
			return exitConfig, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		defer func() {
			_ = rdb.Close()
		}()

		bridge := redisbridge.NewBridge(logger, rdb, config.Cluster, uuid.NewString(), dispatcher)
		dispatcher.SetPublisher(bridge)
		supervisor.Add(bridge)
		logger.Info("Cross-node fan-out enabled", "cluster", config.Cluster)
	}

	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 5. HTTP surface
	apiServer := httpapi.NewServer(
		logger, verifier, authorizer, dispatcher, adminService,
		monitoring, hub.HandleWS, config.AppKey, []byte(config.AppSecret),
	)
	router := apiServer.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)

	httpServer := &http.Server{
		Addr:              config.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Gateway listening", "addr", config.Addr(), "app_id", config.AppID, "tls", config.UseTLS)
		if config.UseTLS {
			serveErr <- httpServer.ListenAndServeTLS(config.TLSCertFile, config.TLSKeyFile)
		} else {
			serveErr <- httpServer.ListenAndServe()
		}
	}()

	// 6. Wait for a signal or a server failure, then unwind in order:
	// stop accepting HTTP first, then tear the workers down.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		supervisor.Stop()
		<-supervisorDone
		return exitRuntime, fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown did not finish cleanly", "error", err)
	}

	supervisor.Stop()
	<-supervisorDone
	logger.Info("Gateway stopped")
	return exitOK, nil
}
