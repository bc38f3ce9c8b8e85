package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	api "familytree-backend/internal/api/grpc"
	httpapi "familytree-backend/internal/api/http"
	"familytree-backend/internal/changefeed"
	"familytree-backend/internal/config"
	"familytree-backend/internal/identity"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/realtime"
	"familytree-backend/internal/repository/postgres"
	"familytree-backend/internal/security"
	"familytree-backend/internal/service"
	"familytree-backend/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting family tree backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetHTTPAddress(), "grpc", cfg.GetGRPCAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Identity configuration", "provider", cfg.Identity.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)

	// Identity provider: users table or Firebase Auth custom claims
	var provider identity.Provider
	var verifier service.IDTokenVerifier
	switch cfg.Identity.Provider {
	case config.IdentityProviderFirebase:
		fb, err := identity.NewFirebaseProvider(ctx, cfg.Identity.CredentialsFile)
		if err != nil {
			log.Fatalf("Failed to initialize firebase: %v", err)
		}
		provider, verifier = fb, fb
	default:
		provider = identity.NewPostgresProvider(store.UserRepository)
	}

	// Initialize Storage Service
	var storageService storage.StorageInterface
	var mockStorage *storage.MockStorageService
	if cfg.Storage.Type == "" || cfg.Storage.Type == "mock" {
		logger.Info("Using mock storage (local filesystem)", "upload_dir", cfg.Storage.UploadDir)
		mockStorage, err = storage.NewMockStorageService(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
		if err != nil {
			log.Fatalf("Failed to initialize mock storage: %v", err)
		}
		storageService = mockStorage
	} else {
		log.Fatalf("Storage type '%s' not yet implemented", cfg.Storage.Type)
	}

	// Change feed: one LISTEN connection shared by the hub and every pending-count session
	listener, err := changefeed.NewPGListener(cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to start change feed: %v", err)
	}
	listener.Start(ctx)
	hub := realtime.NewHub(listener)
	hub.Start()

	// Initialize Services
	directorySvc := service.NewDirectoryService(provider, cfg.AdminCacheTTL(), nil)
	noteSvc := service.NewNotificationService(store.NotificationRepository, directorySvc, hub, cfg.Notifications.RetryAttempts, nil)
	approvalSvc := service.NewApprovalService(store.RequestRepository, directorySvc, noteSvc, storageService, nil)
	pendingCounter := service.NewPendingCounter(store.RequestRepository)
	authSvc := service.NewAuthService(store.UserRepository, provider, verifier, tokenManager)
	gallerySvc := service.NewGalleryService(storageService, cfg.Storage.AllowedTypes, nil)
	familySvc := service.NewFamilyService(store.FamilyMemberRepository, store.MemberRepository)

	var ready atomic.Bool
	deps := httpapi.Dependencies{
		Tokens:        tokenManager,
		Auth:          authSvc,
		Approvals:     approvalSvc,
		Notifications: noteSvc,
		Directory:     directorySvc,
		Pending:       pendingCounter,
		Gallery:       gallerySvc,
		Family:        familySvc,
		Feed:          listener,
		Debounce:      cfg.PendingDebounce(),
		AllowedTypes:  cfg.Storage.AllowedTypes,
		MaxFileSizeMB: cfg.Storage.MaxFileSize,
		Ready:         ready.Load,
	}
	if mockStorage != nil {
		deps.Files = mockStorage
	}

	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := api.NewServer(tokenManager)

	grpcLis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("gRPC server listening", "address", cfg.GetGRPCAddress())
		if err := grpcServer.Serve(grpcLis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Everything is wired; the feed reconnects on its own from here.
	ready.Store(true)
	grpcServer.SetServing(true)
	logger.Info("Family tree backend ready")

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		ready.Store(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
		grpcServer.GracefulStop()
		hub.Stop()
		if err := listener.Close(); err != nil {
			logger.Error("Change feed close error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped. Goodbye!")
}
