package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"familytree-backend/internal/config"
	"familytree-backend/internal/identity"
	"familytree-backend/internal/jobs"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository/postgres"
	"familytree-backend/internal/scheduler"
	"familytree-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'send-pending-digest', 'purge-read-notifications', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting family tree cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	var provider identity.Provider
	if cfg.Identity.Provider == config.IdentityProviderFirebase {
		fb, err := identity.NewFirebaseProvider(context.Background(), cfg.Identity.CredentialsFile)
		if err != nil {
			log.Fatalf("Failed to initialize firebase: %v", err)
		}
		provider = fb
	} else {
		provider = identity.NewPostgresProvider(store.UserRepository)
	}

	// Initialize Services. The cronjob has no realtime hub; inserted rows
	// still reach connected clients through the server's change feed.
	directoryService := service.NewDirectoryService(provider, cfg.AdminCacheTTL(), nil)
	notificationService := service.NewNotificationService(store.NotificationRepository, directoryService, nil, cfg.Notifications.RetryAttempts, nil)
	emailService := service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)

	jobServices := &jobs.Services{
		Email:        emailService,
		Notification: notificationService,
		Directory:    directoryService,
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store.RequestRepository, store.NotificationRepository, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "send-pending-digest":
		jobRunner.SendPendingDigest()
	case "purge-read-notifications":
		jobRunner.PurgeReadNotifications()
	case "all":
		jobRunner.RunAllJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - send-pending-digest\n")
		fmt.Printf("  - purge-read-notifications\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
