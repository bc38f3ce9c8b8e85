package jobs

import (
	"time"

	"familytree-backend/internal/config"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/repository"
	"familytree-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	requests      repository.RequestRepository
	notifications repository.NotificationRepository
	services      *Services
	config        *config.Config
	now           func() time.Time
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Email        service.EmailService
	Notification service.NotificationService
	Directory    service.DirectoryService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(requests repository.RequestRepository, notifications repository.NotificationRepository, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		requests:      requests,
		notifications: notifications,
		services:      services,
		config:        cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the configuration the runner was built with.
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.SendPendingDigest()
	jr.PurgeReadNotifications()
}
