package jobs

import (
	"context"

	"familytree-backend/internal/logger"
)

// PurgeReadNotifications deletes read notifications older than the retention window.
// Unread notifications are never purged.
func (jr *JobRunner) PurgeReadNotifications() {
	jr.runWithRecovery("PurgeReadNotifications", func() {
		if _, err := jr.purgeReadNotifications(context.Background()); err != nil {
			logger.Error("Failed to purge read notifications", "error", err)
		}
	})
}

func (jr *JobRunner) purgeReadNotifications(ctx context.Context) (int64, error) {
	cutoff := jr.now().Add(-jr.config.NotificationRetention())
	deleted, err := jr.notifications.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	logger.Info("Purged read notifications", "count", deleted, "before", cutoff)
	return deleted, nil
}
