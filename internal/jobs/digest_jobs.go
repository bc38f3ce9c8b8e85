package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/logger"
)

type kindBacklog struct {
	kind   domain.RequestKind
	count  int
	oldest time.Time
}

// SendPendingDigest reminds admins about requests that have been waiting
// longer than the digest threshold, in-app and by email.
func (jr *JobRunner) SendPendingDigest() {
	jr.runWithRecovery("SendPendingDigest", func() {
		if _, err := jr.sendPendingDigest(context.Background()); err != nil {
			logger.Error("Failed to send pending digest", "error", err)
		}
	})
}

// sendPendingDigest returns the number of stale requests reported.
func (jr *JobRunner) sendPendingDigest(ctx context.Context) (int, error) {
	cutoff := jr.now().Add(-jr.config.DigestThreshold())

	var backlog []kindBacklog
	total := 0
	for _, kind := range domain.AllKinds() {
		stale, err := jr.requests.ListPendingOlderThan(ctx, kind, cutoff)
		if err != nil {
			logger.Error("Failed to list stale requests", "kind", kind, "error", err)
			continue
		}
		if len(stale) == 0 {
			continue
		}
		// rows come back oldest first
		backlog = append(backlog, kindBacklog{kind: kind, count: len(stale), oldest: stale[0].CreatedAt})
		total += len(stale)
	}

	if total == 0 {
		logger.Info("No stale requests, digest skipped", "before", cutoff)
		return 0, nil
	}

	admins, err := jr.services.Directory.ListAdmins(ctx)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		logger.Warn("Stale requests but no admins to remind", "count", total)
		return total, nil
	}

	subject := digestSubject(total)
	body := digestBody(backlog)

	adminIDs := make([]string, len(admins))
	for i, a := range admins {
		adminIDs[i] = a.ID
	}
	if err := jr.services.Notification.NotifyUsers(ctx, adminIDs, domain.NotificationTypeSystem, subject, body, nil); err != nil {
		logger.Error("Failed to store digest notifications", "admins", len(adminIDs), "error", err)
	}

	sent := 0
	for _, a := range admins {
		if a.Email == "" {
			continue
		}
		if err := jr.services.Email.SendAdminDigest(ctx, a.Email, a.DisplayName, subject, body); err != nil {
			logger.Error("Failed to send digest email", "user_id", a.ID, "email", a.Email, "error", err)
			continue
		}
		sent++
	}

	logger.Info("Pending digest sent", "stale_requests", total, "admins", len(admins), "emails_sent", sent)
	return total, nil
}

func digestSubject(total int) string {
	if total == 1 {
		return "1 request is waiting for review"
	}
	return fmt.Sprintf("%d requests are waiting for review", total)
}

func digestBody(backlog []kindBacklog) string {
	var b strings.Builder
	b.WriteString("The following requests have been pending for a while:\n\n")
	for _, k := range backlog {
		label := string(k.kind)
		if spec, ok := k.kind.Spec(); ok {
			label = spec.Label
		}
		fmt.Fprintf(&b, "- %s: %d waiting (oldest from %s)\n", label, k.count, k.oldest.Format("2006-01-02"))
	}
	b.WriteString("\nPlease review them in the admin panel.\n\nFamily Tree")
	return b.String()
}
