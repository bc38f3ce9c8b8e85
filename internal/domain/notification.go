package domain

import "time"

type NotificationType string

const NotificationTypeSystem NotificationType = "system"

type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	Type       NotificationType `json:"type"`
	ResourceID *string          `json:"resource_id,omitempty"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
}
