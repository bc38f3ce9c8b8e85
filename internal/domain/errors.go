package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("actor is not allowed to decide requests")
	ErrInvalidState = errors.New("request was already handled")
)

// ValidationError reports a malformed submission.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// PromotionError means the approve-time write failed; the request is still pending.
type PromotionError struct {
	Kind      RequestKind
	RequestID string
	Err       error
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promote %s request %s: %v", e.Kind, e.RequestID, e.Err)
}

func (e *PromotionError) Unwrap() error { return e.Err }

type NotificationDeliveryError struct {
	Type       NotificationType
	Recipients int
	Err        error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("deliver %s notification to %d recipients: %v", e.Type, e.Recipients, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }

type DirectoryError struct {
	Err error
}

func (e *DirectoryError) Error() string { return "resolve admin directory: " + e.Err.Error() }

func (e *DirectoryError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsPromotion(err error) bool {
	var p *PromotionError
	return errors.As(err, &p)
}
