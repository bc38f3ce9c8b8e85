package domain

import "time"

const (
	MetadataIsAdmin     = "is_admin"
	MetadataIsPublisher = "is_publisher"
)

// User is an identity-provider account. Metadata is free-form; role flags live in it.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	DisplayName  string         `json:"display_name"`
	PasswordHash string         `json:"-"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Flag is true only when the metadata key is explicitly set to boolean true.
func (u *User) Flag(key string) bool {
	if u == nil || u.Metadata == nil {
		return false
	}
	v, ok := u.Metadata[key].(bool)
	return ok && v
}

func (u *User) IsAdmin() bool     { return u.Flag(MetadataIsAdmin) }
func (u *User) IsPublisher() bool { return u.Flag(MetadataIsPublisher) }

func (u *User) Roles() []string {
	var roles []string
	if u.IsAdmin() {
		roles = append(roles, "admin")
	}
	if u.IsPublisher() {
		roles = append(roles, "publisher")
	}
	return roles
}

// RoleUpdate changes only the flags that are non-nil.
type RoleUpdate struct {
	IsAdmin     *bool `json:"is_admin,omitempty"`
	IsPublisher *bool `json:"is_publisher,omitempty"`
}

func (r RoleUpdate) Patch() map[string]any {
	patch := map[string]any{}
	if r.IsAdmin != nil {
		patch[MetadataIsAdmin] = *r.IsAdmin
	}
	if r.IsPublisher != nil {
		patch[MetadataIsPublisher] = *r.IsPublisher
	}
	return patch
}
