package domain

import "time"

// Payload is the kind-specific body of a request.
type Payload interface {
	Summary() string
}

type FamilyMemberPayload struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Gender    string  `json:"gender" validate:"required,oneof=male female other"`
	BirthDate *string `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	DeathDate *string `json:"death_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FatherID  *string `json:"father_id,omitempty" validate:"omitempty,uuid"`
	MotherID  *string `json:"mother_id,omitempty" validate:"omitempty,uuid"`
	SpouseID  *string `json:"spouse_id,omitempty" validate:"omitempty,uuid"`
	Bio       string  `json:"bio,omitempty" validate:"max=5000"`
}

func (p *FamilyMemberPayload) Summary() string { return p.Name }

type MemberPayload struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Relation string `json:"relation,omitempty" validate:"max=200"`
	Message  string `json:"message,omitempty" validate:"max=2000"`
}

func (p *MemberPayload) Summary() string { return p.Name }

type GalleryPayload struct {
	StorageKey  string `json:"storage_key" validate:"required"`
	Caption     string `json:"caption,omitempty" validate:"max=1000"`
	ContentType string `json:"content_type,omitempty" validate:"omitempty,oneof=image/jpeg image/png image/gif"`
	URL         string `json:"url,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

func (p *GalleryPayload) Summary() string {
	if p.Caption != "" {
		return p.Caption
	}
	return "a photo"
}

type NoticePayload struct {
	Title  string   `json:"title" validate:"required,max=200"`
	Body   string   `json:"body" validate:"required"`
	Tags   []string `json:"tags,omitempty" validate:"max=10,dive,max=40"`
	Pinned bool     `json:"pinned,omitempty"`
}

func (p *NoticePayload) Summary() string { return p.Title }

type EventPayload struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty" validate:"max=300"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at,omitempty" validate:"omitempty,gtfield=StartsAt"`
}

func (p *EventPayload) Summary() string { return p.Title }
