package domain

import "time"

// FamilyMember is a canonical family-tree entry.
type FamilyMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	BirthDate *string   `json:"birth_date,omitempty"`
	DeathDate *string   `json:"death_date,omitempty"`
	FatherID  *string   `json:"father_id,omitempty"`
	MotherID  *string   `json:"mother_id,omitempty"`
	SpouseID  *string   `json:"spouse_id,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	RequestID *string   `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is an approved participant of the family community directory.
type Member struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Relation  string    `json:"relation,omitempty"`
	RequestID *string   `json:"request_id,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
}
