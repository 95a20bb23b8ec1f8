package types

import (
	"strings"
	"time"
)

// SessionRecord maps an opaque session id to the user that owns it.
// A zero CreatedAt means no creation time was recorded for the session.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordFilter selects durable session records. Empty fields match anything.
type RecordFilter struct {
	SessionID string
	UserID    string
}

func (f RecordFilter) Match(rec SessionRecord) bool {
	if f.SessionID != "" && f.SessionID != rec.SessionID {
		return false
	}
	if f.UserID != "" && f.UserID != rec.UserID {
		return false
	}
	return true
}

type Credentials struct {
	Identifier string
	Secret     string
}

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	SessionID      *string   `json:"-"`
	ResetToken     *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName picks the friendliest name available for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Email
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	default:
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
}
