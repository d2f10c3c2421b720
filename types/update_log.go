package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LogType classifies an activity log entry.
type LogType string

const (
	LogTypeGeneral    LogType = "general"
	LogTypeAdmin      LogType = "admin"
	LogTypeCurriculum LogType = "curriculum"
	LogTypeHighlight  LogType = "highlight"
	LogTypeSocial     LogType = "social"
)

// Valid reports whether t is a known log type.
func (t LogType) Valid() bool {
	switch t {
	case LogTypeGeneral, LogTypeAdmin, LogTypeCurriculum, LogTypeHighlight, LogTypeSocial:
		return true
	}
	return false
}

// UpdateLog is an append-only record of an administrative action.
type UpdateLog struct {
	// ID is the unique identifier of the entry.
	ID uuid.UUID `json:"id" db:"id"`

	// Type classifies the entry.
	Type LogType `json:"type" db:"type"`

	// Message is a short human-readable description of the action.
	Message string `json:"message" db:"message"`

	// UserID identifies the acting user.
	UserID uuid.UUID `json:"-" db:"user_id"`

	// User is the acting user as it exists at read time. It is nil when
	// the account has been deleted since.
	User *UserRef `json:"user"`

	// Metadata is an opaque structured payload describing the action.
	Metadata json.RawMessage `json:"metadata" db:"metadata"`

	// CreatedAt is the timestamp at which the entry was recorded.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
