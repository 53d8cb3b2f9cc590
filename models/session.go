package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the connection state of a channel session
type SessionStatus string

const (
	SessionStatusConnecting   SessionStatus = "connecting"
	SessionStatusConnected    SessionStatus = "connected"
	SessionStatusDisconnected SessionStatus = "disconnected"
	SessionStatusError        SessionStatus = "error"
)

// String returns the string representation of the status
func (s SessionStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusConnecting, SessionStatusConnected,
		SessionStatusDisconnected, SessionStatusError:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SessionStatus
func (s *SessionStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SessionStatus(v)
	case []byte:
		*s = SessionStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SessionStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SessionStatus
func (s SessionStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SessionStatus: %s", s)
	}
	return string(s), nil
}

// SessionCredentials holds the channel-specific credential material for a session.
// Only the fields relevant to the session's channel are populated.
type SessionCredentials struct {
	// Meta platforms
	AccessToken        string `json:"access_token,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
	PageID             string `json:"page_id,omitempty"`
	InstagramAccountID string `json:"instagram_account_id,omitempty"`

	// Telegram
	BotToken      string `json:"bot_token,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// Self-hosted gateway bridge
	GatewayBaseURL string `json:"gateway_base_url,omitempty"`
	GatewayAPIKey  string `json:"gateway_api_key,omitempty"`
}

// Value implements the driver.Valuer interface for SessionCredentials
func (c SessionCredentials) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for SessionCredentials
func (c *SessionCredentials) Scan(value any) error {
	if value == nil {
		*c = SessionCredentials{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SessionCredentials", value)
	}

	return json.Unmarshal(bytes, c)
}

// Session represents a connected channel credential owned by a principal
type Session struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_sessions_uuid" json:"uuid"`
	UserID      uint               `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	Channel     Channel            `gorm:"type:varchar(20);not null;index:idx_sessions_channel" json:"channel"`
	Name        string             `gorm:"size:255;not null" json:"name"`
	Status      SessionStatus      `gorm:"type:varchar(20);not null;default:'disconnected';index:idx_sessions_status" json:"status"`
	Credentials SessionCredentials `gorm:"type:jsonb" json:"-"`
	IsActive    *bool              `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Session) TableName() string { return "sessions" }

// IsConnected reports whether the session can currently send messages
func (s *Session) IsConnected() bool {
	return s != nil && s.Status == SessionStatusConnected
}

// SessionFilter provides filter fields for repository queries
type SessionFilter struct {
	ID       *uint
	UserID   *uint
	Channel  *Channel
	Status   *SessionStatus
	IsActive *bool
}
