package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MessageDirection distinguishes inbound user messages from outbound sends
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// Valid checks if the direction is valid
func (d MessageDirection) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

// Scan implements the sql.Scanner interface for MessageDirection
func (d *MessageDirection) Scan(value any) error {
	if value == nil {
		*d = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*d = MessageDirection(v)
	case []byte:
		*d = MessageDirection(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageDirection", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageDirection
func (d MessageDirection) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid MessageDirection: %s", d)
	}
	return string(d), nil
}

// MessageType enumerates canonical message content kinds
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeDocument MessageType = "document"
	MessageTypeLocation MessageType = "location"
	MessageTypeOther    MessageType = "other"
)

// Valid checks if the type is valid
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeDocument, MessageTypeLocation, MessageTypeOther:
		return true
	default:
		return false
	}
}

// MessageStatus enumerates delivery states for canonical messages
type MessageStatus string

const (
	MessageStatusReceived  MessageStatus = "received"
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusReceived, MessageStatusPending, MessageStatusSent,
		MessageStatusDelivered, MessageStatusRead, MessageStatusFailed:
		return true
	default:
		return false
	}
}

// ChatMessage is the canonical, platform-agnostic message record. Provider
// events for every channel normalize into this one shape.
// Invariant: (channel, session_id, external_id) is unique — the dedup
// fingerprint for idempotent webhook replay.
type ChatMessage struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	ExternalID     string           `gorm:"size:255;not null;uniqueIndex:uk_chat_messages_fingerprint,priority:3" json:"external_id"`
	Channel        Channel          `gorm:"type:varchar(20);not null;uniqueIndex:uk_chat_messages_fingerprint,priority:1" json:"channel"`
	SessionID      uint             `gorm:"not null;uniqueIndex:uk_chat_messages_fingerprint,priority:2;index:idx_chat_messages_session_id" json:"session_id"`
	FromIdentifier string           `gorm:"size:255;not null;index:idx_chat_messages_from" json:"from_identifier"`
	ToIdentifier   string           `gorm:"size:255;not null" json:"to_identifier"`
	Type           MessageType      `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Content        *string          `gorm:"type:text" json:"content,omitempty"`
	Media          json.RawMessage  `gorm:"type:jsonb" json:"media,omitempty"`
	Direction      MessageDirection `gorm:"type:varchar(10);not null;index:idx_chat_messages_direction" json:"direction"`
	Status         MessageStatus    `gorm:"type:varchar(20);not null;default:'received'" json:"status"`
	ErrorDetail    *string          `gorm:"type:text" json:"error_detail,omitempty"`
	IsAutoReply    bool             `gorm:"default:false" json:"is_auto_reply"`
	CampaignID     *uint            `gorm:"index:idx_chat_messages_campaign_id" json:"campaign_id,omitempty"`
	SentAt         time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"sent_at"`
	CreatedAt      time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_chat_messages_created_at" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// HasText reports whether the message carries matchable text content
func (m *ChatMessage) HasText() bool {
	return m != nil && m.Content != nil && *m.Content != ""
}

// ChatMessageFilter provides filter fields for repository queries
type ChatMessageFilter struct {
	ID             *uint
	ExternalID     *string
	Channel        *Channel
	SessionID      *uint
	FromIdentifier *string
	Direction      *MessageDirection
	Status         *MessageStatus
	CampaignID     *uint
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// StatusUpdate is a provider delivery-state notification for an already
// recorded message, keyed by the provider message id. Not persisted itself;
// it is applied to the matching ChatMessage row.
type StatusUpdate struct {
	ExternalID  string
	Channel     Channel
	SessionID   uint
	Status      MessageStatus
	ErrorDetail *string
	OccurredAt  time.Time
}
