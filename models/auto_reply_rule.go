package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TriggerType enumerates how an auto-reply rule matches inbound text
type TriggerType string

const (
	TriggerTypeKeyword TriggerType = "keyword"
	TriggerTypeRegex   TriggerType = "regex"
	TriggerTypeAll     TriggerType = "all"
)

// Valid checks if the trigger type is valid
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerTypeKeyword, TriggerTypeRegex, TriggerTypeAll:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for TriggerType
func (t *TriggerType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = TriggerType(v)
	case []byte:
		*t = TriggerType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into TriggerType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for TriggerType
func (t TriggerType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid TriggerType: %s", t)
	}
	return string(t), nil
}

// ReplyType enumerates the payload kind an auto-reply rule sends
type ReplyType string

const (
	ReplyTypeText     ReplyType = "text"
	ReplyTypeTemplate ReplyType = "template"
	ReplyTypeMedia    ReplyType = "media"
)

// Valid checks if the reply type is valid
func (t ReplyType) Valid() bool {
	switch t {
	case ReplyTypeText, ReplyTypeTemplate, ReplyTypeMedia:
		return true
	default:
		return false
	}
}

// AutoReplyRule defines one automatic reply for a principal's channel.
// Among active rules matching an inbound message exactly one fires: the
// highest priority; ties break on ascending rule id (stable identity order).
type AutoReplyRule struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	UserID           uint            `gorm:"not null;index:idx_auto_reply_rules_user_id" json:"user_id"`
	Channel          Channel         `gorm:"type:varchar(20);not null;index:idx_auto_reply_rules_channel" json:"channel"`
	IsActive         *bool           `gorm:"default:true;index:idx_auto_reply_rules_is_active" json:"is_active"`
	Priority         int             `gorm:"default:0;index:idx_auto_reply_rules_priority" json:"priority"`
	TriggerType      TriggerType     `gorm:"type:varchar(20);not null;default:'keyword'" json:"trigger_type"`
	TriggerValue     string          `gorm:"size:500" json:"trigger_value"`
	OnlyFirstMessage bool            `gorm:"default:false" json:"only_first_message"`
	ReplyType        ReplyType       `gorm:"type:varchar(20);not null;default:'text'" json:"reply_type"`
	ReplyContent     string          `gorm:"type:text" json:"reply_content"`
	ReplyMedia       json.RawMessage `gorm:"type:jsonb" json:"reply_media,omitempty"`
	UsageCount       int64           `gorm:"default:0" json:"usage_count"`
	CreatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AutoReplyRule) TableName() string { return "auto_reply_rules" }

// AutoReplyRuleFilter provides filter fields for repository queries
type AutoReplyRuleFilter struct {
	ID       *uint
	UserID   *uint
	Channel  *Channel
	IsActive *bool
}
