package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a broadcast campaign
type CampaignStatus string

const (
	CampaignStatusDraft      CampaignStatus = "draft"
	CampaignStatusScheduled  CampaignStatus = "scheduled"
	CampaignStatusProcessing CampaignStatus = "processing"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
	CampaignStatusCancelled  CampaignStatus = "cancelled"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusProcessing,
		CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions
func (s CampaignStatus) Terminal() bool {
	switch s {
	case CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the monotonic lifecycle:
// draft/scheduled -> processing -> {completed, failed, cancelled}.
// Terminal states never retreat.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case CampaignStatusDraft:
		return next == CampaignStatusScheduled || next == CampaignStatusCancelled
	case CampaignStatusScheduled:
		return next == CampaignStatusProcessing || next == CampaignStatusFailed || next == CampaignStatusCancelled
	case CampaignStatusProcessing:
		return next.Terminal()
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Recipient is one entry of a campaign's target list
type Recipient struct {
	Identifier string            `json:"identifier"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// RecipientList is the ordered JSON recipient list of a campaign
type RecipientList []Recipient

// Value implements the driver.Valuer interface for RecipientList
func (l RecipientList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for RecipientList
func (l *RecipientList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RecipientList", value)
	}

	return json.Unmarshal(bytes, l)
}

// TemplateType enumerates message template kinds
type TemplateType string

const (
	TemplateTypeText     TemplateType = "text"
	TemplateTypeImage    TemplateType = "image"
	TemplateTypeDocument TemplateType = "document"
)

// Template is the message body of a campaign, with optional media and
// personalization placeholders of the form {{key}}.
type Template struct {
	Type     TemplateType `json:"type"`
	Content  string       `json:"content"`
	MediaURL string       `json:"media_url,omitempty"`
	Filename string       `json:"filename,omitempty"`
}

// Value implements the driver.Valuer interface for Template
func (t Template) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the sql.Scanner interface for Template
func (t *Template) Scan(value any) error {
	if value == nil {
		*t = Template{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Template", value)
	}

	return json.Unmarshal(bytes, t)
}

// BatchPolicy controls the pacing of a campaign: per-message jitter bounds,
// batch size and the cooldown pause between batches. Zero values fall back
// to platform defaults at dispatch time.
type BatchPolicy struct {
	BatchSize     int           `json:"batch_size"`
	MinDelay      time.Duration `json:"min_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BatchCooldown time.Duration `json:"batch_cooldown"`
}

// Value implements the driver.Valuer interface for BatchPolicy
func (p BatchPolicy) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for BatchPolicy
func (p *BatchPolicy) Scan(value any) error {
	if value == nil {
		*p = BatchPolicy{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into BatchPolicy", value)
	}

	return json.Unmarshal(bytes, p)
}

// Campaign represents a batch outbound-messaging job in the database.
// Invariant: SentCount + FailedCount <= len(Recipients) at all times;
// counters are mutated exclusively by the owning dispatch task.
type Campaign struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	UserID       uint           `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	SessionID    uint           `gorm:"not null;index:idx_campaigns_session_id" json:"session_id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	Recipients   RecipientList  `gorm:"type:jsonb;not null" json:"recipients"`
	Template     Template       `gorm:"type:jsonb;not null" json:"template"`
	BatchPolicy  BatchPolicy    `gorm:"type:jsonb" json:"batch_policy"`
	Status       CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index:idx_campaigns_status" json:"status"`
	SentCount    int            `gorm:"default:0" json:"sent_count"`
	FailedCount  int            `gorm:"default:0" json:"failed_count"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	ScheduledAt  *time.Time     `gorm:"index:idx_campaigns_scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	User    *User    `gorm:"foreignKey:UserID" json:"-"`
	Session *Session `gorm:"foreignKey:SessionID" json:"-"`
}

func (Campaign) TableName() string { return "campaigns" }

// CampaignFilter provides filter fields for repository queries
type CampaignFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	UserID          *uint
	SessionID       *uint
	Status          *CampaignStatus
	ScheduledBefore *time.Time
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
