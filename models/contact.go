package models

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Contact represents a known chat peer of a principal on one channel.
// Invariant: (user_id, channel, identifier) is unique; upserts are
// idempotent and never regress LastInteractionAt backward.
type Contact struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;uniqueIndex:uk_contacts_identity,priority:1" json:"user_id"`
	Channel           Channel         `gorm:"type:varchar(20);not null;uniqueIndex:uk_contacts_identity,priority:2" json:"channel"`
	Identifier        string          `gorm:"size:255;not null;uniqueIndex:uk_contacts_identity,priority:3" json:"identifier"`
	DisplayName       *string         `gorm:"size:255" json:"display_name,omitempty"`
	PushName          *string         `gorm:"size:255" json:"push_name,omitempty"`
	IsBusiness        bool            `gorm:"default:false" json:"is_business"`
	IsGroup           bool            `gorm:"default:false" json:"is_group"`
	Tags              pq.StringArray  `gorm:"type:text[];index:idx_contacts_tags_gin,using:gin" json:"tags,omitempty"`
	Metadata          json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	LastInteractionAt *time.Time      `gorm:"index:idx_contacts_last_interaction_at" json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Contact) TableName() string { return "contacts" }

// ContactFilter provides filter fields for repository queries
type ContactFilter struct {
	ID         *uint
	UserID     *uint
	Channel    *Channel
	Identifier *string
	IsGroup    *bool
	Tag        *string
}

// ContactUpsert is a normalized contact hint extracted from an inbound
// webhook event. Name fields are applied only when newly provided.
type ContactUpsert struct {
	UserID       uint
	Channel      Channel
	Identifier   string
	DisplayName  *string
	PushName     *string
	IsBusiness   bool
	IsGroup      bool
	InteractedAt time.Time
}
