package dto

import "time"

// CampaignRecipient is one target of a broadcast campaign
type CampaignRecipient struct {
	Identifier string            `json:"identifier" validate:"required,min=3,max=255"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// CampaignTemplate is the message body of a campaign
type CampaignTemplate struct {
	Type     string `json:"type" validate:"required,oneof=text image document"`
	Content  string `json:"content" validate:"required,min=1"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
	Filename string `json:"filename,omitempty" validate:"omitempty,max=255"`
}

// CampaignBatchPolicy overrides platform pacing defaults per campaign.
// Durations are seconds.
type CampaignBatchPolicy struct {
	BatchSize    int `json:"batch_size,omitempty" validate:"omitempty,gte=1,lte=250"`
	MinDelaySecs int `json:"min_delay_seconds,omitempty" validate:"omitempty,gte=1,lte=300"`
	MaxDelaySecs int `json:"max_delay_seconds,omitempty" validate:"omitempty,gte=1,lte=600"`
	CooldownSecs int `json:"cooldown_seconds,omitempty" validate:"omitempty,gte=1,lte=3600"`
}

// CreateCampaignRequest creates a new broadcast campaign
type CreateCampaignRequest struct {
	UserID      uint                 `json:"-"`
	SessionUUID string               `json:"session_uuid" validate:"required,uuid4"`
	Name        string               `json:"name" validate:"required,min=1,max=255"`
	Recipients  []CampaignRecipient  `json:"recipients" validate:"required,min=1,dive"`
	Template    CampaignTemplate     `json:"template" validate:"required"`
	BatchPolicy *CampaignBatchPolicy `json:"batch_policy,omitempty"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
}

// CreateCampaignResponse is returned after campaign creation
type CreateCampaignResponse struct {
	Message   string `json:"message"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// StartCampaignResponse is returned after a campaign is queued for dispatch
type StartCampaignResponse struct {
	Message     string `json:"message"`
	UUID        string `json:"uuid"`
	Status      string `json:"status"`
	ScheduledAt string `json:"scheduled_at"`
}

// CancelCampaignResponse is returned after a cancellation request
type CancelCampaignResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
	Status  string `json:"status"`
}

// CampaignDTO is the API representation of a campaign
type CampaignDTO struct {
	UUID           string     `json:"uuid"`
	Name           string     `json:"name"`
	SessionUUID    string     `json:"session_uuid,omitempty"`
	Status         string     `json:"status"`
	RecipientCount int        `json:"recipient_count"`
	SentCount      int        `json:"sent_count"`
	FailedCount    int        `json:"failed_count"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListCampaignsResponse is a paginated campaign listing
type ListCampaignsResponse struct {
	Message string        `json:"message"`
	Items   []CampaignDTO `json:"items"`
	Total   int64         `json:"total"`
}

// ListCampaignsRequest is a paginated campaign listing query
type ListCampaignsRequest struct {
	UserID   uint    `json:"-"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled processing completed failed cancelled"`
	Page     int     `json:"page" validate:"gte=0"`
	PageSize int     `json:"page_size" validate:"gte=0,lte=100"`
}

// ListContactsRequest is a paginated contact listing query
type ListContactsRequest struct {
	UserID   uint    `json:"-"`
	Channel  *string `json:"channel,omitempty" validate:"omitempty,oneof=whatsapp instagram facebook gateway telegram"`
	Tag      *string `json:"tag,omitempty" validate:"omitempty,max=64"`
	Page     int     `json:"page" validate:"gte=0"`
	PageSize int     `json:"page_size" validate:"gte=0,lte=100"`
}

// ListContactsResponse is a paginated contact listing
type ListContactsResponse struct {
	Message string       `json:"message"`
	Items   []ContactDTO `json:"items"`
	Total   int64        `json:"total"`
}

// ListAutoReplyRulesResponse lists a user's rules for a channel
type ListAutoReplyRulesResponse struct {
	Message string             `json:"message"`
	Items   []AutoReplyRuleDTO `json:"items"`
}

// CreateAutoReplyRuleRequest creates a new auto-reply rule
type CreateAutoReplyRuleRequest struct {
	UserID           uint   `json:"-"`
	Channel          string `json:"channel" validate:"required,oneof=whatsapp instagram facebook gateway telegram"`
	Priority         int    `json:"priority" validate:"gte=0,lte=1000"`
	TriggerType      string `json:"trigger_type" validate:"required,oneof=keyword regex all"`
	TriggerValue     string `json:"trigger_value" validate:"required_unless=TriggerType all,max=500"`
	OnlyFirstMessage bool   `json:"only_first_message"`
	ReplyType        string `json:"reply_type" validate:"required,oneof=text template media"`
	ReplyContent     string `json:"reply_content" validate:"required,min=1"`
}

// AutoReplyRuleDTO is the API representation of an auto-reply rule
type AutoReplyRuleDTO struct {
	ID               uint   `json:"id"`
	Channel          string `json:"channel"`
	IsActive         bool   `json:"is_active"`
	Priority         int    `json:"priority"`
	TriggerType      string `json:"trigger_type"`
	TriggerValue     string `json:"trigger_value"`
	OnlyFirstMessage bool   `json:"only_first_message"`
	ReplyType        string `json:"reply_type"`
	ReplyContent     string `json:"reply_content"`
	UsageCount       int64  `json:"usage_count"`
}

// ContactDTO is the API representation of a contact
type ContactDTO struct {
	ID                uint       `json:"id"`
	Channel           string     `json:"channel"`
	Identifier        string     `json:"identifier"`
	DisplayName       *string    `json:"display_name,omitempty"`
	PushName          *string    `json:"push_name,omitempty"`
	IsBusiness        bool       `json:"is_business"`
	IsGroup           bool       `json:"is_group"`
	Tags              []string   `json:"tags,omitempty"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
}
