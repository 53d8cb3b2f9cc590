// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for logging and tracing
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToCampaignDTO converts a campaign model to its API representation
func ToCampaignDTO(campaign *models.Campaign, sessionUUID string) dto.CampaignDTO {
	return dto.CampaignDTO{
		UUID:           campaign.UUID.String(),
		Name:           campaign.Name,
		SessionUUID:    sessionUUID,
		Status:         string(campaign.Status),
		RecipientCount: len(campaign.Recipients),
		SentCount:      campaign.SentCount,
		FailedCount:    campaign.FailedCount,
		ErrorMessage:   campaign.ErrorMessage,
		ScheduledAt:    campaign.ScheduledAt,
		StartedAt:      campaign.StartedAt,
		CompletedAt:    campaign.CompletedAt,
		CreatedAt:      campaign.CreatedAt,
	}
}

// ToAutoReplyRuleDTO converts a rule model to its API representation
func ToAutoReplyRuleDTO(rule *models.AutoReplyRule) dto.AutoReplyRuleDTO {
	return dto.AutoReplyRuleDTO{
		ID:               rule.ID,
		Channel:          string(rule.Channel),
		IsActive:         rule.IsActive != nil && *rule.IsActive,
		Priority:         rule.Priority,
		TriggerType:      string(rule.TriggerType),
		TriggerValue:     rule.TriggerValue,
		OnlyFirstMessage: rule.OnlyFirstMessage,
		ReplyType:        string(rule.ReplyType),
		ReplyContent:     rule.ReplyContent,
		UsageCount:       rule.UsageCount,
	}
}

// ToContactDTO converts a contact model to its API representation
func ToContactDTO(contact *models.Contact) dto.ContactDTO {
	return dto.ContactDTO{
		ID:                contact.ID,
		Channel:           string(contact.Channel),
		Identifier:        contact.Identifier,
		DisplayName:       contact.DisplayName,
		PushName:          contact.PushName,
		IsBusiness:        contact.IsBusiness,
		IsGroup:           contact.IsGroup,
		Tags:              contact.Tags,
		LastInteractionAt: contact.LastInteractionAt,
	}
}

// epochToUTC converts a unix-seconds provider timestamp, falling back to now
// for missing or nonsense values.
func epochToUTC(epoch int64, now time.Time) time.Time {
	if epoch <= 0 {
		return now
	}
	return time.Unix(epoch, 0).UTC()
}
