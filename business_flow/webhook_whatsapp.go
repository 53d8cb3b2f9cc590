package businessflow

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// handleWhatsApp normalizes a WhatsApp Business Cloud delivery. The session
// is resolved from metadata.phone_number_id; entries for unknown numbers are
// dropped with a warning.
func (f *WebhookFlowImpl) handleWhatsApp(ctx context.Context, payload *dto.MetaWebhookPayload) error {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			value := change.Value
			session, err := f.sessionRepo.ByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
			if err != nil {
				return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to resolve WhatsApp session", err)
			}
			if session == nil {
				f.logger.Printf("whatsapp webhook for unknown phone_number_id %q, dropping", value.Metadata.PhoneNumberID)
				f.observer(models.ChannelWhatsApp, "unknown_principal")
				continue
			}

			names := whatsAppProfileNames(value.Contacts)
			for i := range value.Messages {
				msg, hint := normalizeWhatsAppMessage(session, &value.Messages[i], names)
				if err := f.ingestMessage(ctx, session, msg, hint); err != nil {
					return err
				}
			}
			for _, status := range value.Statuses {
				f.applyStatus(ctx, normalizeWhatsAppStatus(session, status))
			}
		}
	}
	return nil
}

func whatsAppProfileNames(contacts []dto.WhatsAppContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}

func normalizeWhatsAppMessage(session *models.Session, in *dto.WhatsAppMessage, names map[string]string) (*models.ChatMessage, *models.ContactUpsert) {
	now := utils.UTCNow()
	sentAt := now
	if epoch, err := strconv.ParseInt(in.Timestamp, 10, 64); err == nil {
		sentAt = epochToUTC(epoch, now)
	}

	msg := &models.ChatMessage{
		ExternalID:     in.ID,
		Channel:        models.ChannelWhatsApp,
		SessionID:      session.ID,
		FromIdentifier: in.From,
		ToIdentifier:   session.Credentials.PhoneNumberID,
		Direction:      models.DirectionInbound,
		Status:         models.MessageStatusReceived,
		SentAt:         sentAt,
	}

	switch in.Type {
	case "text":
		msg.Type = models.MessageTypeText
		if in.Text != nil {
			msg.Content = utils.ToPtr(in.Text.Body)
		}
	case "image":
		msg.Type = models.MessageTypeImage
		msg.Media, msg.Content = whatsAppMediaBlob(in.Image)
	case "video":
		msg.Type = models.MessageTypeVideo
		msg.Media, msg.Content = whatsAppMediaBlob(in.Video)
	case "audio":
		msg.Type = models.MessageTypeAudio
		msg.Media, msg.Content = whatsAppMediaBlob(in.Audio)
	case "document":
		msg.Type = models.MessageTypeDocument
		msg.Media, msg.Content = whatsAppMediaBlob(in.Document)
	case "location":
		msg.Type = models.MessageTypeLocation
		msg.Media = in.Location
	default:
		msg.Type = models.MessageTypeOther
	}

	hint := &models.ContactUpsert{
		UserID:       session.UserID,
		Channel:      models.ChannelWhatsApp,
		Identifier:   in.From,
		InteractedAt: sentAt,
	}
	if name, ok := names[in.From]; ok {
		hint.PushName = utils.ToPtr(name)
	}
	return msg, hint
}

// whatsAppMediaBlob keeps provider media metadata verbatim and surfaces the
// caption as the message text so it stays matchable by auto-reply rules.
func whatsAppMediaBlob(media *dto.WhatsAppMedia) (json.RawMessage, *string) {
	if media == nil {
		return nil, nil
	}
	raw, err := json.Marshal(media)
	if err != nil {
		return nil, nil
	}
	var content *string
	if media.Caption != "" {
		content = utils.ToPtr(media.Caption)
	}
	return raw, content
}

func normalizeWhatsAppStatus(session *models.Session, in dto.WhatsAppStatus) models.StatusUpdate {
	now := utils.UTCNow()
	occurredAt := now
	if epoch, err := strconv.ParseInt(in.Timestamp, 10, 64); err == nil {
		occurredAt = epochToUTC(epoch, now)
	}

	update := models.StatusUpdate{
		ExternalID: in.ID,
		Channel:    models.ChannelWhatsApp,
		SessionID:  session.ID,
		Status:     whatsAppDeliveryStatus(in.Status),
		OccurredAt: occurredAt,
	}
	if len(in.Errors) > 0 && in.Errors[0].Title != "" {
		update.ErrorDetail = utils.ToPtr(in.Errors[0].Title)
	} else if update.Status == models.MessageStatusFailed {
		// Failed receipts without an error block still need a human-readable detail.
		update.ErrorDetail = utils.ToPtr("Unknown error")
	}
	return update
}

func whatsAppDeliveryStatus(s string) models.MessageStatus {
	switch s {
	case "sent":
		return models.MessageStatusSent
	case "delivered":
		return models.MessageStatusDelivered
	case "read":
		return models.MessageStatusRead
	case "failed":
		return models.MessageStatusFailed
	default:
		return models.MessageStatusPending
	}
}
