package businessflow

import (
	"context"
	"encoding/json"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// handleFacebook normalizes a Facebook Messenger delivery. The session is
// resolved from the entry id, which carries the page id.
func (f *WebhookFlowImpl) handleFacebook(ctx context.Context, payload *dto.MetaWebhookPayload) error {
	for _, entry := range payload.Entry {
		session, err := f.sessionRepo.ByPageID(ctx, entry.ID)
		if err != nil {
			return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to resolve Messenger session", err)
		}
		if session == nil {
			f.logger.Printf("messenger webhook for unknown page %q, dropping", entry.ID)
			f.observer(models.ChannelFacebook, "unknown_principal")
			continue
		}
		if err := f.ingestMessengerEntry(ctx, session, models.ChannelFacebook, entry); err != nil {
			return err
		}
	}
	return nil
}

// ingestMessengerEntry walks one entry's messaging events. Instagram and
// Messenger share this wire shape.
func (f *WebhookFlowImpl) ingestMessengerEntry(ctx context.Context, session *models.Session, channel models.Channel, entry dto.MetaWebhookEntry) error {
	principalID := entry.ID
	for _, event := range entry.Messaging {
		switch {
		case event.Message != nil:
			// Echoes of the page's own sends carry the principal as sender.
			if event.Sender.ID == principalID {
				continue
			}
			msg, hint := normalizeMessengerMessage(session, channel, principalID, event)
			if err := f.ingestMessage(ctx, session, msg, hint); err != nil {
				return err
			}
		case event.Delivery != nil:
			f.applyMessengerReceipt(ctx, session, channel, event.Delivery.MIDs, models.MessageStatusDelivered, event.Timestamp)
		case event.Read != nil:
			f.applyMessengerReceipt(ctx, session, channel, event.Read.MIDs, models.MessageStatusRead, event.Timestamp)
		}
	}
	return nil
}

// applyMessengerReceipt fans one receipt out over its message ids
func (f *WebhookFlowImpl) applyMessengerReceipt(ctx context.Context, session *models.Session, channel models.Channel, mids []string, status models.MessageStatus, timestampMillis int64) {
	occurredAt := epochToUTC(timestampMillis/1000, utils.UTCNow())
	for _, mid := range mids {
		f.applyStatus(ctx, models.StatusUpdate{
			ExternalID: mid,
			Channel:    channel,
			SessionID:  session.ID,
			Status:     status,
			OccurredAt: occurredAt,
		})
	}
}

func normalizeMessengerMessage(session *models.Session, channel models.Channel, principalID string, event dto.MessengerEventItem) (*models.ChatMessage, *models.ContactUpsert) {
	in := event.Message
	sentAt := epochToUTC(event.Timestamp/1000, utils.UTCNow())

	msg := &models.ChatMessage{
		ExternalID:     in.MID,
		Channel:        channel,
		SessionID:      session.ID,
		FromIdentifier: event.Sender.ID,
		ToIdentifier:   principalID,
		Type:           models.MessageTypeText,
		Direction:      models.DirectionInbound,
		Status:         models.MessageStatusReceived,
		SentAt:         sentAt,
	}
	if in.Text != "" {
		msg.Content = utils.ToPtr(in.Text)
	} else if in.QuickReply != nil {
		msg.Content = utils.ToPtr(in.QuickReply.Payload)
	}
	if len(in.Attachments) > 0 {
		msg.Type = messengerAttachmentType(in.Attachments[0].Type)
		if raw, err := json.Marshal(in.Attachments); err == nil {
			msg.Media = raw
		}
	}

	hint := &models.ContactUpsert{
		UserID:       session.UserID,
		Channel:      channel,
		Identifier:   event.Sender.ID,
		InteractedAt: sentAt,
	}
	return msg, hint
}

func messengerAttachmentType(t string) models.MessageType {
	switch t {
	case "image":
		return models.MessageTypeImage
	case "video":
		return models.MessageTypeVideo
	case "audio":
		return models.MessageTypeAudio
	case "file":
		return models.MessageTypeDocument
	case "location":
		return models.MessageTypeLocation
	default:
		return models.MessageTypeOther
	}
}
