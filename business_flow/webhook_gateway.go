package businessflow

import (
	"context"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// HandleGateway ingests one message reported by a self-hosted session bridge.
// The bridge speaks a near-canonical shape, so normalization is mostly field
// mapping. Outgoing traffic is recorded too: the bridge reports sends made
// outside this platform.
func (f *WebhookFlowImpl) HandleGateway(ctx context.Context, sessionUUID string, req *dto.GatewayMessageRequest) error {
	id, err := uuid.Parse(sessionUUID)
	if err != nil {
		f.logger.Printf("gateway webhook with malformed session id %q, dropping", sessionUUID)
		f.observer(models.ChannelGateway, "unknown_principal")
		return nil
	}
	session, err := f.sessionRepo.ByUUID(ctx, id)
	if err != nil {
		return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to resolve gateway session", err)
	}
	if session == nil || session.Channel != models.ChannelGateway {
		f.logger.Printf("gateway webhook for unknown session %q, dropping", sessionUUID)
		f.observer(models.ChannelGateway, "unknown_principal")
		return nil
	}

	msg, hint := normalizeGatewayMessage(session, req)
	return f.ingestMessage(ctx, session, msg, hint)
}

func normalizeGatewayMessage(session *models.Session, req *dto.GatewayMessageRequest) (*models.ChatMessage, *models.ContactUpsert) {
	now := utils.UTCNow()
	sentAt := now
	if req.Timestamp != nil {
		sentAt = epochToUTC(*req.Timestamp, now)
	}

	direction := models.DirectionInbound
	status := models.MessageStatusReceived
	if req.Direction == "outgoing" {
		direction = models.DirectionOutbound
		status = gatewayDeliveryStatus(req.Status)
	}

	msg := &models.ChatMessage{
		ExternalID:     req.MessageID,
		Channel:        models.ChannelGateway,
		SessionID:      session.ID,
		FromIdentifier: req.FromNumber,
		ToIdentifier:   req.ToNumber,
		Type:           gatewayMessageType(req.Type),
		Content:        req.Content,
		Media:          req.MediaMetadata,
		Direction:      direction,
		Status:         status,
		IsAutoReply:    req.IsAutoReply,
		SentAt:         sentAt,
	}

	var hint *models.ContactUpsert
	if direction == models.DirectionInbound {
		hint = &models.ContactUpsert{
			UserID:       session.UserID,
			Channel:      models.ChannelGateway,
			Identifier:   req.FromNumber,
			PushName:     req.PushName,
			InteractedAt: sentAt,
		}
	}
	return msg, hint
}

func gatewayMessageType(t string) models.MessageType {
	switch t {
	case "text":
		return models.MessageTypeText
	case "image":
		return models.MessageTypeImage
	case "video":
		return models.MessageTypeVideo
	case "audio":
		return models.MessageTypeAudio
	case "document":
		return models.MessageTypeDocument
	case "location":
		return models.MessageTypeLocation
	default:
		return models.MessageTypeOther
	}
}

func gatewayDeliveryStatus(s string) models.MessageStatus {
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
