package businessflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// HandleTelegram authenticates and ingests one Telegram bot update. The bot
// and secret come from the webhook path. A secret mismatch is an auth error
// for the caller to log; the transport layer acknowledges Telegram anyway so
// the provider never retries.
func (f *WebhookFlowImpl) HandleTelegram(ctx context.Context, botID, secret string, update *dto.TelegramUpdate) error {
	session, err := f.sessionRepo.ByBotID(ctx, botID)
	if err != nil {
		return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to resolve Telegram bot", err)
	}
	if session == nil {
		f.logger.Printf("telegram webhook for unknown bot %q, dropping", botID)
		f.observer(models.ChannelTelegram, "unknown_principal")
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(session.Credentials.WebhookSecret), []byte(secret)) != 1 {
		return NewBusinessError("WEBHOOK_SECRET_MISMATCH", "Telegram webhook secret mismatch", ErrWebhookSecretInvalid)
	}
	if !utils.IsTrue(session.IsActive) {
		// Inactive bots acknowledge silently without processing.
		return nil
	}
	if update.Message == nil {
		return nil
	}

	msg, hint := normalizeTelegramMessage(session, botID, update.Message)
	return f.ingestMessage(ctx, session, msg, hint)
}

func normalizeTelegramMessage(session *models.Session, botID string, in *dto.TelegramMessage) (*models.ChatMessage, *models.ContactUpsert) {
	sentAt := epochToUTC(in.Date, utils.UTCNow())
	chatID := strconv.FormatInt(in.Chat.ID, 10)

	msg := &models.ChatMessage{
		ExternalID:     strconv.FormatInt(in.MessageID, 10),
		Channel:        models.ChannelTelegram,
		SessionID:      session.ID,
		FromIdentifier: chatID,
		ToIdentifier:   botID,
		Type:           models.MessageTypeText,
		Direction:      models.DirectionInbound,
		Status:         models.MessageStatusReceived,
		SentAt:         sentAt,
	}

	switch {
	case in.Text != "":
		msg.Content = utils.ToPtr(in.Text)
	case len(in.Photo) > 0:
		msg.Type = models.MessageTypeImage
		if raw, err := json.Marshal(in.Photo); err == nil {
			msg.Media = raw
		}
	case in.Voice != nil:
		msg.Type = models.MessageTypeAudio
		if raw, err := json.Marshal(in.Voice); err == nil {
			msg.Media = raw
		}
	case in.Document != nil:
		msg.Type = models.MessageTypeDocument
		if raw, err := json.Marshal(in.Document); err == nil {
			msg.Media = raw
		}
	case in.Location != nil:
		msg.Type = models.MessageTypeLocation
		if raw, err := json.Marshal(in.Location); err == nil {
			msg.Media = raw
		}
	default:
		msg.Type = models.MessageTypeOther
	}
	if msg.Content == nil && in.Caption != "" {
		msg.Content = utils.ToPtr(in.Caption)
	}

	hint := &models.ContactUpsert{
		UserID:       session.UserID,
		Channel:      models.ChannelTelegram,
		Identifier:   chatID,
		InteractedAt: sentAt,
	}
	if in.From != nil {
		name := strings.TrimSpace(in.From.FirstName + " " + in.From.LastName)
		if name != "" {
			hint.PushName = utils.ToPtr(name)
		}
	}
	return msg, hint
}
