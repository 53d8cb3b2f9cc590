package businessflow

import (
	"context"
	"log"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
)

// WebhookFlow normalizes provider webhook payloads into canonical messages,
// contacts and delivery-state updates.
type WebhookFlow interface {
	// HandleMeta dispatches a Meta platform delivery to the WhatsApp,
	// Instagram or Messenger normalizer based on the payload's object
	// discriminator.
	HandleMeta(ctx context.Context, payload *dto.MetaWebhookPayload) error
	HandleGateway(ctx context.Context, sessionUUID string, req *dto.GatewayMessageRequest) error
	// HandleTelegram authenticates the bot from the path segments and
	// ingests the update. Secret mismatch returns ErrWebhookSecretInvalid;
	// the transport layer still acknowledges the provider.
	HandleTelegram(ctx context.Context, botID, secret string, update *dto.TelegramUpdate) error
}

// IngestObserver is notified after webhook events are recorded. Used to feed
// the metrics layer without coupling the flow to it.
type IngestObserver func(channel models.Channel, kind string)

// WebhookFlowImpl implements the webhook normalization flow
type WebhookFlowImpl struct {
	sessionRepo repository.SessionRepository
	messageRepo repository.ChatMessageRepository
	contactRepo repository.ContactRepository
	autoReply   AutoReplyFlow
	observer    IngestObserver
	logger      *log.Logger
}

// NewWebhookFlow creates a new webhook flow instance
func NewWebhookFlow(
	sessionRepo repository.SessionRepository,
	messageRepo repository.ChatMessageRepository,
	contactRepo repository.ContactRepository,
	autoReply AutoReplyFlow,
	observer IngestObserver,
	logger *log.Logger,
) WebhookFlow {
	if observer == nil {
		observer = func(models.Channel, string) {}
	}
	return &WebhookFlowImpl{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		autoReply:   autoReply,
		observer:    observer,
		logger:      logger,
	}
}

// Meta payload object discriminators
const (
	metaObjectWhatsApp  = "whatsapp_business_account"
	metaObjectInstagram = "instagram"
	metaObjectPage      = "page"
)

// HandleMeta routes one Meta delivery to the platform normalizer
func (f *WebhookFlowImpl) HandleMeta(ctx context.Context, payload *dto.MetaWebhookPayload) error {
	switch payload.Object {
	case metaObjectWhatsApp:
		return f.handleWhatsApp(ctx, payload)
	case metaObjectInstagram:
		return f.handleInstagram(ctx, payload)
	case metaObjectPage:
		return f.handleFacebook(ctx, payload)
	default:
		f.logger.Printf("ignoring webhook for unsupported object %q", payload.Object)
		return nil
	}
}

// ingestMessage persists one normalized message idempotently, refreshes the
// contact and triggers auto-reply for messages seen for the first time.
// Replayed deliveries are absorbed by the fingerprint index.
func (f *WebhookFlowImpl) ingestMessage(ctx context.Context, session *models.Session, message *models.ChatMessage, hint *models.ContactUpsert) error {
	created, err := f.messageRepo.SaveIfAbsent(ctx, message)
	if err != nil {
		return NewBusinessError("MESSAGE_PERSIST_FAILED", "Failed to persist inbound message", err)
	}
	if !created {
		f.observer(message.Channel, "duplicate")
		return nil
	}
	f.observer(message.Channel, "message")

	if hint != nil {
		if err := f.contactRepo.UpsertTouch(ctx, *hint); err != nil {
			f.logger.Printf("contact upsert failed for %s on %s: %v", hint.Identifier, hint.Channel, err)
		}
	}

	if message.Direction == models.DirectionInbound && message.HasText() && !message.IsAutoReply {
		if err := f.autoReply.HandleInbound(ctx, session, message); err != nil {
			f.logger.Printf("auto-reply evaluation failed for message %s: %v", message.ExternalID, err)
		}
	}
	return nil
}

// applyStatus applies a delivery-state notification to the matching message.
// Unknown external ids are logged and skipped.
func (f *WebhookFlowImpl) applyStatus(ctx context.Context, update models.StatusUpdate) {
	existing, err := f.messageRepo.ByFingerprint(ctx, update.Channel, update.SessionID, update.ExternalID)
	if err != nil {
		f.logger.Printf("status lookup failed for %s: %v", update.ExternalID, err)
		return
	}
	if existing == nil {
		f.logger.Printf("status update for unknown message %s on %s, skipping", update.ExternalID, update.Channel)
		return
	}
	if err := f.messageRepo.ApplyStatusUpdate(ctx, update); err != nil {
		f.logger.Printf("status update failed for %s: %v", update.ExternalID, err)
		return
	}
	f.observer(update.Channel, "status")
}
