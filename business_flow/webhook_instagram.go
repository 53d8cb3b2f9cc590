package businessflow

import (
	"context"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

// handleInstagram normalizes an Instagram direct-message delivery. The wire
// shape matches Messenger; the session is resolved from the entry id, which
// carries the instagram account id.
func (f *WebhookFlowImpl) handleInstagram(ctx context.Context, payload *dto.MetaWebhookPayload) error {
	for _, entry := range payload.Entry {
		session, err := f.sessionRepo.ByInstagramAccountID(ctx, entry.ID)
		if err != nil {
			return NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to resolve Instagram session", err)
		}
		if session == nil {
			f.logger.Printf("instagram webhook for unknown account %q, dropping", entry.ID)
			f.observer(models.ChannelInstagram, "unknown_principal")
			continue
		}
		if err := f.ingestMessengerEntry(ctx, session, models.ChannelInstagram, entry); err != nil {
			return err
		}
	}
	return nil
}
