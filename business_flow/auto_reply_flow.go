package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/services"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// AutoReplyFlow evaluates auto-reply rules against newly arrived inbound
// messages and sends the matching reply.
type AutoReplyFlow interface {
	HandleInbound(ctx context.Context, session *models.Session, message *models.ChatMessage) error
}

// AutoReplyFlowImpl implements the auto-reply business flow
type AutoReplyFlowImpl struct {
	ruleRepo    repository.AutoReplyRuleRepository
	messageRepo repository.ChatMessageRepository
	transports  *services.TransportRegistry
	logger      *log.Logger
}

// NewAutoReplyFlow creates a new auto-reply flow instance
func NewAutoReplyFlow(
	ruleRepo repository.AutoReplyRuleRepository,
	messageRepo repository.ChatMessageRepository,
	transports *services.TransportRegistry,
	logger *log.Logger,
) AutoReplyFlow {
	return &AutoReplyFlowImpl{
		ruleRepo:    ruleRepo,
		messageRepo: messageRepo,
		transports:  transports,
		logger:      logger,
	}
}

// HandleInbound finds the highest-priority matching rule for the message and
// sends its reply. Only the first matching rule fires. Transport failures are
// logged, never raised: a failed reply must not fail webhook ingestion.
func (f *AutoReplyFlowImpl) HandleInbound(ctx context.Context, session *models.Session, message *models.ChatMessage) error {
	if !message.HasText() {
		return nil
	}

	rules, err := f.ruleRepo.ListActive(ctx, session.UserID, session.Channel)
	if err != nil {
		return NewBusinessError("AUTO_REPLY_RULES_LOOKUP_FAILED", "Failed to list auto-reply rules", err)
	}
	if len(rules) == 0 {
		return nil
	}

	text := *message.Content
	for _, rule := range rules {
		matched, err := ruleMatches(rule, text)
		if err != nil {
			f.logger.Printf("auto-reply rule %d has an invalid trigger, skipping: %v", rule.ID, err)
			continue
		}
		if !matched {
			continue
		}
		if rule.OnlyFirstMessage {
			count, err := f.messageRepo.CountInboundFrom(ctx, message.Channel, message.SessionID, message.FromIdentifier)
			if err != nil {
				return NewBusinessError("AUTO_REPLY_HISTORY_LOOKUP_FAILED", "Failed to count prior messages", err)
			}
			// The triggering message is already persisted, so a first
			// contact counts exactly one inbound row.
			if count > 1 {
				continue
			}
		}
		f.fire(ctx, session, message, rule)
		return nil
	}
	return nil
}

// fire sends the rule's reply and records the outbound message. Usage is
// counted as soon as a send is attempted, whatever the delivery outcome.
func (f *AutoReplyFlowImpl) fire(ctx context.Context, session *models.Session, inbound *models.ChatMessage, rule *models.AutoReplyRule) {
	transport, err := f.transports.ForChannel(session.Channel)
	if err != nil {
		f.logger.Printf("no transport for auto-reply on channel %s: %v", session.Channel, err)
		return
	}
	if err := f.ruleRepo.IncrementUsage(ctx, rule.ID); err != nil {
		f.logger.Printf("failed to increment usage for auto-reply rule %d: %v", rule.ID, err)
	}

	payload := services.OutboundPayload{
		Type: models.MessageTypeText,
		Text: rule.ReplyContent,
	}
	if rule.ReplyType == models.ReplyTypeMedia && len(rule.ReplyMedia) > 0 {
		payload.Type = models.MessageTypeImage
		payload.MediaURL = mediaURLFromRaw(rule.ReplyMedia)
	}

	now := utils.UTCNow()
	outbound := &models.ChatMessage{
		Channel:        session.Channel,
		SessionID:      session.ID,
		FromIdentifier: inbound.ToIdentifier,
		ToIdentifier:   inbound.FromIdentifier,
		Type:           payload.Type,
		Content:        utils.ToPtr(rule.ReplyContent),
		Direction:      models.DirectionOutbound,
		Status:         models.MessageStatusPending,
		IsAutoReply:    true,
		SentAt:         now,
	}

	providerID, sendErr := transport.Send(ctx, session, inbound.FromIdentifier, payload)
	if sendErr != nil {
		f.logger.Printf("auto-reply send failed for rule %d to %s: %v", rule.ID, inbound.FromIdentifier, sendErr)
		outbound.ExternalID = fmt.Sprintf("auto-reply-%d-%d", rule.ID, now.UnixNano())
		outbound.Status = models.MessageStatusFailed
		outbound.ErrorDetail = utils.ToPtr(sendErr.Error())
	} else {
		outbound.ExternalID = providerID
		outbound.Status = models.MessageStatusSent
	}

	if _, err := f.messageRepo.SaveIfAbsent(ctx, outbound); err != nil {
		f.logger.Printf("failed to record auto-reply message for rule %d: %v", rule.ID, err)
	}
}

// ruleMatches evaluates a rule's trigger against the message text
func ruleMatches(rule *models.AutoReplyRule, text string) (bool, error) {
	switch rule.TriggerType {
	case models.TriggerTypeAll:
		return true, nil
	case models.TriggerTypeKeyword:
		if rule.TriggerValue == "" {
			return false, ErrTriggerValueEmpty
		}
		return strings.Contains(strings.ToLower(text), strings.ToLower(rule.TriggerValue)), nil
	case models.TriggerTypeRegex:
		re, err := regexp.Compile(rule.TriggerValue)
		if err != nil {
			return false, ErrInvalidRegex
		}
		return re.MatchString(text), nil
	default:
		return false, fmt.Errorf("unknown trigger type %q", rule.TriggerType)
	}
}

// mediaURLFromRaw pulls the url field out of a stored reply media document
func mediaURLFromRaw(raw []byte) string {
	var doc struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	return doc.URL
}
