package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/app/progress"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/services"
	businessflow "github.com/muhammad-febriansyah/chatcepat-sub007/business_flow"
	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// errCancelRequested is the cancellation cause used when a campaign is
// cancelled through the API while its task is running.
var errCancelRequested = errors.New("campaign cancel requested")

// SendObserver is notified after every send attempt. Feeds the metrics layer.
type SendObserver func(channel models.Channel, result string)

// FinishObserver is notified once per campaign terminal transition.
type FinishObserver func(status models.CampaignStatus)

// Dispatcher executes one claimed campaign as a strictly serial send loop
// with anti-ban pacing, partial-failure accounting and prompt cancellation.
type Dispatcher struct {
	campaignRepo repository.CampaignRepository
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository
	messageRepo  repository.ChatMessageRepository
	transports   *services.TransportRegistry
	limiter      businessflow.RateLimiter
	publisher    progress.Publisher
	cfg          config.DispatchConfig
	logger       *log.Logger

	onSend   SendObserver
	onFinish FinishObserver

	// onCooldown, when set, observes each batch-boundary cooldown pause
	onCooldown func()

	registry *cancelRegistry
}

// NewDispatcher creates a dispatcher
func NewDispatcher(
	campaignRepo repository.CampaignRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	messageRepo repository.ChatMessageRepository,
	transports *services.TransportRegistry,
	limiter businessflow.RateLimiter,
	publisher progress.Publisher,
	cfg config.DispatchConfig,
	logger *log.Logger,
	onSend SendObserver,
	onFinish FinishObserver,
) *Dispatcher {
	if onSend == nil {
		onSend = func(models.Channel, string) {}
	}
	if onFinish == nil {
		onFinish = func(models.CampaignStatus) {}
	}
	return &Dispatcher{
		campaignRepo: campaignRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		messageRepo:  messageRepo,
		transports:   transports,
		limiter:      limiter,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger,
		onSend:       onSend,
		onFinish:     onFinish,
		registry:     newCancelRegistry(),
	}
}

// Cancel interrupts the campaign's running task, if this process owns one.
// Implements businessflow.CancelNotifier.
func (d *Dispatcher) Cancel(campaignID uint) {
	d.registry.cancel(campaignID, errCancelRequested)
}

// Run executes one campaign that has already been claimed for processing.
// It always drives the campaign to a terminal status before returning.
func (d *Dispatcher) Run(parent context.Context, campaign *models.Campaign) {
	ctx, cancel := context.WithCancelCause(parent)
	d.registry.add(campaign.ID, cancel)
	defer func() {
		d.registry.remove(campaign.ID)
		cancel(nil)
	}()

	session, err := d.sessionRepo.ByID(ctx, campaign.SessionID)
	if err != nil || session == nil {
		d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr("session lookup failed"), 0, 0)
		return
	}
	if !session.IsConnected() {
		d.logger.Printf("campaign %s: session %s is not connected, failing without sends", campaign.UUID, session.UUID)
		d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr(fmt.Sprintf("session %s is not connected", session.UUID)), 0, 0)
		return
	}
	user, err := d.userRepo.ByID(ctx, campaign.UserID)
	if err != nil {
		d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr("user lookup failed"), 0, 0)
		return
	}
	transport, err := d.transports.ForChannel(session.Channel)
	if err != nil {
		d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr(err.Error()), 0, 0)
		return
	}

	pacer := NewPacer(campaign.BatchPolicy, models.BatchPolicy{
		BatchSize:     d.cfg.BatchSize,
		MinDelay:      d.cfg.MinMessageDelay,
		MaxDelay:      d.cfg.MaxMessageDelay,
		BatchCooldown: d.cfg.BatchCooldown,
	}, time.Now().UnixNano())

	total := len(campaign.Recipients)
	sent, failed := campaign.SentCount, campaign.FailedCount
	processed := 0
	sinceFlush := 0
	sentInBatch := 0
	cancelled := false

	d.publish(campaign, "started", total, processed, sent, failed)

	// A panic inside the loop must still flush counters and mark the
	// campaign failed instead of leaving it stuck in processing.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("campaign %s: dispatch panicked: %v", campaign.UUID, r)
			_ = d.campaignRepo.UpdateCounters(context.Background(), campaign.ID, sent, failed)
			d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr(fmt.Sprintf("dispatch panicked: %v", r)), sent, failed)
		}
	}()

	for _, recipient := range campaign.Recipients {
		if d.cancelRequested(ctx, campaign.ID) {
			cancelled = true
			break
		}

		ok := d.sendOne(ctx, session, user, transport, campaign, recipient)
		processed++
		sentInBatch++
		if ok {
			sent++
			sinceFlush++
		} else {
			failed++
		}

		if sinceFlush >= utils.CounterFlushInterval {
			d.flush(ctx, campaign, total, processed, sent, failed)
			sinceFlush = 0
		}

		remaining := total - processed
		if remaining == 0 {
			break
		}
		if !d.sleep(ctx, pacer.NextDelay()) {
			cancelled = true
			break
		}
		if pacer.ShouldCooldown(sentInBatch, remaining) {
			if d.onCooldown != nil {
				d.onCooldown()
			}
			d.flush(ctx, campaign, total, processed, sent, failed)
			sinceFlush = 0
			if !d.sleep(ctx, pacer.Cooldown()) {
				cancelled = true
				break
			}
			sentInBatch = 0
		}
	}

	d.flush(context.Background(), campaign, total, processed, sent, failed)

	switch {
	case cancelled:
		// The row is already cancelled (or the budget expired); stamp the
		// completion time and report final counters.
		_ = d.campaignRepo.Finish(context.Background(), campaign.ID, models.CampaignStatusCancelled, nil, utils.UTCNow())
		_ = d.campaignRepo.SetCompletedAt(context.Background(), campaign.ID, utils.UTCNow())
		d.publish(campaign, "cancelled", total, processed, sent, failed)
		d.onFinish(models.CampaignStatusCancelled)
		d.logger.Printf("campaign %s: cancelled after %d/%d recipients (sent=%d failed=%d)", campaign.UUID, processed, total, sent, failed)
	case failed == total:
		d.finish(campaign, models.CampaignStatusFailed, utils.ToPtr("all sends failed"), sent, failed)
	default:
		d.finish(campaign, models.CampaignStatusCompleted, nil, sent, failed)
	}
}

// sendOne renders, normalizes and delivers to a single recipient. A false
// return is a per-recipient failure; the campaign continues.
func (d *Dispatcher) sendOne(ctx context.Context, session *models.Session, user *models.User, transport services.MessageTransport, campaign *models.Campaign, recipient models.Recipient) bool {
	rendered, err := renderTemplate(campaign.Template.Content, recipient.Variables)
	if err != nil {
		d.logger.Printf("campaign %s: render failed for %s: %v", campaign.UUID, recipient.Identifier, err)
		d.onSend(session.Channel, "render_error")
		return false
	}

	identifier := recipient.Identifier
	if session.Channel == models.ChannelWhatsApp || session.Channel == models.ChannelGateway {
		identifier = utils.NormalizePhone(identifier, d.cfg.DefaultCountryCode)
	}

	if err := d.limiter.Allow(ctx, user); err != nil {
		d.logger.Printf("campaign %s: send to %s denied by rate limiter: %v", campaign.UUID, identifier, err)
		d.onSend(session.Channel, "rate_limited")
		return false
	}

	payload := services.OutboundPayload{
		Type:     templateMessageType(campaign.Template.Type),
		Text:     rendered,
		MediaURL: campaign.Template.MediaURL,
		Filename: campaign.Template.Filename,
	}
	providerID, err := transport.Send(ctx, session, identifier, payload)
	if err != nil {
		d.logger.Printf("campaign %s: send to %s failed: %v", campaign.UUID, identifier, err)
		d.onSend(session.Channel, "error")
		return false
	}

	now := utils.UTCNow()
	record := &models.ChatMessage{
		ExternalID:     providerID,
		Channel:        session.Channel,
		SessionID:      session.ID,
		FromIdentifier: session.UUID.String(),
		ToIdentifier:   identifier,
		Type:           payload.Type,
		Content:        utils.ToPtr(rendered),
		Direction:      models.DirectionOutbound,
		Status:         models.MessageStatusSent,
		CampaignID:     &campaign.ID,
		SentAt:         now,
	}
	if _, err := d.messageRepo.SaveIfAbsent(ctx, record); err != nil {
		d.logger.Printf("campaign %s: failed to record outbound message %s: %v", campaign.UUID, providerID, err)
	}
	d.onSend(session.Channel, "success")
	return true
}

// cancelRequested checks both the task context and the database row, so a
// cancel issued from another process is honored too.
func (d *Dispatcher) cancelRequested(ctx context.Context, campaignID uint) bool {
	if ctx.Err() != nil {
		return true
	}
	status, err := d.campaignRepo.GetStatus(ctx, campaignID)
	if err != nil {
		d.logger.Printf("campaign %d: status poll failed: %v", campaignID, err)
		return false
	}
	return status == models.CampaignStatusCancelled
}

// sleep pauses for the given duration, returning false when interrupted
func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) flush(ctx context.Context, campaign *models.Campaign, total, processed, sent, failed int) {
	if err := d.campaignRepo.UpdateCounters(ctx, campaign.ID, sent, failed); err != nil {
		d.logger.Printf("campaign %s: counter flush failed: %v", campaign.UUID, err)
	}
	d.publish(campaign, "progress", total, processed, sent, failed)
}

func (d *Dispatcher) finish(campaign *models.Campaign, status models.CampaignStatus, errorMessage *string, sent, failed int) {
	if err := d.campaignRepo.Finish(context.Background(), campaign.ID, status, errorMessage, utils.UTCNow()); err != nil {
		d.logger.Printf("campaign %s: terminal transition to %s failed: %v", campaign.UUID, status, err)
	}
	kind := "completed"
	if status == models.CampaignStatusFailed {
		kind = "failed"
	}
	d.publish(campaign, kind, len(campaign.Recipients), sent+failed, sent, failed)
	d.onFinish(status)
	d.logger.Printf("campaign %s: finished with status %s (sent=%d failed=%d)", campaign.UUID, status, sent, failed)
}

func (d *Dispatcher) publish(campaign *models.Campaign, kind string, total, processed, sent, failed int) {
	d.publisher.Publish(campaign.ID, progress.Event{
		CampaignUUID: campaign.UUID.String(),
		Status:       kind,
		Total:        total,
		Processed:    processed,
		Sent:         sent,
		Failed:       failed,
		Timestamp:    utils.UTCNow(),
	})
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// renderTemplate substitutes {{variable}} placeholders. A placeholder the
// recipient provides no value for fails the render.
func renderTemplate(content string, variables map[string]string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := variables[key]; ok {
			return value
		}
		if missing == "" {
			missing = key
		}
		return match
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", businessflow.ErrUnresolvedPlaceholder, missing)
	}
	return out, nil
}

func templateMessageType(t models.TemplateType) models.MessageType {
	switch t {
	case models.TemplateTypeImage:
		return models.MessageTypeImage
	case models.TemplateTypeDocument:
		return models.MessageTypeDocument
	default:
		return models.MessageTypeText
	}
}

// cancelRegistry tracks the cancel funcs of running campaign tasks
type cancelRegistry struct {
	mu    sync.Mutex
	tasks map[uint]context.CancelCauseFunc
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{tasks: make(map[uint]context.CancelCauseFunc)}
}

func (r *cancelRegistry) add(campaignID uint, cancel context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[campaignID] = cancel
}

func (r *cancelRegistry) remove(campaignID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, campaignID)
}

func (r *cancelRegistry) cancel(campaignID uint, cause error) {
	r.mu.Lock()
	cancel, ok := r.tasks[campaignID]
	r.mu.Unlock()
	if ok {
		cancel(cause)
	}
}
