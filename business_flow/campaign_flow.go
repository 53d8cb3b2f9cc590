package businessflow

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"gorm.io/gorm"
)

// CampaignFlow handles the broadcast campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CreateCampaignResponse, error)
	GetCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	StartCampaign(ctx context.Context, userID uint, campaignUUID string, scheduledAt *time.Time) (*dto.StartCampaignResponse, error)
	CancelCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.CancelCampaignResponse, error)

	CreateAutoReplyRule(ctx context.Context, req *dto.CreateAutoReplyRuleRequest) (*dto.AutoReplyRuleDTO, error)
	ListAutoReplyRules(ctx context.Context, userID uint, channel *string) (*dto.ListAutoReplyRulesResponse, error)
	SetAutoReplyRuleActive(ctx context.Context, userID, ruleID uint, active bool) error

	ListContacts(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error)
}

// CancelNotifier interrupts a campaign's running dispatch task, if any.
// Implemented by the dispatcher's cancellation registry.
type CancelNotifier interface {
	Cancel(campaignID uint)
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	sessionRepo  repository.SessionRepository
	userRepo     repository.UserRepository
	ruleRepo     repository.AutoReplyRuleRepository
	contactRepo  repository.ContactRepository
	canceller    CancelNotifier
	db           *gorm.DB
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	ruleRepo repository.AutoReplyRuleRepository,
	contactRepo repository.ContactRepository,
	canceller CancelNotifier,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		sessionRepo:  sessionRepo,
		userRepo:     userRepo,
		ruleRepo:     ruleRepo,
		contactRepo:  contactRepo,
		canceller:    canceller,
		db:           db,
	}
}

// CreateCampaign validates and persists a new draft campaign
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, _ *ClientMetadata) (*dto.CreateCampaignResponse, error) {
	if err := validateCreateCampaignRequest(req); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}

	user, err := s.activeUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	sessionUUID, err := uuid.Parse(req.SessionUUID)
	if err != nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	session, err := s.sessionRepo.ByUUID(ctx, sessionUUID)
	if err != nil {
		return nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	if session.UserID != user.ID {
		return nil, NewBusinessError("SESSION_ACCESS_DENIED", "Session access denied", ErrSessionAccessDenied)
	}

	campaign := &models.Campaign{
		UUID:        uuid.New(),
		UserID:      user.ID,
		SessionID:   session.ID,
		Name:        req.Name,
		Recipients:  toRecipientList(req.Recipients),
		Template:    toTemplate(req.Template),
		BatchPolicy: toBatchPolicy(req.BatchPolicy),
		Status:      models.CampaignStatusDraft,
		ScheduledAt: req.ScheduledAt,
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	return &dto.CreateCampaignResponse{
		Message:   "Campaign created successfully",
		UUID:      campaign.UUID.String(),
		Status:    string(campaign.Status),
		CreatedAt: campaign.CreatedAt.Format(time.RFC3339),
	}, nil
}

// GetCampaign returns one campaign owned by the user
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.CampaignDTO, error) {
	campaign, session, err := s.ownedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	out := ToCampaignDTO(campaign, session.UUID.String())
	return &out, nil
}

// ListCampaigns returns the user's campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}

	filter := models.CampaignFilter{UserID: &req.UserID}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		filter.Status = &status
	}

	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}
	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to count campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, ToCampaignDTO(c, ""))
	}
	return &dto.ListCampaignsResponse{
		Message: "Campaigns retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// StartCampaign queues a draft campaign for dispatch. A nil scheduledAt means
// dispatch on the next scanner pass.
func (s *CampaignFlowImpl) StartCampaign(ctx context.Context, userID uint, campaignUUID string, scheduledAt *time.Time) (*dto.StartCampaignResponse, error) {
	campaign, session, err := s.ownedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}
	if !campaign.Status.CanTransitionTo(models.CampaignStatusScheduled) {
		return nil, NewBusinessError("CAMPAIGN_NOT_STARTABLE", fmt.Sprintf("Campaign in status %s cannot be started", campaign.Status), ErrCampaignNotStartable)
	}
	if !session.IsConnected() {
		return nil, NewBusinessError("SESSION_NOT_CONNECTED", "Session is not connected", ErrSessionNotConnected)
	}

	when := utils.UTCNow()
	if scheduledAt != nil {
		when = scheduledAt.UTC()
	}

	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		changed, err := s.campaignRepo.UpdateStatus(txCtx, campaign.ID, campaign.Status, models.CampaignStatusScheduled)
		if err != nil {
			return err
		}
		if !changed {
			return ErrCampaignNotStartable
		}
		campaign.Status = models.CampaignStatusScheduled
		campaign.ScheduledAt = &when
		return s.campaignRepo.Save(txCtx, campaign)
	})
	if err != nil {
		if IsCampaignNotStartable(err) {
			return nil, NewBusinessError("CAMPAIGN_NOT_STARTABLE", "Campaign cannot be started in its current status", err)
		}
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Campaign start failed", err)
	}

	return &dto.StartCampaignResponse{
		Message:     "Campaign queued for dispatch",
		UUID:        campaign.UUID.String(),
		Status:      string(campaign.Status),
		ScheduledAt: when.Format(time.RFC3339),
	}, nil
}

// CancelCampaign cancels a non-terminal campaign. A running dispatch task is
// interrupted promptly; counters accumulated so far are preserved.
func (s *CampaignFlowImpl) CancelCampaign(ctx context.Context, userID uint, campaignUUID string) (*dto.CancelCampaignResponse, error) {
	campaign, _, err := s.ownedCampaign(ctx, userID, campaignUUID)
	if err != nil {
		return nil, err
	}

	changed, err := s.campaignRepo.RequestCancel(ctx, campaign.ID, userID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CANCEL_FAILED", "Campaign cancellation failed", err)
	}
	if !changed {
		return nil, NewBusinessError("CAMPAIGN_NOT_CANCELLABLE", fmt.Sprintf("Campaign in status %s cannot be cancelled", campaign.Status), ErrCampaignNotCancellable)
	}
	if s.canceller != nil {
		s.canceller.Cancel(campaign.ID)
	}

	return &dto.CancelCampaignResponse{
		Message: "Campaign cancelled",
		UUID:    campaign.UUID.String(),
		Status:  string(models.CampaignStatusCancelled),
	}, nil
}

// CreateAutoReplyRule validates and persists a new auto-reply rule
func (s *CampaignFlowImpl) CreateAutoReplyRule(ctx context.Context, req *dto.CreateAutoReplyRuleRequest) (*dto.AutoReplyRuleDTO, error) {
	triggerType := models.TriggerType(req.TriggerType)
	if triggerType != models.TriggerTypeAll && req.TriggerValue == "" {
		return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Trigger value is required", ErrTriggerValueEmpty)
	}
	if triggerType == models.TriggerTypeRegex {
		if _, err := regexp.Compile(req.TriggerValue); err != nil {
			return nil, NewBusinessError("RULE_VALIDATION_FAILED", "Trigger regex does not compile", ErrInvalidRegex)
		}
	}
	if _, err := s.activeUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	rule := &models.AutoReplyRule{
		UserID:           req.UserID,
		Channel:          models.Channel(req.Channel),
		IsActive:         utils.ToPtr(true),
		Priority:         req.Priority,
		TriggerType:      triggerType,
		TriggerValue:     req.TriggerValue,
		OnlyFirstMessage: req.OnlyFirstMessage,
		ReplyType:        models.ReplyType(req.ReplyType),
		ReplyContent:     req.ReplyContent,
	}
	if err := s.ruleRepo.Save(ctx, rule); err != nil {
		return nil, NewBusinessError("RULE_CREATION_FAILED", "Auto-reply rule creation failed", err)
	}

	out := ToAutoReplyRuleDTO(rule)
	return &out, nil
}

// ListAutoReplyRules returns the user's rules, optionally narrowed to a channel
func (s *CampaignFlowImpl) ListAutoReplyRules(ctx context.Context, userID uint, channel *string) (*dto.ListAutoReplyRulesResponse, error) {
	filter := models.AutoReplyRuleFilter{UserID: &userID}
	if channel != nil {
		ch := models.Channel(*channel)
		filter.Channel = &ch
	}
	rules, err := s.ruleRepo.ByFilter(ctx, filter, "priority DESC, id ASC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("RULE_LIST_FAILED", "Failed to list auto-reply rules", err)
	}
	items := make([]dto.AutoReplyRuleDTO, 0, len(rules))
	for _, r := range rules {
		items = append(items, ToAutoReplyRuleDTO(r))
	}
	return &dto.ListAutoReplyRulesResponse{
		Message: "Auto-reply rules retrieved successfully",
		Items:   items,
	}, nil
}

// SetAutoReplyRuleActive toggles one of the user's rules
func (s *CampaignFlowImpl) SetAutoReplyRuleActive(ctx context.Context, userID, ruleID uint, active bool) error {
	rule, err := s.ruleRepo.ByID(ctx, ruleID)
	if err != nil {
		return NewBusinessError("RULE_LOOKUP_FAILED", "Failed to lookup auto-reply rule", err)
	}
	if rule == nil {
		return NewBusinessError("RULE_NOT_FOUND", "Auto-reply rule not found", ErrRuleNotFound)
	}
	if rule.UserID != userID {
		return NewBusinessError("RULE_ACCESS_DENIED", "Auto-reply rule access denied", ErrRuleAccessDenied)
	}
	if err := s.ruleRepo.SetActive(ctx, ruleID, userID, active); err != nil {
		return NewBusinessError("RULE_UPDATE_FAILED", "Auto-reply rule update failed", err)
	}
	return nil
}

// ListContacts returns the user's contacts, most recently interacted first
func (s *CampaignFlowImpl) ListContacts(ctx context.Context, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error) {
	page, pageSize, err := normalizePagination(req.Page, req.PageSize)
	if err != nil {
		return nil, NewBusinessError("INVALID_PAGINATION", "Invalid pagination", err)
	}

	filter := models.ContactFilter{UserID: &req.UserID}
	if req.Channel != nil {
		ch := models.Channel(*req.Channel)
		filter.Channel = &ch
	}
	if req.Tag != nil && *req.Tag != "" {
		filter.Tag = req.Tag
	}

	contacts, err := s.contactRepo.ByFilter(ctx, filter, "last_interaction_at DESC NULLS LAST", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}
	total, err := s.contactRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to count contacts", err)
	}

	items := make([]dto.ContactDTO, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, ToContactDTO(c))
	}
	return &dto.ListContactsResponse{
		Message: "Contacts retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

func (s *CampaignFlowImpl) activeUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.ByID(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("USER_LOOKUP_FAILED", "Failed to lookup user", err)
	}
	if user == nil {
		return nil, NewBusinessError("USER_NOT_FOUND", "User not found", ErrUserNotFound)
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, NewBusinessError("USER_INACTIVE", "User account is inactive", ErrAccountInactive)
	}
	return user, nil
}

// ownedCampaign loads a campaign by uuid and enforces ownership
func (s *CampaignFlowImpl) ownedCampaign(ctx context.Context, userID uint, campaignUUID string) (*models.Campaign, *models.Session, error) {
	id, err := uuid.Parse(campaignUUID)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	campaign, err := s.campaignRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if campaign.UserID != userID {
		return nil, nil, NewBusinessError("CAMPAIGN_ACCESS_DENIED", "Campaign access denied", ErrCampaignAccessDenied)
	}
	session, err := s.sessionRepo.ByID(ctx, campaign.SessionID)
	if err != nil {
		return nil, nil, NewBusinessError("SESSION_LOOKUP_FAILED", "Failed to lookup session", err)
	}
	if session == nil {
		return nil, nil, NewBusinessError("SESSION_NOT_FOUND", "Session not found", ErrSessionNotFound)
	}
	return campaign, session, nil
}

func validateCreateCampaignRequest(req *dto.CreateCampaignRequest) error {
	if len(req.Recipients) == 0 {
		return ErrRecipientsRequired
	}
	if req.Template.Content == "" {
		return ErrTemplateContentRequired
	}
	if req.Template.Type != string(models.TemplateTypeText) && req.Template.MediaURL == "" {
		return ErrTemplateMediaURLRequired
	}
	if p := req.BatchPolicy; p != nil && p.MinDelaySecs > 0 && p.MaxDelaySecs > 0 && p.MinDelaySecs > p.MaxDelaySecs {
		return ErrBatchPolicyInvalid
	}
	return nil
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = 20
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > 100 {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

func toRecipientList(in []dto.CampaignRecipient) models.RecipientList {
	out := make(models.RecipientList, 0, len(in))
	for _, r := range in {
		out = append(out, models.Recipient{Identifier: r.Identifier, Variables: r.Variables})
	}
	return out
}

func toTemplate(in dto.CampaignTemplate) models.Template {
	return models.Template{
		Type:     models.TemplateType(in.Type),
		Content:  in.Content,
		MediaURL: in.MediaURL,
		Filename: in.Filename,
	}
}

func toBatchPolicy(in *dto.CampaignBatchPolicy) models.BatchPolicy {
	if in == nil {
		return models.BatchPolicy{}
	}
	return models.BatchPolicy{
		BatchSize:     in.BatchSize,
		MinDelay:      time.Duration(in.MinDelaySecs) * time.Second,
		MaxDelay:      time.Duration(in.MaxDelaySecs) * time.Second,
		BatchCooldown: time.Duration(in.CooldownSecs) * time.Second,
	}
}
