package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	businessflow "github.com/muhammad-febriansyah/chatcepat-sub007/business_flow"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	CancelCampaign(c fiber.Ctx) error
	CreateAutoReplyRule(c fiber.Ctx) error
	ListAutoReplyRules(c fiber.Ctx) error
	SetAutoReplyRuleActive(c fiber.Ctx) error
	ListContacts(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
	validator    *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{
		campaignFlow: campaignFlow,
		validator:    validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateCampaign handles the campaign creation process
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req, metadata)
	if err != nil {
		return h.campaignError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// GetCampaign returns one campaign with its counters
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, userID, c.Params("uuid"))
	if err != nil {
		return h.campaignError(c, err, "Campaign retrieval failed", "CAMPAIGN_RETRIEVAL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaigns returns the authenticated user's campaigns
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListCampaignsRequest{UserID: userID}
	req.Page, _ = strconv.Atoi(c.Query("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.ListCampaigns(ctx, &req)
	if err != nil {
		return h.campaignError(c, err, "Campaign listing failed", "CAMPAIGN_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// StartCampaign queues a draft campaign for dispatch
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var body struct {
		ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.StartCampaign(ctx, userID, c.Params("uuid"), body.ScheduledAt)
	if err != nil {
		return h.campaignError(c, err, "Campaign start failed", "CAMPAIGN_START_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CancelCampaign cancels a non-terminal campaign
func (h *CampaignHandler) CancelCampaign(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.CancelCampaign(ctx, userID, c.Params("uuid"))
	if err != nil {
		return h.campaignError(c, err, "Campaign cancellation failed", "CAMPAIGN_CANCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// CreateAutoReplyRule creates a new auto-reply rule
func (h *CampaignHandler) CreateAutoReplyRule(c fiber.Ctx) error {
	var req dto.CreateAutoReplyRuleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}
	req.UserID = userID

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.CreateAutoReplyRule(ctx, &req)
	if err != nil {
		return h.campaignError(c, err, "Auto-reply rule creation failed", "RULE_CREATION_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Auto-reply rule created successfully", result)
}

// ListAutoReplyRules lists the user's auto-reply rules
func (h *CampaignHandler) ListAutoReplyRules(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	var channel *string
	if ch := c.Query("channel"); ch != "" {
		channel = &ch
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.ListAutoReplyRules(ctx, userID, channel)
	if err != nil {
		return h.campaignError(c, err, "Auto-reply rule listing failed", "RULE_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// SetAutoReplyRuleActive toggles one auto-reply rule
func (h *CampaignHandler) SetAutoReplyRuleActive(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	ruleID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid rule id", "INVALID_RULE_ID", nil)
	}
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.campaignFlow.SetAutoReplyRuleActive(ctx, userID, uint(ruleID), body.IsActive); err != nil {
		return h.campaignError(c, err, "Auto-reply rule update failed", "RULE_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Auto-reply rule updated successfully", nil)
}

// ListContacts lists the user's contacts
func (h *CampaignHandler) ListContacts(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
	}

	req := dto.ListContactsRequest{UserID: userID}
	req.Page, _ = strconv.Atoi(c.Query("page", "1"))
	req.PageSize, _ = strconv.Atoi(c.Query("page_size", "20"))
	if ch := c.Query("channel"); ch != "" {
		req.Channel = &ch
	}
	if tag := c.Query("tag"); tag != "" {
		req.Tag = &tag
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	ctx, cancel := requestContext()
	defer cancel()

	result, err := h.campaignFlow.ListContacts(ctx, &req)
	if err != nil {
		return h.campaignError(c, err, "Contact listing failed", "CONTACT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// campaignError maps business errors onto HTTP statuses
func (h *CampaignHandler) campaignError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsUserNotFound(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found", "USER_NOT_FOUND", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User account is inactive", "ACCOUNT_INACTIVE", nil)
	case businessflow.IsCampaignNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsCampaignAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Campaign access denied", "CAMPAIGN_ACCESS_DENIED", nil)
	case businessflow.IsSessionNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", nil)
	case businessflow.IsSessionNotConnected(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Session is not connected", "SESSION_NOT_CONNECTED", nil)
	case businessflow.IsCampaignNotStartable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be started in its current status", "CAMPAIGN_NOT_STARTABLE", nil)
	case businessflow.IsCampaignNotCancellable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be cancelled in its current status", "CAMPAIGN_NOT_CANCELLABLE", nil)
	case businessflow.IsRuleNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Auto-reply rule not found", "RULE_NOT_FOUND", nil)
	}

	var businessErr *businessflow.BusinessError
	if errors.As(err, &businessErr) && businessErr.Code == "CAMPAIGN_VALIDATION_FAILED" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, businessErr.Message, businessErr.Code, businessErr.Err.Error())
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
