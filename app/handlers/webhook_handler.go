package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	businessflow "github.com/muhammad-febriansyah/chatcepat-sub007/business_flow"
	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	VerifyMeta(c fiber.Ctx) error
	ReceiveMeta(c fiber.Ctx) error
	ReceiveGateway(c fiber.Ctx) error
	ReceiveTelegram(c fiber.Ctx) error
}

// WebhookHandler handles provider webhook HTTP requests. Internal processing
// failures are acknowledged with 200 after logging so providers do not build
// retry storms; only authentication failures on the Meta surface return 403.
type WebhookHandler struct {
	webhookFlow businessflow.WebhookFlow
	cfg         config.WebhookConfig
	validator   *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookFlow, cfg config.WebhookConfig) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
		cfg:         cfg,
		validator:   validator.New(),
	}
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

// VerifyMeta answers the Meta webhook subscription handshake
func (h *WebhookHandler) VerifyMeta(c fiber.Ctx) error {
	mode := queryEither(c, "hub.mode", "hub_mode")
	token := queryEither(c, "hub.verify_token", "hub_verify_token")
	challenge := queryEither(c, "hub.challenge", "hub_challenge")

	if mode != "subscribe" || h.cfg.MetaVerifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.MetaVerifyToken)) != 1 {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Webhook verification failed", "VERIFY_TOKEN_MISMATCH", nil)
	}
	c.Set("Content-Type", "text/plain")
	return c.Status(fiber.StatusOK).SendString(challenge)
}

// ReceiveMeta ingests a Meta platform delivery after signature verification
func (h *WebhookHandler) ReceiveMeta(c fiber.Ctx) error {
	body := c.Body()
	if !h.verifySignature(body, c.Get("X-Hub-Signature-256")) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Invalid webhook signature", "SIGNATURE_INVALID", nil)
	}

	var payload dto.MetaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Println("meta webhook body unmarshal failed:", err)
		return c.SendStatus(fiber.StatusOK)
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.webhookFlow.HandleMeta(ctx, &payload); err != nil {
		log.Println("meta webhook processing failed:", err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// verifySignature checks the X-Hub-Signature-256 HMAC over the raw body
func (h *WebhookHandler) verifySignature(body []byte, header string) bool {
	if h.cfg.MetaAppSecret == "" {
		return false
	}
	provided, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.cfg.MetaAppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(provided), []byte(expected))
}

// ReceiveGateway ingests one message reported by a session bridge
func (h *WebhookHandler) ReceiveGateway(c fiber.Ctx) error {
	var req dto.GatewayMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrorMessages(err))
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.webhookFlow.HandleGateway(ctx, c.Params("sessionId"), &req); err != nil {
		log.Println("gateway webhook processing failed:", err)
	}
	return c.SendStatus(fiber.StatusOK)
}

// ReceiveTelegram ingests one Telegram bot update. The response is 200 OK
// whatever happens internally; Telegram retries anything else.
func (h *WebhookHandler) ReceiveTelegram(c fiber.Ctx) error {
	var update dto.TelegramUpdate
	if err := c.Bind().JSON(&update); err != nil {
		log.Println("telegram webhook body unmarshal failed:", err)
		return c.SendStatus(fiber.StatusOK)
	}

	ctx, cancel := requestContext()
	defer cancel()

	if err := h.webhookFlow.HandleTelegram(ctx, c.Params("botId"), c.Params("secret"), &update); err != nil {
		if businessflow.IsWebhookSecretInvalid(err) {
			log.Printf("telegram webhook secret mismatch for bot %s", c.Params("botId"))
		} else {
			log.Println("telegram webhook processing failed:", err)
		}
	}
	return c.SendStatus(fiber.StatusOK)
}

func queryEither(c fiber.Ctx, primary, fallback string) string {
	if v := c.Query(primary); v != "" {
		return v
	}
	return c.Query(fallback)
}
