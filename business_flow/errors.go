// Package businessflow contains the core business logic and use cases for messaging workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Principal-related errors
	ErrUserNotFound    = errors.New("user not found")
	ErrAccountInactive = errors.New("account is inactive")

	// Session-related errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAccessDenied = errors.New("session access denied")
	ErrSessionNotConnected = errors.New("session is not connected")
	ErrSessionInactive     = errors.New("session is inactive")
	ErrUnknownPrincipal    = errors.New("no session matches the webhook principal")

	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignNotStartable     = errors.New("campaign cannot be started in its current status")
	ErrCampaignNotCancellable   = errors.New("campaign cannot be cancelled in its current status")
	ErrCampaignAlreadyClaimed   = errors.New("campaign already claimed by another dispatcher")
	ErrRecipientsRequired       = errors.New("at least one recipient is required")
	ErrTemplateContentRequired  = errors.New("template content is required")
	ErrTemplateMediaURLRequired = errors.New("media url is required for media templates")
	ErrBatchPolicyInvalid       = errors.New("batch policy min delay cannot exceed max delay")
	ErrUnresolvedPlaceholder    = errors.New("template references a variable the recipient does not provide")

	// Webhook-related errors
	ErrSignatureInvalid     = errors.New("webhook signature verification failed")
	ErrVerifyTokenMismatch  = errors.New("verify token mismatch")
	ErrWebhookSecretInvalid = errors.New("webhook secret mismatch")
	ErrUnsupportedEvent     = errors.New("unsupported webhook event")

	// Auto-reply errors
	ErrRuleNotFound      = errors.New("auto-reply rule not found")
	ErrRuleAccessDenied  = errors.New("auto-reply rule access denied")
	ErrTriggerValueEmpty = errors.New("trigger value is required for keyword and regex rules")
	ErrInvalidRegex      = errors.New("trigger regex does not compile")

	// Rate limiting
	ErrRateLimitExceeded = errors.New("message rate limit exceeded")

	// Pagination errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func IsSessionNotConnected(err error) bool {
	return errors.Is(err, ErrSessionNotConnected)
}

func IsUnknownPrincipal(err error) bool {
	return errors.Is(err, ErrUnknownPrincipal)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignNotStartable(err error) bool {
	return errors.Is(err, ErrCampaignNotStartable)
}

func IsCampaignNotCancellable(err error) bool {
	return errors.Is(err, ErrCampaignNotCancellable)
}

func IsSignatureInvalid(err error) bool {
	return errors.Is(err, ErrSignatureInvalid)
}

func IsWebhookSecretInvalid(err error) bool {
	return errors.Is(err, ErrWebhookSecretInvalid)
}

func IsRateLimitExceeded(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

func IsRuleNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
