// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
}

// UserRepository defines operations for principals
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
}

// SessionRepository defines operations for channel sessions
type SessionRepository interface {
	Repository[models.Session, models.SessionFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Session, error)
	ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Session, error)
	ByPageID(ctx context.Context, pageID string) (*models.Session, error)
	ByInstagramAccountID(ctx context.Context, accountID string) (*models.Session, error)
	ByBotID(ctx context.Context, botID string) (*models.Session, error)
	UpdateStatus(ctx context.Context, sessionID uint, status models.SessionStatus) error
}

// CampaignRepository defines operations for broadcast campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.Campaign, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	// ClaimForProcessing transitions scheduled -> processing atomically and
	// reports whether this caller won the claim. Enforces the single-owner
	// dispatch task invariant.
	ClaimForProcessing(ctx context.Context, campaignID uint, startedAt time.Time) (bool, error)
	// ReclaimStale returns processing rows whose task died (crash or
	// shutdown before launch) to scheduled so a later scan picks them up.
	// A row is stale once started_at is older than the task budget.
	ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error)
	GetStatus(ctx context.Context, campaignID uint) (models.CampaignStatus, error)
	UpdateCounters(ctx context.Context, campaignID uint, sent, failed int) error
	// Finish applies a terminal transition from processing. The status guard
	// keeps terminal states final even under racing writers.
	Finish(ctx context.Context, campaignID uint, status models.CampaignStatus, errorMessage *string, completedAt time.Time) error
	// RequestCancel marks a non-terminal campaign cancelled and reports
	// whether any row changed.
	RequestCancel(ctx context.Context, campaignID uint, userID uint) (bool, error)
	SetCompletedAt(ctx context.Context, campaignID uint, completedAt time.Time) error
	UpdateStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus) (bool, error)
}

// ChatMessageRepository defines operations for canonical messages
type ChatMessageRepository interface {
	Repository[models.ChatMessage, models.ChatMessageFilter]
	// SaveIfAbsent inserts the message unless its fingerprint
	// (channel, session_id, external_id) already exists, and reports
	// whether a row was created. Safe under concurrent first-arrival.
	SaveIfAbsent(ctx context.Context, message *models.ChatMessage) (bool, error)
	ByFingerprint(ctx context.Context, channel models.Channel, sessionID uint, externalID string) (*models.ChatMessage, error)
	ApplyStatusUpdate(ctx context.Context, update models.StatusUpdate) error
	CountInboundFrom(ctx context.Context, channel models.Channel, sessionID uint, fromIdentifier string) (int64, error)
}

// ContactRepository defines operations for chat contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ByIdentity(ctx context.Context, userID uint, channel models.Channel, identifier string) (*models.Contact, error)
	// UpsertTouch idempotently creates or refreshes a contact: the
	// interaction timestamp never moves backward and name fields are only
	// overwritten when the hint actually provides them.
	UpsertTouch(ctx context.Context, hint models.ContactUpsert) error
}

// AutoReplyRuleRepository defines operations for auto-reply rules
type AutoReplyRuleRepository interface {
	Repository[models.AutoReplyRule, models.AutoReplyRuleFilter]
	// ListActive returns active rules for (user, channel) ordered by
	// priority descending, id ascending — the deterministic match order.
	ListActive(ctx context.Context, userID uint, channel models.Channel) ([]*models.AutoReplyRule, error)
	IncrementUsage(ctx context.Context, ruleID uint) error
	SetActive(ctx context.Context, ruleID uint, userID uint, active bool) error
}
