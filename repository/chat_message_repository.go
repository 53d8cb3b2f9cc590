package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatMessageRepositoryImpl implements ChatMessageRepository
type ChatMessageRepositoryImpl struct {
	*BaseRepository[models.ChatMessage, models.ChatMessageFilter]
}

func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &ChatMessageRepositoryImpl{BaseRepository: NewBaseRepository[models.ChatMessage, models.ChatMessageFilter](db)}
}

// SaveIfAbsent relies on the unique fingerprint index plus ON CONFLICT DO
// NOTHING, so concurrent first-arrival of the same provider event resolves
// in the database rather than with a read-then-write race.
func (r *ChatMessageRepositoryImpl) SaveIfAbsent(ctx context.Context, message *models.ChatMessage) (bool, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "channel"}, {Name: "session_id"}, {Name: "external_id"},
		},
		DoNothing: true,
	}).Create(message)
	if res.Error != nil {
		err = fmt.Errorf("failed to save chat message: %w", res.Error)
		return false, err
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatMessageRepositoryImpl) ByFingerprint(ctx context.Context, channel models.Channel, sessionID uint, externalID string) (*models.ChatMessage, error) {
	db := r.getDB(ctx)
	var row models.ChatMessage
	err := db.Where("channel = ? AND session_id = ? AND external_id = ?", channel, sessionID, externalID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ApplyStatusUpdate reconciles a provider delivery receipt onto the matching
// message row. Replaying the same receipt is a no-op beyond updated_at.
func (r *ChatMessageRepositoryImpl) ApplyStatusUpdate(ctx context.Context, update models.StatusUpdate) error {
	db := r.getDB(ctx)
	values := map[string]any{
		"status":     update.Status,
		"updated_at": utils.UTCNow(),
	}
	if update.ErrorDetail != nil {
		values["error_detail"] = *update.ErrorDetail
	}
	return db.Model(&models.ChatMessage{}).
		Where("channel = ? AND session_id = ? AND external_id = ?",
			update.Channel, update.SessionID, update.ExternalID).
		Updates(values).Error
}

func (r *ChatMessageRepositoryImpl) CountInboundFrom(ctx context.Context, channel models.Channel, sessionID uint, fromIdentifier string) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.ChatMessage{}).
		Where("channel = ? AND session_id = ? AND from_identifier = ? AND direction = ?",
			channel, sessionID, fromIdentifier, models.DirectionInbound).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatMessageRepositoryImpl) applyFilter(db *gorm.DB, f models.ChatMessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ExternalID != nil {
		db = db.Where("external_id = ?", *f.ExternalID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.FromIdentifier != nil {
		db = db.Where("from_identifier = ?", *f.FromIdentifier)
	}
	if f.Direction != nil {
		db = db.Where("direction = ?", *f.Direction)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.ChatMessageFilter, orderBy string, limit, offset int) ([]*models.ChatMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatMessage{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ChatMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, filter models.ChatMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ChatMessage{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
