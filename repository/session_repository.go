package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"gorm.io/gorm"
)

// SessionRepositoryImpl implements SessionRepository
type SessionRepositoryImpl struct {
	*BaseRepository[models.Session, models.SessionFilter]
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{BaseRepository: NewBaseRepository[models.Session, models.SessionFilter](db)}
}

func (r *SessionRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	db := r.getDB(ctx)
	var row models.Session
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// byCredentialField resolves the session owning a platform identifier stored
// inside the credentials JSONB column.
func (r *SessionRepositoryImpl) byCredentialField(ctx context.Context, channel models.Channel, field, value string) (*models.Session, error) {
	if value == "" {
		return nil, nil
	}
	db := r.getDB(ctx)
	var row models.Session
	err := db.Where("channel = ? AND credentials->>? = ?", channel, field, value).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SessionRepositoryImpl) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Session, error) {
	return r.byCredentialField(ctx, models.ChannelWhatsApp, "phone_number_id", phoneNumberID)
}

func (r *SessionRepositoryImpl) ByPageID(ctx context.Context, pageID string) (*models.Session, error) {
	return r.byCredentialField(ctx, models.ChannelFacebook, "page_id", pageID)
}

func (r *SessionRepositoryImpl) ByInstagramAccountID(ctx context.Context, accountID string) (*models.Session, error) {
	return r.byCredentialField(ctx, models.ChannelInstagram, "instagram_account_id", accountID)
}

// ByBotID resolves the Telegram session whose bot token carries the given
// numeric bot id prefix.
func (r *SessionRepositoryImpl) ByBotID(ctx context.Context, botID string) (*models.Session, error) {
	if botID == "" {
		return nil, nil
	}
	db := r.getDB(ctx)
	var row models.Session
	err := db.Where("channel = ? AND split_part(credentials->>'bot_token', ':', 1) = ?", models.ChannelTelegram, botID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SessionRepositoryImpl) UpdateStatus(ctx context.Context, sessionID uint, status models.SessionStatus) error {
	db := r.getDB(ctx)
	return db.Model(&models.Session{}).
		Where("id = ?", sessionID).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *SessionRepositoryImpl) applyFilter(db *gorm.DB, f models.SessionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *SessionRepositoryImpl) ByFilter(ctx context.Context, filter models.SessionFilter, orderBy string, limit, offset int) ([]*models.Session, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Session{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Session
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SessionRepositoryImpl) Count(ctx context.Context, filter models.SessionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Session{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
