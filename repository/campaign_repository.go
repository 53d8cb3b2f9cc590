package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db)}
}

func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	db := r.getDB(ctx)
	var row models.Campaign
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *CampaignRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	var rows []*models.Campaign
	query := db.Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", models.CampaignStatusScheduled, now).
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignRepositoryImpl) ClaimForProcessing(ctx context.Context, campaignID uint, startedAt time.Time) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.CampaignStatusScheduled).
		Updates(map[string]any{
			"status":     models.CampaignStatusProcessing,
			"started_at": startedAt,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim campaign %d: %w", campaignID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *CampaignRepositoryImpl) ReclaimStale(ctx context.Context, olderThan time.Time) (int64, error) {
	db := r.getDB(ctx)
	// Deliberate escape from the monotonic lifecycle: a processing row whose
	// owner died would otherwise never be scanned again.
	res := db.Model(&models.Campaign{}).
		Where("status = ? AND started_at IS NOT NULL AND started_at < ?", models.CampaignStatusProcessing, olderThan).
		Updates(map[string]any{
			"status":     models.CampaignStatusScheduled,
			"started_at": nil,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reclaim stale campaigns: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *CampaignRepositoryImpl) GetStatus(ctx context.Context, campaignID uint) (models.CampaignStatus, error) {
	db := r.getDB(ctx)
	var status models.CampaignStatus
	err := db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *CampaignRepositoryImpl) UpdateCounters(ctx context.Context, campaignID uint, sent, failed int) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"sent_count":   sent,
			"failed_count": failed,
			"updated_at":   utils.UTCNow(),
		}).Error
}

func (r *CampaignRepositoryImpl) Finish(ctx context.Context, campaignID uint, status models.CampaignStatus, errorMessage *string, completedAt time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ? AND status IN ?", campaignID, []models.CampaignStatus{
			models.CampaignStatusScheduled, models.CampaignStatusProcessing,
		}).
		Updates(map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"completed_at":  completedAt,
			"updated_at":    utils.UTCNow(),
		}).Error
}

func (r *CampaignRepositoryImpl) RequestCancel(ctx context.Context, campaignID uint, userID uint) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND user_id = ? AND status IN ?", campaignID, userID, []models.CampaignStatus{
			models.CampaignStatusDraft, models.CampaignStatusScheduled, models.CampaignStatusProcessing,
		}).
		Updates(map[string]any{
			"status":     models.CampaignStatusCancelled,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CampaignRepositoryImpl) SetCompletedAt(ctx context.Context, campaignID uint, completedAt time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Campaign{}).
		Where("id = ? AND completed_at IS NULL", campaignID).
		Updates(map[string]any{
			"completed_at": completedAt,
			"updated_at":   utils.UTCNow(),
		}).Error
}

func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("invalid campaign transition %s -> %s", from, to)
	}
	db := r.getDB(ctx)
	res := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.ScheduledBefore != nil {
		db = db.Where("scheduled_at <= ?", *f.ScheduledBefore)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
