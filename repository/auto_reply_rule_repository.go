package repository

import (
	"context"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"gorm.io/gorm"
)

// AutoReplyRuleRepositoryImpl implements AutoReplyRuleRepository
type AutoReplyRuleRepositoryImpl struct {
	*BaseRepository[models.AutoReplyRule, models.AutoReplyRuleFilter]
}

func NewAutoReplyRuleRepository(db *gorm.DB) AutoReplyRuleRepository {
	return &AutoReplyRuleRepositoryImpl{BaseRepository: NewBaseRepository[models.AutoReplyRule, models.AutoReplyRuleFilter](db)}
}

func (r *AutoReplyRuleRepositoryImpl) ListActive(ctx context.Context, userID uint, channel models.Channel) ([]*models.AutoReplyRule, error) {
	db := r.getDB(ctx)
	var rows []*models.AutoReplyRule
	err := db.Where("user_id = ? AND channel = ? AND is_active = ?", userID, channel, true).
		Order("priority DESC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// IncrementUsage counts a fire attempt. Runs as a single UPDATE so
// concurrent fires never lose increments.
func (r *AutoReplyRuleRepositoryImpl) IncrementUsage(ctx context.Context, ruleID uint) error {
	db := r.getDB(ctx)
	return db.Model(&models.AutoReplyRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  utils.UTCNow(),
		}).Error
}

func (r *AutoReplyRuleRepositoryImpl) SetActive(ctx context.Context, ruleID uint, userID uint, active bool) error {
	db := r.getDB(ctx)
	return db.Model(&models.AutoReplyRule{}).
		Where("id = ? AND user_id = ?", ruleID, userID).
		Updates(map[string]any{
			"is_active":  active,
			"updated_at": utils.UTCNow(),
		}).Error
}

func (r *AutoReplyRuleRepositoryImpl) applyFilter(db *gorm.DB, f models.AutoReplyRuleFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *AutoReplyRuleRepositoryImpl) ByFilter(ctx context.Context, filter models.AutoReplyRuleFilter, orderBy string, limit, offset int) ([]*models.AutoReplyRule, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AutoReplyRule{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.AutoReplyRule
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AutoReplyRuleRepositoryImpl) Count(ctx context.Context, filter models.AutoReplyRuleFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.AutoReplyRule{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
