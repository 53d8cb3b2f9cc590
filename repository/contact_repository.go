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

// ContactRepositoryImpl implements ContactRepository
type ContactRepositoryImpl struct {
	*BaseRepository[models.Contact, models.ContactFilter]
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &ContactRepositoryImpl{BaseRepository: NewBaseRepository[models.Contact, models.ContactFilter](db)}
}

func (r *ContactRepositoryImpl) ByIdentity(ctx context.Context, userID uint, channel models.Channel, identifier string) (*models.Contact, error) {
	db := r.getDB(ctx)
	var row models.Contact
	err := db.Where("user_id = ? AND channel = ? AND identifier = ?", userID, channel, identifier).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpsertTouch creates the contact on first sight and refreshes it on every
// later event. ON CONFLICT keeps the operation idempotent under provider
// retries: GREATEST() stops the interaction timestamp from moving backward
// and COALESCE(excluded..., contacts...) keeps existing names when the hint
// brings none.
func (r *ContactRepositoryImpl) UpsertTouch(ctx context.Context, hint models.ContactUpsert) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
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

	interactedAt := utils.TimeToUTC(hint.InteractedAt)
	row := models.Contact{
		UserID:            hint.UserID,
		Channel:           hint.Channel,
		Identifier:        hint.Identifier,
		DisplayName:       hint.DisplayName,
		PushName:          hint.PushName,
		IsBusiness:        hint.IsBusiness,
		IsGroup:           hint.IsGroup,
		LastInteractionAt: &interactedAt,
	}

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "channel"}, {Name: "identifier"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"display_name":        gorm.Expr("COALESCE(excluded.display_name, contacts.display_name)"),
			"push_name":           gorm.Expr("COALESCE(excluded.push_name, contacts.push_name)"),
			"last_interaction_at": gorm.Expr("GREATEST(COALESCE(contacts.last_interaction_at, excluded.last_interaction_at), excluded.last_interaction_at)"),
			"updated_at":          utils.UTCNow(),
		}),
	}).Create(&row).Error
	if err != nil {
		err = fmt.Errorf("failed to upsert contact: %w", err)
		return err
	}
	return nil
}

func (r *ContactRepositoryImpl) applyFilter(db *gorm.DB, f models.ContactFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.Channel != nil {
		db = db.Where("channel = ?", *f.Channel)
	}
	if f.Identifier != nil {
		db = db.Where("identifier = ?", *f.Identifier)
	}
	if f.IsGroup != nil {
		db = db.Where("is_group = ?", *f.IsGroup)
	}
	if f.Tag != nil {
		db = db.Where("? = ANY(tags)", *f.Tag)
	}
	return db
}

func (r *ContactRepositoryImpl) ByFilter(ctx context.Context, filter models.ContactFilter, orderBy string, limit, offset int) ([]*models.Contact, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Contact
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ContactRepositoryImpl) Count(ctx context.Context, filter models.ContactFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Contact{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
