package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

type GormUserRepository struct {
	base
}

func NewUserRepository(db *gorm.DB, publisher realtime.Publisher) *GormUserRepository {
	return &GormUserRepository{base{db: db, publisher: publisher}}
}

func (r *GormUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}
	r.publish(ctx, TableUsers, realtime.EventInsert, user)
	return nil
}

func (r *GormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Rank").First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormUserRepository) ListActiveCleaners(ctx context.Context, tier models.RankTier) ([]models.User, error) {
	var cleaners []models.User
	err := r.db.WithContext(ctx).
		Joins("Rank").
		Where("users.type = ? AND users.is_active = ? AND users.status = ?", models.RoleCleaner, true, models.PartnerApproved).
		Where(`"Rank"."tier" = ?`, tier).
		Order("users.id").
		Find(&cleaners).Error
	return cleaners, err
}

func (r *GormUserRepository) ListByType(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("type = ? AND is_active = ?", role, true).
		Find(&users).Error
	return users, err
}

func (r *GormUserRepository) UpdatePartnerStatus(ctx context.Context, id uint, status models.PartnerStatus) (*models.User, error) {
	var updated []models.User
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND type = ?", id, models.RoleCleaner).
		Updates(map[string]interface{}{
			"status":    status,
			"is_active": status == models.PartnerApproved,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if len(updated) == 0 {
		return nil, ErrNotFound
	}
	r.publish(ctx, TableUsers, realtime.EventUpdate, &updated[0])
	return &updated[0], nil
}
