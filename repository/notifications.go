package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

type GormNotificationRepository struct {
	base
}

func NewNotificationRepository(db *gorm.DB, publisher realtime.Publisher) *GormNotificationRepository {
	return &GormNotificationRepository{base{db: db, publisher: publisher}}
}

func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&notifications).Error
	return notifications, err
}

func (r *GormNotificationRepository) Get(ctx context.Context, id, userID uint) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&notification).Error
	if err != nil {
		return nil, translate(err)
	}
	return &notification, nil
}

func (r *GormNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return err
	}
	r.publish(ctx, TableNotifications, realtime.EventInsert, notification)
	return nil
}

func (r *GormNotificationRepository) MarkRead(ctx context.Context, id, userID uint, at time.Time) (bool, error) {
	var updated []models.Notification
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, models.NotificationUnread).
		Updates(map[string]interface{}{
			"status":  models.NotificationRead,
			"read_at": at,
		}).Error
	if err != nil {
		return false, err
	}
	for i := range updated {
		r.publish(ctx, TableNotifications, realtime.EventUpdate, &updated[i])
	}
	return len(updated) > 0, nil
}

func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	var updated []models.Notification
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Updates(map[string]interface{}{
			"status":  models.NotificationRead,
			"read_at": at,
		}).Error
	if err != nil {
		return 0, err
	}
	for i := range updated {
		r.publish(ctx, TableNotifications, realtime.EventUpdate, &updated[i])
	}
	return int64(len(updated)), nil
}

func (r *GormNotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Count(&count).Error
	return count, err
}
