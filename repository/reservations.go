package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

type GormReservationRepository struct {
	base
}

func NewReservationRepository(db *gorm.DB, publisher realtime.Publisher) *GormReservationRepository {
	return &GormReservationRepository{base{db: db, publisher: publisher}}
}

func (r *GormReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return err
	}
	r.publish(ctx, TableReservations, realtime.EventInsert, reservation)
	return nil
}

func (r *GormReservationRepository) GetByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, translate(err)
	}
	return &reservation, nil
}

func (r *GormReservationRepository) ListForParticipant(ctx context.Context, userID uint) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ? OR cleaner_id = ?", userID, userID).
		Order("scheduled_at DESC").
		Find(&reservations).Error
	return reservations, err
}

func (r *GormReservationRepository) Cancel(ctx context.Context, id uint, reason string) (*models.Reservation, error) {
	var updated []models.Reservation
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND status <> ?", id, models.ReservationCancelled).
		Updates(map[string]interface{}{
			"status":              models.ReservationCancelled,
			"cancellation_reason": reason,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if len(updated) == 0 {
		return nil, ErrNotFound
	}
	r.publish(ctx, TableReservations, realtime.EventUpdate, &updated[0])
	return &updated[0], nil
}
