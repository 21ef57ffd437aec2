// Package repository is the table access layer. Every committed write is
// followed by a realtime event so subscribers can re-derive their views.
package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

var ErrNotFound = errors.New("record not found")

const (
	TableReservations  = "reservations"
	TableChats         = "chats"
	TableChatMessages  = "chat_messages"
	TableNotifications = "notifications"
	TableUsers         = "users"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
	// ListForParticipant returns reservations the user booked or is
	// assigned to clean.
	ListForParticipant(ctx context.Context, userID uint) ([]models.Reservation, error)
	Cancel(ctx context.Context, id uint, reason string) (*models.Reservation, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	// ListActiveCleaners returns approved, active cleaners whose rank is in
	// tier, with Rank loaded.
	ListActiveCleaners(ctx context.Context, tier models.RankTier) ([]models.User, error)
	ListByType(ctx context.Context, role models.UserRole) ([]models.User, error)
	UpdatePartnerStatus(ctx context.Context, id uint, status models.PartnerStatus) (*models.User, error)
}

type ChatRepository interface {
	ListForParticipant(ctx context.Context, userID uint) ([]models.Chat, error)
	ListAdminChats(ctx context.Context) ([]models.Chat, error)
	GetChat(ctx context.Context, id uint) (*models.Chat, error)
	FindSupportChat(ctx context.Context, userID uint) (*models.Chat, error)
	CreateChat(ctx context.Context, chat *models.Chat) error

	ListMessages(ctx context.Context, chatID uint, limit int) ([]models.ChatMessage, error)
	// LastMessage returns nil without error for an empty thread.
	LastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error)
	CountUnread(ctx context.Context, chatID, viewerID uint) (int64, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	// MarkThreadRead marks every unread message not sent by viewerID as read
	// in one update and returns the rows it changed.
	MarkThreadRead(ctx context.Context, chatID, viewerID uint, at time.Time) ([]models.ChatMessage, error)
	// MarkMessageRead is idempotent: an already-read message is left alone.
	MarkMessageRead(ctx context.Context, messageID uint, at time.Time) error
	GetMessage(ctx context.Context, id uint) (*models.ChatMessage, error)
}

type NotificationRepository interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	Get(ctx context.Context, id, userID uint) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	// MarkRead flips an unread notification to read and reports whether a
	// row changed.
	MarkRead(ctx context.Context, id, userID uint, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
}

type base struct {
	db        *gorm.DB
	publisher realtime.Publisher
}

// publish announces a committed write. A failed publish is logged only:
// the row is stored and subscribers catch up on the next event.
func (b base) publish(ctx context.Context, table string, eventType realtime.EventType, row interface{}) {
	if b.publisher == nil {
		return
	}
	event, err := realtime.NewEvent(table, eventType, row)
	if err != nil {
		log.Printf("❌ %v", err)
		return
	}
	if err := b.publisher.Publish(ctx, event); err != nil {
		log.Printf("⚠️ Realtime publish on %s failed: %v", table, err)
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
