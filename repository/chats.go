package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

type GormChatRepository struct {
	base
}

func NewChatRepository(db *gorm.DB, publisher realtime.Publisher) *GormChatRepository {
	return &GormChatRepository{base{db: db, publisher: publisher}}
}

func (r *GormChatRepository) ListForParticipant(ctx context.Context, userID uint) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("customer_id = ? OR cleaner_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *GormChatRepository) ListAdminChats(ctx context.Context) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.WithContext(ctx).
		Where("is_admin_chat = ?", true).
		Order("updated_at DESC").
		Find(&chats).Error
	return chats, err
}

func (r *GormChatRepository) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.db.WithContext(ctx).First(&chat, id).Error; err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

func (r *GormChatRepository) FindSupportChat(ctx context.Context, userID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Where("is_admin_chat = ? AND (customer_id = ? OR cleaner_id = ?)", true, userID, userID).
		First(&chat).Error
	if err != nil {
		return nil, translate(err)
	}
	return &chat, nil
}

func (r *GormChatRepository) CreateChat(ctx context.Context, chat *models.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return err
	}
	r.publish(ctx, TableChats, realtime.EventInsert, chat)
	return nil
}

func (r *GormChatRepository) ListMessages(ctx context.Context, chatID uint, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	q := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		// Newest page, returned oldest first.
		q = r.db.WithContext(ctx).Table("(?) AS page",
			r.db.Model(&models.ChatMessage{}).
				Where("chat_id = ?", chatID).
				Order("created_at DESC, id DESC").
				Limit(limit),
		).Order("created_at ASC, id ASC")
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (r *GormChatRepository) LastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&messages).Error
	if err != nil || len(messages) == 0 {
		return nil, err
	}
	return &messages[0], nil
}

func (r *GormChatRepository) CountUnread(ctx context.Context, chatID, viewerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, viewerID, false).
		Count(&count).Error
	return count, err
}

func (r *GormChatRepository) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	r.publish(ctx, TableChatMessages, realtime.EventInsert, msg)
	return nil
}

func (r *GormChatRepository) MarkThreadRead(ctx context.Context, chatID, viewerID uint, at time.Time) ([]models.ChatMessage, error) {
	var updated []models.ChatMessage
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("chat_id = ? AND sender_id <> ? AND is_read = ?", chatID, viewerID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		}).Error
	if err != nil {
		return nil, err
	}
	for i := range updated {
		r.publish(ctx, TableChatMessages, realtime.EventUpdate, &updated[i])
	}
	return updated, nil
}

func (r *GormChatRepository) MarkMessageRead(ctx context.Context, messageID uint, at time.Time) error {
	var updated []models.ChatMessage
	err := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND is_read = ?", messageID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		}).Error
	if err != nil {
		return err
	}
	for i := range updated {
		r.publish(ctx, TableChatMessages, realtime.EventUpdate, &updated[i])
	}
	return nil
}

func (r *GormChatRepository) GetMessage(ctx context.Context, id uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}
