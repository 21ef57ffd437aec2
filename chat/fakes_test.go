package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
)

// memChatRepo is an in-memory ChatRepository that publishes the same
// events as the GORM one.
type memChatRepo struct {
	mu         sync.Mutex
	pub        realtime.Publisher
	chats      map[uint]*models.Chat
	messages   []*models.ChatMessage
	nextChat   uint
	nextMsg    uint
	clock      time.Time
	insertErr  error
	markWrites int
}

func newMemChatRepo(pub realtime.Publisher) *memChatRepo {
	return &memChatRepo{
		pub:   pub,
		chats: make(map[uint]*models.Chat),
		clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (r *memChatRepo) publish(table string, t realtime.EventType, row interface{}) {
	if r.pub == nil {
		return
	}
	e, err := realtime.NewEvent(table, t, row)
	if err != nil {
		panic(err)
	}
	_ = r.pub.Publish(context.Background(), e)
}

// tick returns a strictly increasing timestamp.
func (r *memChatRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memChatRepo) ListForParticipant(ctx context.Context, userID uint) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, c := range r.chats {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memChatRepo) ListAdminChats(ctx context.Context) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, c := range r.chats {
		if c.IsAdminChat {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memChatRepo) GetChat(ctx context.Context, id uint) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memChatRepo) FindSupportChat(ctx context.Context, userID uint) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		if c.IsAdminChat && c.HasParticipant(userID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memChatRepo) CreateChat(ctx context.Context, chat *models.Chat) error {
	r.mu.Lock()
	r.nextChat++
	chat.ID = r.nextChat
	chat.CreatedAt = r.tick()
	chat.UpdatedAt = chat.CreatedAt
	cp := *chat
	r.chats[chat.ID] = &cp
	r.mu.Unlock()
	r.publish(repository.TableChats, realtime.EventInsert, chat)
	return nil
}

func (r *memChatRepo) ListMessages(ctx context.Context, chatID uint, limit int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range r.messages {
		if m.ChatID == chatID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memChatRepo) LastMessage(ctx context.Context, chatID uint) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].ChatID == chatID {
			cp := *r.messages[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memChatRepo) CountUnread(ctx context.Context, chatID, viewerID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.ChatID == chatID && m.SenderID != viewerID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memChatRepo) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	r.mu.Lock()
	if r.insertErr != nil {
		r.mu.Unlock()
		return r.insertErr
	}
	r.nextMsg++
	msg.ID = r.nextMsg
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.tick()
	}
	cp := *msg
	r.messages = append(r.messages, &cp)
	r.mu.Unlock()
	r.publish(repository.TableChatMessages, realtime.EventInsert, msg)
	return nil
}

func (r *memChatRepo) MarkThreadRead(ctx context.Context, chatID, viewerID uint, at time.Time) ([]models.ChatMessage, error) {
	r.mu.Lock()
	r.markWrites++
	var updated []models.ChatMessage
	for _, m := range r.messages {
		if m.ChatID == chatID && m.SenderID != viewerID && !m.IsRead {
			m.IsRead = true
			t := at
			m.ReadAt = &t
			updated = append(updated, *m)
		}
	}
	r.mu.Unlock()
	for i := range updated {
		r.publish(repository.TableChatMessages, realtime.EventUpdate, &updated[i])
	}
	return updated, nil
}

func (r *memChatRepo) MarkMessageRead(ctx context.Context, messageID uint, at time.Time) error {
	r.mu.Lock()
	r.markWrites++
	var updated *models.ChatMessage
	for _, m := range r.messages {
		if m.ID == messageID && !m.IsRead {
			m.IsRead = true
			t := at
			m.ReadAt = &t
			cp := *m
			updated = &cp
		}
	}
	r.mu.Unlock()
	if updated != nil {
		r.publish(repository.TableChatMessages, realtime.EventUpdate, updated)
	}
	return nil
}

func (r *memChatRepo) GetMessage(ctx context.Context, id uint) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// seedMessage stores a message without publishing.
func (r *memChatRepo) seedMessage(chatID, senderID uint, text string, read bool) *models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextMsg++
	m := &models.ChatMessage{ID: r.nextMsg, ChatID: chatID, SenderID: senderID, Message: text, IsRead: read, CreatedAt: r.tick()}
	r.messages = append(r.messages, m)
	cp := *m
	return &cp
}

func (r *memChatRepo) isRead(id uint) bool {
	m, _ := r.GetMessage(context.Background(), id)
	return m != nil && m.IsRead
}

type memUsers map[uint]*models.User

func (u memUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, repository.ErrNotFound
}

type memReservations map[uint]*models.Reservation

func (m memReservations) GetByID(ctx context.Context, id uint) (*models.Reservation, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func uintPtr(v uint) *uint { return &v }
