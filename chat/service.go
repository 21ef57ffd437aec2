// Package chat serves chat threads between customers, cleaners and admin
// support: listing with visibility and unread counts, sending, read-state
// and live updates over the realtime broker.
package chat

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
)

// SupportLabel names the other side of an admin thread for non-admins.
const SupportLabel = "Customer Support"

const (
	enrichConcurrency = 8
	threadPageSize    = 200
)

type UserDirectory interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

type ReservationReader interface {
	GetByID(ctx context.Context, id uint) (*models.Reservation, error)
}

type Viewer struct {
	ID   uint
	Role models.UserRole
}

func (v Viewer) IsAdmin() bool { return v.Role == models.RoleAdmin }

// Thread is a chat as one viewer sees it.
type Thread struct {
	ID            uint                `json:"id"`
	ReservationID *uint               `json:"reservation_id"`
	IsAdminChat   bool                `json:"is_admin_chat"`
	OtherUserID   *uint               `json:"other_user_id"`
	OtherName     string              `json:"other_name"`
	OtherPhoto    *string             `json:"other_photo"`
	LastMessage   *models.ChatMessage `json:"last_message"`
	UnreadCount   int64               `json:"unread_count"`
	ScheduledAt   *time.Time          `json:"scheduled_at,omitempty"`
	Visible       bool                `json:"visible"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// lastActivity orders threads in the inbox.
func (t Thread) lastActivity() time.Time {
	if t.LastMessage != nil && t.LastMessage.CreatedAt.After(t.UpdatedAt) {
		return t.LastMessage.CreatedAt
	}
	return t.UpdatedAt
}

// OutgoingMessage is a message about to be sent. Nonce lets the sender
// match the echo to its optimistic copy.
type OutgoingMessage struct {
	Text          string
	Nonce         string
	AttachmentURL string
}

type Service struct {
	chats        repository.ChatRepository
	users        UserDirectory
	reservations ReservationReader
	broker       realtime.Subscriber
	now          func() time.Time
}

func NewService(chats repository.ChatRepository, users UserDirectory, reservations ReservationReader, broker realtime.Subscriber) *Service {
	return &Service{
		chats:        chats,
		users:        users,
		reservations: reservations,
		broker:       broker,
		now:          time.Now,
	}
}

func requireViewer(v Viewer) error {
	if v.ID == 0 {
		return apperrors.Auth("sign in to use chat")
	}
	return nil
}

func canAccess(v Viewer, c *models.Chat) bool {
	if c.HasParticipant(v.ID) {
		return true
	}
	return v.IsAdmin() && c.IsAdminChat
}

func (s *Service) loadChat(ctx context.Context, v Viewer, chatID uint) (*models.Chat, error) {
	c, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("chat", err)
		}
		return nil, apperrors.RemoteRead("get chat", err)
	}
	if !canAccess(v, c) {
		return nil, apperrors.Forbidden("not a participant of this chat")
	}
	return c, nil
}

// GetAllChats lists the viewer's visible threads, most recent first.
// Admins see every admin thread; everyone else sees threads they take
// part in.
func (s *Service) GetAllChats(ctx context.Context, v Viewer) ([]Thread, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	var (
		chats []models.Chat
		err   error
	)
	if v.IsAdmin() {
		chats, err = s.chats.ListAdminChats(ctx)
	} else {
		chats, err = s.chats.ListForParticipant(ctx, v.ID)
	}
	if err != nil {
		return nil, apperrors.RemoteRead("list chats", err)
	}

	threads := make([]Thread, len(chats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i := range chats {
		i := i
		g.Go(func() error {
			t, err := s.enrich(gctx, v, chats[i])
			if err != nil {
				return err
			}
			threads[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	visible := threads[:0]
	for _, t := range threads {
		if t.Visible {
			visible = append(visible, t)
		}
	}
	sortThreads(visible)
	return visible, nil
}

// GetThread returns one thread as the viewer sees it, visible or not.
func (s *Service) GetThread(ctx context.Context, v Viewer, chatID uint) (*Thread, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	c, err := s.loadChat(ctx, v, chatID)
	if err != nil {
		return nil, err
	}
	t, err := s.enrich(ctx, v, *c)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func sortThreads(threads []Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].lastActivity().After(threads[j].lastActivity())
	})
}

func (s *Service) enrich(ctx context.Context, v Viewer, c models.Chat) (Thread, error) {
	t := Thread{
		ID:            c.ID,
		ReservationID: c.ReservationID,
		IsAdminChat:   c.IsAdminChat,
		UpdatedAt:     c.UpdatedAt,
	}

	switch {
	case c.IsAdminChat && !v.IsAdmin():
		t.OtherName = SupportLabel
	default:
		t.OtherUserID = c.OtherParticipant(v.ID)
		if t.OtherUserID != nil {
			u, err := s.users.GetByID(ctx, *t.OtherUserID)
			switch {
			case err == nil:
				t.OtherName = u.Name
				t.OtherPhoto = u.ProfilePhoto
			case errors.Is(err, repository.ErrNotFound):
				log.Printf("⚠️ Chat %d references missing user %d", c.ID, *t.OtherUserID)
			default:
				return t, apperrors.RemoteRead("get chat participant", err)
			}
		}
	}

	last, err := s.chats.LastMessage(ctx, c.ID)
	if err != nil {
		return t, apperrors.RemoteRead("get last message", err)
	}
	t.LastMessage = last

	unread, err := s.chats.CountUnread(ctx, c.ID, v.ID)
	if err != nil {
		return t, apperrors.RemoteRead("count unread messages", err)
	}
	t.UnreadCount = unread

	if c.ReservationID != nil && !c.IsAdminChat {
		r, err := s.reservations.GetByID(ctx, *c.ReservationID)
		switch {
		case err == nil:
			at := r.ScheduledAt
			t.ScheduledAt = &at
		case errors.Is(err, repository.ErrNotFound):
		default:
			return t, apperrors.RemoteRead("get chat reservation", err)
		}
	}
	t.Visible = IsVisible(c, t.ScheduledAt, s.now())
	return t, nil
}

// SendMessage appends text to the thread as the viewer. Blank text is a
// no-op that returns false. The new row is not returned to the caller's
// view; it arrives through the subscription like everyone else's.
func (s *Service) SendMessage(ctx context.Context, v Viewer, chatID uint, text string) (bool, error) {
	msg, err := s.Send(ctx, v, chatID, OutgoingMessage{Text: text})
	return msg != nil, err
}

// Send stores an outgoing message and returns the inserted row, or nil
// when there is nothing to send.
func (s *Service) Send(ctx context.Context, v Viewer, chatID uint, out OutgoingMessage) (*models.ChatMessage, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	if blank(out) {
		return nil, nil
	}
	text := trimmed(out.Text)
	if _, err := s.loadChat(ctx, v, chatID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ChatID:      chatID,
		SenderID:    v.ID,
		Message:     text,
		MessageType: models.MessageTypeText,
		ClientNonce: out.Nonce,
		IsRead:      false,
	}
	if out.AttachmentURL != "" {
		msg.MessageType = models.MessageTypeImage
		msg.AttachmentURL = out.AttachmentURL
	}
	if err := s.chats.InsertMessage(ctx, msg); err != nil {
		log.Printf("❌ Failed to send message in chat %d: %v", chatID, err)
		return nil, apperrors.RemoteWrite("send message", err)
	}
	log.Printf("💬 Message %d sent in chat %d by user %d", msg.ID, chatID, v.ID)
	return msg, nil
}

func trimmed(s string) string { return strings.TrimSpace(s) }

func blank(out OutgoingMessage) bool {
	return trimmed(out.Text) == "" && out.AttachmentURL == ""
}

// OpenThread marks every message the viewer did not write as read in one
// batch and returns the thread's messages.
func (s *Service) OpenThread(ctx context.Context, v Viewer, chatID uint) ([]models.ChatMessage, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	if _, err := s.loadChat(ctx, v, chatID); err != nil {
		return nil, err
	}
	if _, err := s.chats.MarkThreadRead(ctx, chatID, v.ID, s.now()); err != nil {
		return nil, apperrors.RemoteWrite("mark thread read", err)
	}
	messages, err := s.chats.ListMessages(ctx, chatID, threadPageSize)
	if err != nil {
		return nil, apperrors.RemoteRead("list messages", err)
	}
	return messages, nil
}

// MarkMessageRead marks one message read for its recipient. Repeating it,
// or calling it on the viewer's own message, changes nothing.
func (s *Service) MarkMessageRead(ctx context.Context, v Viewer, messageID uint) error {
	if err := requireViewer(v); err != nil {
		return err
	}
	msg, err := s.chats.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("message", err)
		}
		return apperrors.RemoteRead("get message", err)
	}
	if _, err := s.loadChat(ctx, v, msg.ChatID); err != nil {
		return err
	}
	if msg.SenderID == v.ID || msg.IsRead {
		return nil
	}
	if err := s.chats.MarkMessageRead(ctx, messageID, s.now()); err != nil {
		return apperrors.RemoteWrite("mark message read", err)
	}
	return nil
}

// GetOrCreateSupportThread returns the viewer's admin support thread,
// creating it on first request.
func (s *Service) GetOrCreateSupportThread(ctx context.Context, v Viewer) (*models.Chat, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	if v.IsAdmin() {
		return nil, apperrors.Forbidden("admins answer support threads")
	}
	c, err := s.chats.FindSupportChat(ctx, v.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.RemoteRead("find support chat", err)
	}

	id := v.ID
	c = &models.Chat{IsAdminChat: true}
	if v.Role == models.RoleCleaner {
		c.CleanerID = &id
	} else {
		c.CustomerID = &id
	}
	if err := s.chats.CreateChat(ctx, c); err != nil {
		return nil, apperrors.RemoteWrite("create support chat", err)
	}
	log.Printf("✅ Support chat %d opened for user %d", c.ID, v.ID)
	return c, nil
}

// OpenReservationThread returns the chat for a reservation's customer and
// cleaner, creating it on first contact.
func (s *Service) OpenReservationThread(ctx context.Context, v Viewer, reservationID uint) (*models.Chat, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	r, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("reservation", err)
		}
		return nil, apperrors.RemoteRead("get reservation", err)
	}
	if r.CleanerID == nil {
		return nil, apperrors.Validation("", "cleaner_id")
	}
	if r.UserID != v.ID && *r.CleanerID != v.ID {
		return nil, apperrors.Forbidden("not a party to this reservation")
	}

	chats, err := s.chats.ListForParticipant(ctx, r.UserID)
	if err != nil {
		return nil, apperrors.RemoteRead("list chats", err)
	}
	for i := range chats {
		c := chats[i]
		if c.ReservationID != nil && *c.ReservationID == reservationID && !c.IsAdminChat {
			return &c, nil
		}
	}

	customerID, cleanerID, resID := r.UserID, *r.CleanerID, r.ID
	c := &models.Chat{CustomerID: &customerID, CleanerID: &cleanerID, ReservationID: &resID}
	if err := s.chats.CreateChat(ctx, c); err != nil {
		return nil, apperrors.RemoteWrite("create chat", err)
	}
	return c, nil
}

// Messages returns a thread's latest messages without changing read state.
func (s *Service) Messages(ctx context.Context, v Viewer, chatID uint) ([]models.ChatMessage, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	if _, err := s.loadChat(ctx, v, chatID); err != nil {
		return nil, err
	}
	messages, err := s.chats.ListMessages(ctx, chatID, threadPageSize)
	if err != nil {
		return nil, apperrors.RemoteRead("list messages", err)
	}
	return messages, nil
}
