// Package notifications serves a user's notification list and its
// read-state, and creates system, reminder and cancellation notices.
package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
)

const listLimit = 100

// List is a user's notifications partitioned for the all/unread/read tabs.
// Every partition is newest first.
type List struct {
	All    []models.Notification `json:"all"`
	Unread []models.Notification `json:"unread"`
	Read   []models.Notification `json:"read"`
}

// Partition splits notifications by status, keeping their order.
func Partition(all []models.Notification) List {
	l := List{
		All:    all,
		Unread: []models.Notification{},
		Read:   []models.Notification{},
	}
	if l.All == nil {
		l.All = []models.Notification{}
	}
	for _, n := range all {
		if n.IsUnread() {
			l.Unread = append(l.Unread, n)
		} else {
			l.Read = append(l.Read, n)
		}
	}
	return l
}

// NewNotification describes a notification to create.
type NewNotification struct {
	UserID    uint
	Title     string
	Message   string
	Type      models.NotificationType
	ActionURL string
	Data      map[string]interface{}
}

type Service struct {
	repo   repository.NotificationRepository
	broker realtime.Subscriber
	now    func() time.Time
}

func NewService(repo repository.NotificationRepository, broker realtime.Subscriber) *Service {
	return &Service{repo: repo, broker: broker, now: time.Now}
}

func requireUser(userID uint) error {
	if userID == 0 {
		return apperrors.Auth("sign in to see notifications")
	}
	return nil
}

// List fetches the user's own notifications.
func (s *Service) List(ctx context.Context, userID uint) (List, error) {
	if err := requireUser(userID); err != nil {
		return List{}, err
	}
	all, err := s.repo.ListByUser(ctx, userID, listLimit)
	if err != nil {
		return List{}, apperrors.RemoteRead("list notifications", err)
	}
	return Partition(all), nil
}

// Select opens a notification. An unread one is marked read first, with
// exactly one write; a read one is opened without writing. onOpen receives
// the notification as it now stands.
func (s *Service) Select(ctx context.Context, userID, notificationID uint, onOpen func(models.Notification)) (*models.Notification, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	n, err := s.repo.Get(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("notification", err)
		}
		return nil, apperrors.RemoteRead("get notification", err)
	}

	if n.IsUnread() {
		at := s.now()
		if _, err := s.repo.MarkRead(ctx, n.ID, userID, at); err != nil {
			return nil, apperrors.RemoteWrite("mark notification read", err)
		}
		n.Status = models.NotificationRead
		n.ReadAt = &at
	}
	if onOpen != nil {
		onOpen(*n)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperrors.RemoteWrite("mark notifications read", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.RemoteRead("count notifications", err)
	}
	return n, nil
}

// Create stores a notification for one user.
func (s *Service) Create(ctx context.Context, in NewNotification) (*models.Notification, error) {
	if in.UserID == 0 || in.Title == "" || in.Message == "" {
		return nil, apperrors.Validation("", "user_id", "title", "message")
	}
	if in.Type == "" {
		in.Type = models.NotificationSystem
	}
	if !in.Type.IsValid() {
		return nil, apperrors.Validation("", "type")
	}

	n := &models.Notification{
		UserID:  in.UserID,
		Title:   in.Title,
		Message: in.Message,
		Type:    in.Type,
		Status:  models.NotificationUnread,
	}
	if in.ActionURL != "" {
		url := in.ActionURL
		n.ActionURL = &url
	}
	if len(in.Data) > 0 {
		raw, err := json.Marshal(in.Data)
		if err != nil {
			return nil, apperrors.Validation("", "data")
		}
		n.Data = datatypes.JSON(raw)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("❌ Failed to create %s notification for user %d: %v", in.Type, in.UserID, err)
		return nil, apperrors.RemoteWrite("create notification", err)
	}
	log.Printf("📱 %s notification %d created for user %d", in.Type, n.ID, in.UserID)
	return n, nil
}

// Broadcast creates the same notice for every user in userIDs and returns
// how many were stored. Failures are logged and skipped.
func (s *Service) Broadcast(ctx context.Context, userIDs []uint, title, message string) int {
	created := 0
	for _, id := range userIDs {
		if _, err := s.Create(ctx, NewNotification{UserID: id, Title: title, Message: message, Type: models.NotificationSystem}); err != nil {
			continue
		}
		created++
	}
	return created
}

// Subscribe mirrors the user's notifications table: on any insert or
// update it refetches the whole list and passes it to callback. The
// returned func is safe to call more than once.
func (s *Service) Subscribe(ctx context.Context, userID uint, callback func(List)) (realtime.Unsubscribe, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var (
		mu     sync.Mutex
		closed atomic.Bool
	)
	handler := func(realtime.Event) {
		if closed.Load() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		list, err := s.List(rctx, userID)
		if err != nil {
			log.Printf("⚠️ Notification refresh for user %d failed: %v", userID, err)
			return
		}
		if !closed.Load() {
			callback(list)
		}
	}

	sub := realtime.Subscription{
		Table:  repository.TableNotifications,
		Events: []realtime.EventType{realtime.EventInsert, realtime.EventUpdate},
		Filter: realtime.Eq("user_id", userID),
	}
	unsub, err := s.broker.Subscribe(ctx, sub, handler)
	if err != nil {
		cancel()
		log.Printf("⚠️ Notification subscription for user %d failed: %v", userID, err)
		return nil, apperrors.Subscription(sub.Channel(), err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			closed.Store(true)
			unsub()
			cancel()
		})
	}, nil
}
