package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

var (
	customer     = Viewer{ID: 1, Role: models.RoleCustomer}
	cleanerUser  = Viewer{ID: 2, Role: models.RoleCleaner}
	admin        = Viewer{ID: 3, Role: models.RoleAdmin}
	scheduledAt  = time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	cleanerPhoto = "https://cdn.example.com/park.jpg"
)

type fixture struct {
	svc    *Service
	repo   *memChatRepo
	broker *realtime.MemoryBroker
	now    time.Time

	reservationChat uint
	supportChat     uint
	futureChat      uint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	broker := realtime.NewMemoryBroker()
	repo := newMemChatRepo(broker)
	users := memUsers{
		1: {ID: 1, Name: "Kim", Type: models.RoleCustomer},
		2: {ID: 2, Name: "Park", Type: models.RoleCleaner, ProfilePhoto: &cleanerPhoto},
		3: {ID: 3, Name: "Ops", Type: models.RoleAdmin},
		4: {ID: 4, Name: "Choi", Type: models.RoleCustomer},
	}
	reservations := memReservations{
		10: {ID: 10, UserID: 1, CleanerID: uintPtr(2), ScheduledAt: scheduledAt},
		11: {ID: 11, UserID: 4, CleanerID: uintPtr(2), ScheduledAt: scheduledAt.Add(30 * 24 * time.Hour)},
	}
	f := &fixture{
		repo:   repo,
		broker: broker,
		now:    scheduledAt.Add(-24 * time.Hour),
	}
	f.svc = NewService(repo, users, reservations, broker)
	f.svc.now = func() time.Time { return f.now }

	ctx := context.Background()
	c1 := &models.Chat{CustomerID: uintPtr(1), CleanerID: uintPtr(2), ReservationID: uintPtr(10)}
	c2 := &models.Chat{CustomerID: uintPtr(1), IsAdminChat: true}
	c3 := &models.Chat{CustomerID: uintPtr(4), CleanerID: uintPtr(2), ReservationID: uintPtr(11)}
	for _, c := range []*models.Chat{c1, c2, c3} {
		require.NoError(t, repo.CreateChat(ctx, c))
	}
	f.reservationChat, f.supportChat, f.futureChat = c1.ID, c2.ID, c3.ID
	return f
}

func TestIsVisible_WindowEdges(t *testing.T) {
	chat := models.Chat{ReservationID: uintPtr(10)}
	at := scheduledAt

	assert.True(t, IsVisible(chat, &at, at.Add(-71*time.Hour)))
	assert.True(t, IsVisible(chat, &at, at.Add(47*time.Hour)))
	assert.True(t, IsVisible(chat, &at, at.Add(-72*time.Hour)))
	assert.True(t, IsVisible(chat, &at, at.Add(48*time.Hour)))
	assert.False(t, IsVisible(chat, &at, at.Add(-73*time.Hour)))
	assert.False(t, IsVisible(chat, &at, at.Add(49*time.Hour)))

	adminChat := models.Chat{IsAdminChat: true, ReservationID: uintPtr(10)}
	assert.True(t, IsVisible(adminChat, &at, at.Add(1000*time.Hour)))
	assert.True(t, IsVisible(models.Chat{}, nil, at))
}

func TestUnreadCount_IgnoresViewerMessages(t *testing.T) {
	for _, tc := range []struct{ n, m int }{{0, 0}, {3, 0}, {0, 4}, {2, 5}} {
		var msgs []models.ChatMessage
		for i := 0; i < tc.n; i++ {
			msgs = append(msgs, models.ChatMessage{SenderID: 2})
		}
		for i := 0; i < tc.m; i++ {
			msgs = append(msgs, models.ChatMessage{SenderID: 1})
		}
		assert.Equal(t, tc.n, UnreadCount(msgs, 1), "n=%d m=%d", tc.n, tc.m)
	}
}

func TestGetAllChats_CustomerView(t *testing.T) {
	f := newFixture(t)
	f.repo.seedMessage(f.reservationChat, 2, "On my way", false)
	f.repo.seedMessage(f.reservationChat, 2, "Arrived", false)
	f.repo.seedMessage(f.reservationChat, 1, "Thanks", false)

	threads, err := f.svc.GetAllChats(context.Background(), customer)

	require.NoError(t, err)
	require.Len(t, threads, 2)
	byID := map[uint]Thread{}
	for _, th := range threads {
		byID[th.ID] = th
	}
	res := byID[f.reservationChat]
	assert.Equal(t, "Park", res.OtherName)
	assert.Equal(t, &cleanerPhoto, res.OtherPhoto)
	assert.Equal(t, int64(2), res.UnreadCount)
	require.NotNil(t, res.LastMessage)
	assert.Equal(t, "Thanks", res.LastMessage.Message)
	assert.True(t, res.Visible)

	support := byID[f.supportChat]
	assert.Equal(t, SupportLabel, support.OtherName)
	assert.Nil(t, support.OtherUserID)

	assert.Equal(t, f.reservationChat, threads[0].ID, "most recent activity first")
}

func TestGetAllChats_HidesThreadsOutsideWindow(t *testing.T) {
	f := newFixture(t)

	threads, err := f.svc.GetAllChats(context.Background(), cleanerUser)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, f.reservationChat, threads[0].ID)

	f.now = scheduledAt.Add(49 * time.Hour)
	threads, err = f.svc.GetAllChats(context.Background(), cleanerUser)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestGetAllChats_AdminSeesAdminThreads(t *testing.T) {
	f := newFixture(t)

	threads, err := f.svc.GetAllChats(context.Background(), admin)

	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, f.supportChat, threads[0].ID)
	assert.Equal(t, "Kim", threads[0].OtherName)
}

func TestGetAllChats_RequiresViewer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetAllChats(context.Background(), Viewer{})
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sent, err := f.svc.SendMessage(ctx, customer, f.reservationChat, "   \n\t")
	require.NoError(t, err)
	assert.False(t, sent)

	_, err = f.svc.SendMessage(ctx, Viewer{}, f.reservationChat, "hello")
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))

	_, err = f.svc.SendMessage(ctx, Viewer{ID: 4, Role: models.RoleCustomer}, f.reservationChat, "hello")
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	sent, err = f.svc.SendMessage(ctx, customer, f.reservationChat, " Please bring gloves ")
	require.NoError(t, err)
	assert.True(t, sent)

	msgs, _ := f.repo.ListMessages(ctx, f.reservationChat, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Please bring gloves", msgs[0].Message)
	assert.Equal(t, uint(1), msgs[0].SenderID)
	assert.False(t, msgs[0].IsRead)

	f.repo.insertErr = errors.New("unique violation")
	_, err = f.svc.SendMessage(ctx, customer, f.reservationChat, "again")
	assert.True(t, apperrors.IsKind(err, apperrors.KindRemoteWrite))
}

func TestMarkMessageRead_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.repo.seedMessage(f.reservationChat, 2, "Hi", false)

	require.NoError(t, f.svc.MarkMessageRead(ctx, customer, m.ID))
	require.NoError(t, f.svc.MarkMessageRead(ctx, customer, m.ID))

	assert.True(t, f.repo.isRead(m.ID))
}

func TestMarkMessageRead_ConcurrentViewers(t *testing.T) {
	f := newFixture(t)
	m := f.repo.seedMessage(f.reservationChat, 2, "Hi", false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.repo.MarkMessageRead(context.Background(), m.ID, f.now))
		}()
	}
	wg.Wait()
	assert.True(t, f.repo.isRead(m.ID))
}

func TestOpenThread_MarksOthersMessagesReadInOneBatch(t *testing.T) {
	f := newFixture(t)
	theirs1 := f.repo.seedMessage(f.reservationChat, 2, "a", false)
	theirs2 := f.repo.seedMessage(f.reservationChat, 2, "b", false)
	mine := f.repo.seedMessage(f.reservationChat, 1, "c", false)

	msgs, err := f.svc.OpenThread(context.Background(), customer, f.reservationChat)

	require.NoError(t, err)
	assert.Len(t, msgs, 3)
	assert.Equal(t, 1, f.repo.markWrites)
	assert.True(t, f.repo.isRead(theirs1.ID))
	assert.True(t, f.repo.isRead(theirs2.ID))
	assert.False(t, f.repo.isRead(mine.ID))
}

func TestGetOrCreateSupportThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.svc.GetOrCreateSupportThread(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, f.supportChat, existing.ID)

	created, err := f.svc.GetOrCreateSupportThread(ctx, cleanerUser)
	require.NoError(t, err)
	assert.True(t, created.IsAdminChat)
	require.NotNil(t, created.CleanerID)
	assert.Equal(t, uint(2), *created.CleanerID)

	again, err := f.svc.GetOrCreateSupportThread(ctx, cleanerUser)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = f.svc.GetOrCreateSupportThread(ctx, admin)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestNormalize(t *testing.T) {
	e, err := realtime.NewEvent("chat_messages", realtime.EventInsert, models.ChatMessage{ID: 5, ChatID: 9})
	require.NoError(t, err)
	ch, ok := Normalize(e)
	require.True(t, ok)
	assert.Equal(t, MessageInserted, ch.Kind)
	assert.Equal(t, uint(9), ch.ThreadID)

	e.Type = realtime.EventUpdate
	ch, _ = Normalize(e)
	assert.Equal(t, MessageUpdated, ch.Kind)

	e, _ = realtime.NewEvent("chats", realtime.EventUpdate, models.Chat{ID: 9})
	ch, ok = Normalize(e)
	require.True(t, ok)
	assert.Equal(t, ThreadChanged, ch.Kind)

	e, _ = realtime.NewEvent("notifications", realtime.EventInsert, models.Notification{ID: 1})
	_, ok = Normalize(e)
	assert.False(t, ok)
}

// latest collects callback snapshots for assertions from the test goroutine.
type latest struct {
	mu    sync.Mutex
	calls int
	last  []Thread
}

func (l *latest) record(threads []Thread) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.last = threads
}

func (l *latest) get() (int, []Thread) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls, l.last
}

func unreadOf(threads []Thread, id uint) int64 {
	for _, th := range threads {
		if th.ID == id {
			return th.UnreadCount
		}
	}
	return -1
}

func TestSubscribeToChatUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var got latest

	unsubscribe, err := f.svc.SubscribeToChatUpdates(ctx, customer, got.record)
	require.NoError(t, err)

	calls, threads := got.get()
	assert.Equal(t, 1, calls)
	assert.Len(t, threads, 2)
	assert.Equal(t, 2, f.broker.SubscriberCount())

	_, err = f.svc.SendMessage(ctx, cleanerUser, f.reservationChat, "Running late")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		_, threads := got.get()
		return unreadOf(threads, f.reservationChat) == 1
	}, time.Second, 10*time.Millisecond)

	// A new support thread for someone else does not concern this viewer.
	callsBefore, _ := got.get()
	_, err = f.svc.GetOrCreateSupportThread(ctx, Viewer{ID: 4, Role: models.RoleCustomer})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	callsAfter, _ := got.get()
	assert.Equal(t, callsBefore, callsAfter)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, f.broker.SubscriberCount())

	_, err = f.svc.SendMessage(ctx, cleanerUser, f.reservationChat, "Here now")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	final, _ := got.get()
	assert.Equal(t, callsAfter, final)
}

type failingBroker struct{}

func (failingBroker) Subscribe(ctx context.Context, sub realtime.Subscription, h realtime.Handler) (realtime.Unsubscribe, error) {
	return nil, errors.New("channel closed")
}

func TestSubscribeToChatUpdates_SubscriptionError(t *testing.T) {
	f := newFixture(t)
	f.svc.broker = failingBroker{}

	_, err := f.svc.SubscribeToChatUpdates(context.Background(), customer, func([]Thread) {})

	assert.True(t, apperrors.IsKind(err, apperrors.KindSubscription))
}
