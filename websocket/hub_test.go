package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/chat"
	"cleaning-booking-server/models"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/realtime"
)

type fakeChats struct {
	mu           sync.Mutex
	subscribeErr error
	threads      []chat.Thread
	unsubscribed int
}

func (f *fakeChats) SubscribeToChatUpdates(ctx context.Context, v chat.Viewer, callback func([]chat.Thread)) (realtime.Unsubscribe, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	callback(f.threads)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed++
	}, nil
}

func (f *fakeChats) GetAllChats(ctx context.Context, v chat.Viewer) ([]chat.Thread, error) {
	return f.threads, nil
}

func (f *fakeChats) OpenConversation(ctx context.Context, v chat.Viewer, chatID uint, onChange func([]chat.Entry)) (*chat.ConversationSession, error) {
	return nil, apperrors.NotFound("chat", errors.New("no such chat"))
}

func (f *fakeChats) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type fakeNotifications struct {
	list notifications.List
}

func (f *fakeNotifications) Subscribe(ctx context.Context, userID uint, callback func(notifications.List)) (realtime.Unsubscribe, error) {
	return func() {}, nil
}

func (f *fakeNotifications) List(ctx context.Context, userID uint) (notifications.List, error) {
	return f.list, nil
}

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWebSocket(w, r, 7, models.RoleCustomer, AllowOrigins(nil))
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func startHub(t *testing.T, chats ChatService, notifs NotificationService) *Hub {
	t.Helper()
	hub := NewHub(chats, notifs)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestServeWebSocket_InitialSnapshots(t *testing.T) {
	chats := &fakeChats{threads: []chat.Thread{{ID: 3, OtherName: "Kim", Visible: true}}}
	notifs := &fakeNotifications{list: notifications.Partition(nil)}
	hub := startHub(t, chats, notifs)

	conn := dial(t, hub)

	first := readFrame(t, conn)
	assert.Equal(t, FrameChats, first["type"])
	assert.Nil(t, first["degraded"])
	assert.Len(t, first["data"], 1)

	second := readFrame(t, conn)
	assert.Equal(t, FrameNotifications, second["type"])

	assert.Eventually(t, func() bool { return hub.IsUserConnected(7) }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestServeWebSocket_DegradedChats(t *testing.T) {
	chats := &fakeChats{
		subscribeErr: apperrors.Subscription("realtime:chats", errors.New("redis down")),
		threads:      []chat.Thread{{ID: 3, Visible: true}},
	}
	hub := startHub(t, chats, &fakeNotifications{list: notifications.Partition(nil)})

	conn := dial(t, hub)

	frame := readFrame(t, conn)
	assert.Equal(t, FrameChats, frame["type"])
	assert.Equal(t, true, frame["degraded"])
}

func TestClientFrames(t *testing.T) {
	chats := &fakeChats{}
	hub := startHub(t, chats, &fakeNotifications{list: notifications.Partition(nil)})
	conn := dial(t, hub)
	readFrame(t, conn)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: FramePing}))
	assert.Equal(t, FramePong, readFrame(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(Message{Type: "dance"}))
	frame := readFrame(t, conn)
	assert.Equal(t, FrameError, frame["type"])
	assert.Equal(t, "unknown_type", frame["data"].(map[string]interface{})["error"])

	require.NoError(t, conn.WriteJSON(Message{Type: FrameOpenThread, ChatID: 99}))
	frame = readFrame(t, conn)
	assert.Equal(t, string(apperrors.KindNotFound), frame["data"].(map[string]interface{})["error"])

	require.NoError(t, conn.WriteJSON(Message{Type: FrameSend, ChatID: 99, Text: "hi"}))
	frame = readFrame(t, conn)
	assert.Equal(t, "no_open_thread", frame["data"].(map[string]interface{})["error"])

	conn.Close()
	assert.Eventually(t, func() bool { return chats.unsubscribeCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return !hub.IsUserConnected(7) }, time.Second, 10*time.Millisecond)
}

func TestAllowOrigins(t *testing.T) {
	check := AllowOrigins([]string{"https://app.example.com"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
