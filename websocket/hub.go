package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"cleaning-booking-server/chat"
	"cleaning-booking-server/notifications"
	"cleaning-booking-server/realtime"
)

// Frame types sent to clients.
const (
	FrameChats         = "chats"
	FrameNotifications = "notifications"
	FrameConversation  = "conversation"
	FrameSent          = "sent"
	FramePong          = "pong"
	FrameError         = "error"
)

// Frame types accepted from clients.
const (
	FrameOpenThread  = "open_thread"
	FrameCloseThread = "close_thread"
	FrameSend        = "send"
	FramePing        = "ping"
)

// Message is one websocket frame in either direction.
type Message struct {
	Type          string      `json:"type"`
	ChatID        uint        `json:"chat_id,omitempty"`
	Text          string      `json:"text,omitempty"`
	AttachmentURL string      `json:"attachment_url,omitempty"`
	Degraded      bool        `json:"degraded,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// MessageHandler handles one client frame type.
type MessageHandler func(*Client, *Message) error

type ChatService interface {
	SubscribeToChatUpdates(ctx context.Context, v chat.Viewer, callback func([]chat.Thread)) (realtime.Unsubscribe, error)
	GetAllChats(ctx context.Context, v chat.Viewer) ([]chat.Thread, error)
	OpenConversation(ctx context.Context, v chat.Viewer, chatID uint, onChange func([]chat.Entry)) (*chat.ConversationSession, error)
}

type NotificationService interface {
	Subscribe(ctx context.Context, userID uint, callback func(notifications.List)) (realtime.Unsubscribe, error)
	List(ctx context.Context, userID uint) (notifications.List, error)
}

// Hub tracks every open connection per user. A user may be connected from
// several devices at once.
type Hub struct {
	Clients map[uint]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client

	MessageHandlers map[string]MessageHandler

	chats         ChatService
	notifications NotificationService

	stop chan struct{}
	mu   sync.RWMutex
}

func NewHub(chats ChatService, notifs NotificationService) *Hub {
	hub := &Hub{
		Clients:         make(map[uint]map[*Client]bool),
		Register:        make(chan *Client),
		Unregister:      make(chan *Client),
		MessageHandlers: make(map[string]MessageHandler),
		chats:           chats,
		notifications:   notifs,
		stop:            make(chan struct{}),
	}
	hub.registerDefaultHandlers()
	return hub
}

func (h *Hub) registerDefaultHandlers() {
	h.MessageHandlers[FrameOpenThread] = h.handleOpenThread
	h.MessageHandlers[FrameCloseThread] = h.handleCloseThread
	h.MessageHandlers[FrameSend] = h.handleSend
	h.MessageHandlers[FramePing] = h.handlePing
}

// Run processes registrations until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*Client]bool)
			}
			h.Clients[client.UserID][client] = true
			h.mu.Unlock()
			log.Printf("🔌 Client registered: user=%d role=%s", client.UserID, client.Role)

		case client := <-h.Unregister:
			h.mu.Lock()
			if conns, ok := h.Clients[client.UserID]; ok && conns[client] {
				delete(conns, client)
				if len(conns) == 0 {
					delete(h.Clients, client.UserID)
				}
			}
			h.mu.Unlock()
			client.closeSend()
			log.Printf("🔌 Client unregistered: user=%d", client.UserID)

		case <-h.stop:
			h.mu.Lock()
			for _, conns := range h.Clients {
				for client := range conns {
					client.release()
					client.closeSend()
				}
			}
			h.Clients = make(map[uint]map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.stop)
	log.Println("🛑 Websocket hub stopped")
}

func (h *Hub) IsUserConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[userID]) > 0
}

// ConnectionCount counts open sockets across all users.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.Clients {
		n += len(conns)
	}
	return n
}

// start subscribes the client to its chats and notifications. A stream
// whose subscription fails gets a single snapshot flagged degraded.
func (h *Hub) start(c *Client) {
	v := c.viewer()

	unsubChats, err := h.chats.SubscribeToChatUpdates(c.ctx, v, func(threads []chat.Thread) {
		c.push(&Message{Type: FrameChats, Data: threads})
	})
	if err != nil {
		log.Printf("⚠️ Live chats unavailable for user %d: %v", c.UserID, err)
		if threads, lerr := h.chats.GetAllChats(c.ctx, v); lerr == nil {
			c.push(&Message{Type: FrameChats, Data: threads, Degraded: true})
		} else {
			c.pushError(lerr)
		}
	} else {
		c.track(unsubChats)
	}

	unsubNotifs, err := h.notifications.Subscribe(c.ctx, c.UserID, func(list notifications.List) {
		c.push(&Message{Type: FrameNotifications, Data: list})
	})
	degraded := err != nil
	if degraded {
		log.Printf("⚠️ Live notifications unavailable for user %d: %v", c.UserID, err)
	} else {
		c.track(unsubNotifs)
	}
	list, err := h.notifications.List(c.ctx, c.UserID)
	if err != nil {
		c.pushError(err)
		return
	}
	c.push(&Message{Type: FrameNotifications, Data: list, Degraded: degraded})
}

func (h *Hub) handleOpenThread(c *Client, m *Message) error {
	if m.ChatID == 0 {
		c.pushErrorText("invalid_frame", "chat_id is required")
		return nil
	}
	c.closeConversation()

	chatID := m.ChatID
	cs, err := h.chats.OpenConversation(c.ctx, c.viewer(), chatID, func(entries []chat.Entry) {
		c.push(&Message{Type: FrameConversation, ChatID: chatID, Data: entries})
	})
	if err != nil {
		c.pushError(err)
		return err
	}
	c.setConversation(cs)
	c.push(&Message{Type: FrameConversation, ChatID: chatID, Data: cs.Messages(), Degraded: cs.Degraded()})
	log.Printf("💬 User %d opened chat %d", c.UserID, chatID)
	return nil
}

func (h *Hub) handleCloseThread(c *Client, m *Message) error {
	c.closeConversation()
	return nil
}

func (h *Hub) handleSend(c *Client, m *Message) error {
	cs := c.currentConversation()
	if cs == nil || (m.ChatID != 0 && m.ChatID != cs.ChatID()) {
		c.pushErrorText("no_open_thread", "open the thread before sending")
		return nil
	}
	sent, err := cs.Send(c.ctx, m.Text, m.AttachmentURL)
	if err != nil {
		c.pushError(err)
		return err
	}
	c.push(&Message{Type: FrameSent, ChatID: cs.ChatID(), Data: map[string]bool{"sent": sent}})
	return nil
}

func (h *Hub) handlePing(c *Client, m *Message) error {
	c.push(&Message{Type: FramePong})
	return nil
}

func encode(m *Message) ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}
