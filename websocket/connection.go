package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/chat"
	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

var ErrClientBufferFull = errors.New("client send buffer is full")

// Client is one websocket connection of a signed-in user.
type Client struct {
	Hub    *Hub
	UserID uint
	Role   models.UserRole
	Conn   *websocket.Conn
	Send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	unsubs       []realtime.Unsubscribe
	conversation *chat.ConversationSession
}

func newUpgrader(checkOrigin func(*http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// AllowOrigins accepts requests without an Origin header and those whose
// origin is listed. An empty list accepts everything.
func AllowOrigins(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == origin {
				return true
			}
		}
		return false
	}
}

// ServeWebSocket upgrades the request and starts streaming to the user.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, userID uint, role models.UserRole, checkOrigin func(*http.Request) bool) {
	upgrader := newUpgrader(checkOrigin)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		Hub:    h,
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	select {
	case h.Register <- client:
	case <-h.stop:
		conn.Close()
		cancel()
		return
	}

	go client.writePump()
	h.start(client)
	go client.readPump()
}

func (c *Client) viewer() chat.Viewer {
	return chat.Viewer{ID: c.UserID, Role: c.Role}
}

func (c *Client) readPump() {
	defer func() {
		c.release()
		select {
		case c.Hub.Unregister <- c:
		case <-c.Hub.stop:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageBytes, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket read error: %v", err)
			}
			return
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.pushErrorText("invalid_frame", "frame is not valid JSON")
			continue
		}

		handler, exists := c.Hub.MessageHandlers[message.Type]
		if !exists {
			c.pushErrorText("unknown_type", "unknown frame type "+message.Type)
			continue
		}
		if err := handler(c, &message); err != nil {
			log.Printf("⚠️ %s frame from user %d failed: %v", message.Type, c.UserID, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per JSON document; clients parse each message whole.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues m without blocking.
func (c *Client) SendMessage(m *Message) error {
	data, err := encode(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrClientBufferFull
	}
}

func (c *Client) push(m *Message) {
	if err := c.SendMessage(m); err != nil {
		log.Printf("⚠️ Dropped %s frame for user %d: %v", m.Type, c.UserID, err)
	}
}

func (c *Client) pushErrorText(code, message string) {
	c.push(&Message{Type: FrameError, Data: map[string]interface{}{"error": code, "message": message}})
}

func (c *Client) pushError(err error) {
	data := map[string]interface{}{"error": "INTERNAL", "message": "something went wrong"}
	if appErr, ok := apperrors.As(err); ok {
		data["error"] = string(appErr.Kind)
		data["message"] = appErr.Message
		if len(appErr.Fields) > 0 {
			data["fields"] = appErr.Fields
		}
	}
	c.push(&Message{Type: FrameError, Data: data})
}

func (c *Client) track(unsub realtime.Unsubscribe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		unsub()
		return
	}
	c.unsubs = append(c.unsubs, unsub)
}

func (c *Client) setConversation(cs *chat.ConversationSession) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cs.Close()
		return
	}
	c.conversation = cs
	c.mu.Unlock()
}

func (c *Client) currentConversation() *chat.ConversationSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversation
}

func (c *Client) closeConversation() {
	c.mu.Lock()
	cs := c.conversation
	c.conversation = nil
	c.mu.Unlock()
	if cs != nil {
		cs.Close()
	}
}

// release drops every subscription of the connection. Safe to call more
// than once.
func (c *Client) release() {
	c.closeConversation()
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
	c.cancel()
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
