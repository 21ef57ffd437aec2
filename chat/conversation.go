package chat

import (
	"sort"
	"sync"
	"time"

	"cleaning-booking-server/models"
)

// DedupeWindow is how far apart an optimistic message and its echo may be
// timestamped and still be treated as the same message.
const DedupeWindow = time.Second

// Entry is a rendered message. Pending entries are local copies that have
// not come back from the database yet.
type Entry struct {
	models.ChatMessage
	Pending bool `json:"pending"`
}

// Conversation is the message list of one open thread. It merges rows
// from the database with the viewer's optimistic sends so each message is
// listed once.
type Conversation struct {
	mu       sync.Mutex
	chatID   uint
	viewerID uint
	entries  []Entry
}

func NewConversation(chatID, viewerID uint, initial []models.ChatMessage) *Conversation {
	c := &Conversation{chatID: chatID, viewerID: viewerID}
	for _, m := range initial {
		c.apply(m)
	}
	return c
}

// AddOptimistic appends a pending copy of a message the viewer is sending.
func (c *Conversation) AddOptimistic(text, nonce, attachmentURL string, at time.Time) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := Entry{
		ChatMessage: models.ChatMessage{
			ChatID:        c.chatID,
			SenderID:      c.viewerID,
			Message:       text,
			MessageType:   models.MessageTypeText,
			AttachmentURL: attachmentURL,
			ClientNonce:   nonce,
			CreatedAt:     at,
		},
		Pending: true,
	}
	if attachmentURL != "" {
		e.MessageType = models.MessageTypeImage
	}
	c.entries = append(c.entries, e)
	return e
}

// Drop removes a pending message whose send failed.
func (c *Conversation) Drop(nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.Pending && e.ClientNonce == nonce {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Apply merges a stored message and reports whether the list changed.
func (c *Conversation) Apply(m models.ChatMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.apply(m)
}

func (c *Conversation) apply(m models.ChatMessage) bool {
	if m.ChatID != c.chatID {
		return false
	}
	if i := c.match(m); i >= 0 {
		old := c.entries[i]
		if !old.Pending && old.IsRead == m.IsRead && old.Message == m.Message {
			return false
		}
		c.entries[i] = Entry{ChatMessage: m}
		c.sort()
		return true
	}
	c.entries = append(c.entries, Entry{ChatMessage: m})
	c.sort()
	return true
}

// match finds the entry m duplicates: the same id, the same client nonce,
// or a pending copy with the same sender and body sent within
// DedupeWindow.
func (c *Conversation) match(m models.ChatMessage) int {
	for i, e := range c.entries {
		if m.ID != 0 && e.ID == m.ID {
			return i
		}
	}
	for i, e := range c.entries {
		if !e.Pending {
			continue
		}
		if m.ClientNonce != "" && e.ClientNonce == m.ClientNonce {
			return i
		}
		if e.SenderID == m.SenderID && e.Message == m.Message && within(e.CreatedAt, m.CreatedAt, DedupeWindow) {
			return i
		}
	}
	return -1
}

func within(a, b time.Time, d time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= d
}

func (c *Conversation) sort() {
	sort.SliceStable(c.entries, func(i, j int) bool {
		return c.entries[i].CreatedAt.Before(c.entries[j].CreatedAt)
	})
}

// Messages returns a copy of the list, oldest first.
func (c *Conversation) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Conversation) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.Pending && e.SenderID != c.viewerID && !e.IsRead {
			n++
		}
	}
	return n
}
