package chat

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
)

// ConversationSession is one viewer's open thread. While it is open, new
// messages from the other party are marked read as they arrive. After
// Close, late events and responses are ignored.
type ConversationSession struct {
	svc      *Service
	viewer   Viewer
	chatID   uint
	conv     *Conversation
	onChange func([]Entry)

	ctx      context.Context
	cancel   context.CancelFunc
	alive    atomic.Bool
	degraded bool
	mu       sync.Mutex // serialises onChange
	unsub    realtime.Unsubscribe
}

// OpenConversation marks the thread read, loads its messages and starts
// following it. A failed subscription leaves the session usable without
// live updates; Degraded reports that.
func (s *Service) OpenConversation(ctx context.Context, v Viewer, chatID uint, onChange func([]Entry)) (*ConversationSession, error) {
	messages, err := s.OpenThread(ctx, v, chatID)
	if err != nil {
		return nil, err
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cs := &ConversationSession{
		svc:      s,
		viewer:   v,
		chatID:   chatID,
		conv:     NewConversation(chatID, v.ID, messages),
		onChange: onChange,
		ctx:      sctx,
		cancel:   cancel,
	}
	cs.alive.Store(true)

	sub := realtime.Subscription{
		Table:  repository.TableChatMessages,
		Events: []realtime.EventType{realtime.EventInsert, realtime.EventUpdate},
		Filter: realtime.Eq("chat_id", chatID),
	}
	unsub, err := s.broker.Subscribe(ctx, sub, cs.handle)
	if err != nil {
		cs.degraded = true
		log.Printf("⚠️ %v", apperrors.Subscription(sub.Channel(), err))
	} else {
		cs.unsub = unsub
	}
	return cs, nil
}

func (cs *ConversationSession) ChatID() uint { return cs.chatID }

func (cs *ConversationSession) Degraded() bool { return cs.degraded }

func (cs *ConversationSession) Messages() []Entry { return cs.conv.Messages() }

func (cs *ConversationSession) handle(e realtime.Event) {
	if !cs.alive.Load() {
		return
	}
	ch, ok := Normalize(e)
	if !ok || ch.Message == nil {
		return
	}
	msg := *ch.Message
	if ch.Kind == MessageInserted && msg.SenderID != cs.viewer.ID && !msg.IsRead {
		if err := cs.svc.chats.MarkMessageRead(cs.ctx, msg.ID, cs.svc.now()); err != nil {
			log.Printf("⚠️ Failed to mark message %d read: %v", msg.ID, err)
		}
	}
	if cs.conv.Apply(msg) {
		cs.emit()
	}
}

func (cs *ConversationSession) emit() {
	if cs.onChange == nil || !cs.alive.Load() {
		return
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.onChange(cs.conv.Messages())
}

// Send shows the message at once as pending and stores it. The stored row
// replaces the pending copy when its echo arrives. A failed send removes
// the pending copy.
func (cs *ConversationSession) Send(ctx context.Context, text, attachmentURL string) (bool, error) {
	if !cs.alive.Load() {
		return false, apperrors.Validation("", "chat_id")
	}
	nonce := uuid.NewString()
	out := OutgoingMessage{Text: text, Nonce: nonce, AttachmentURL: attachmentURL}
	if blank(out) {
		return false, nil
	}
	cs.conv.AddOptimistic(trimmed(text), nonce, attachmentURL, cs.svc.now())
	cs.emit()

	msg, err := cs.svc.Send(ctx, cs.viewer, cs.chatID, out)
	if err != nil {
		cs.conv.Drop(nonce)
		cs.emit()
		return false, err
	}
	if cs.degraded && msg != nil {
		// No echo will come back.
		if cs.conv.Apply(*msg) {
			cs.emit()
		}
	}
	return msg != nil, nil
}

// Close stops following the thread. It is safe to call more than once.
func (cs *ConversationSession) Close() {
	if !cs.alive.CompareAndSwap(true, false) {
		return
	}
	if cs.unsub != nil {
		cs.unsub()
	}
	cs.cancel()
}
