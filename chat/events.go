package chat

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"cleaning-booking-server/apperrors"
	"cleaning-booking-server/models"
	"cleaning-booking-server/realtime"
	"cleaning-booking-server/repository"
)

type ChangeKind int

const (
	ThreadChanged ChangeKind = iota + 1
	MessageInserted
	MessageUpdated
)

func (k ChangeKind) String() string {
	switch k {
	case ThreadChanged:
		return "thread-changed"
	case MessageInserted:
		return "message-inserted"
	case MessageUpdated:
		return "message-updated"
	}
	return "unknown"
}

// Change is a table event reduced to what the chat views care about.
type Change struct {
	Kind     ChangeKind
	ThreadID uint
	Chat     *models.Chat
	Message  *models.ChatMessage
}

// Normalize parses a chats or chat_messages event. Events of other tables
// and undecodable rows are rejected.
func Normalize(e realtime.Event) (Change, bool) {
	switch e.Table {
	case repository.TableChats:
		var c models.Chat
		if err := decodeRow(e, &c); err != nil {
			return Change{}, false
		}
		return Change{Kind: ThreadChanged, ThreadID: c.ID, Chat: &c}, true
	case repository.TableChatMessages:
		var m models.ChatMessage
		if err := decodeRow(e, &m); err != nil {
			return Change{}, false
		}
		kind := MessageUpdated
		if e.Type == realtime.EventInsert {
			kind = MessageInserted
		}
		return Change{Kind: kind, ThreadID: m.ChatID, Message: &m}, true
	}
	return Change{}, false
}

func decodeRow(e realtime.Event, dst interface{}) error {
	if len(e.Record) == 0 && len(e.OldRecord) > 0 {
		e.Record = e.OldRecord
	}
	if err := e.Decode(dst); err != nil {
		log.Printf("⚠️ Skipping malformed %s event: %v", e.Table, err)
		return err
	}
	return nil
}

// inbox is the reducer state behind SubscribeToChatUpdates. Only its own
// handlers mutate it, one event at a time.
type inbox struct {
	mu      sync.Mutex
	svc     *Service
	viewer  Viewer
	ctx     context.Context
	threads []Thread
	closed  atomic.Bool
	notify  func([]Thread)
}

func (in *inbox) snapshot() []Thread {
	out := make([]Thread, len(in.threads))
	copy(out, in.threads)
	return out
}

func (in *inbox) indexOf(id uint) int {
	for i, t := range in.threads {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (in *inbox) refreshAll() {
	threads, err := in.svc.GetAllChats(in.ctx, in.viewer)
	if err != nil {
		log.Printf("⚠️ Chat refresh for user %d failed: %v", in.viewer.ID, err)
		return
	}
	in.threads = threads
	in.notify(in.snapshot())
}

func (in *inbox) refreshOne(id uint) {
	t, err := in.svc.GetThread(in.ctx, in.viewer, id)
	if err != nil {
		log.Printf("⚠️ Chat %d refresh for user %d failed: %v", id, in.viewer.ID, err)
		return
	}
	i := in.indexOf(id)
	switch {
	case !t.Visible && i >= 0:
		in.threads = append(in.threads[:i], in.threads[i+1:]...)
	case t.Visible && i >= 0:
		in.threads[i] = *t
	case t.Visible:
		in.threads = append(in.threads, *t)
	default:
		return
	}
	sortThreads(in.threads)
	in.notify(in.snapshot())
}

func (in *inbox) apply(e realtime.Event) {
	ch, ok := Normalize(e)
	if !ok {
		return
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed.Load() {
		return
	}

	switch ch.Kind {
	case ThreadChanged:
		if !canAccess(in.viewer, ch.Chat) {
			return
		}
		in.refreshAll()
	case MessageInserted, MessageUpdated:
		if in.indexOf(ch.ThreadID) >= 0 {
			in.refreshOne(ch.ThreadID)
			return
		}
		// A message for a thread we do not list yet: only refetch when the
		// viewer can see that thread at all.
		c, err := in.svc.chats.GetChat(in.ctx, ch.ThreadID)
		if err != nil || !canAccess(in.viewer, c) {
			return
		}
		in.refreshAll()
	}
}

// close stops further events without waiting for one in flight, so the
// callback may unsubscribe.
func (in *inbox) close() {
	in.closed.Store(true)
}

// SubscribeToChatUpdates watches thread and message changes and calls
// callback with the viewer's full thread list: once with the current list,
// then again after each relevant change. The returned func releases both
// subscriptions; it is safe to call more than once.
func (s *Service) SubscribeToChatUpdates(ctx context.Context, v Viewer, callback func([]Thread)) (realtime.Unsubscribe, error) {
	if err := requireViewer(v); err != nil {
		return nil, err
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	in := &inbox{svc: s, viewer: v, ctx: rctx, notify: callback}

	// Hold the reducer until the first list is loaded so no event is
	// applied to an empty inbox.
	in.mu.Lock()
	defer in.mu.Unlock()

	threadSub := realtime.Subscription{Table: repository.TableChats}
	unsubThreads, err := s.broker.Subscribe(ctx, threadSub, in.apply)
	if err != nil {
		cancel()
		log.Printf("⚠️ Chat thread subscription for user %d failed: %v", v.ID, err)
		return nil, apperrors.Subscription(threadSub.Channel(), err)
	}
	msgSub := realtime.Subscription{
		Table:  repository.TableChatMessages,
		Events: []realtime.EventType{realtime.EventInsert, realtime.EventUpdate},
	}
	unsubMessages, err := s.broker.Subscribe(ctx, msgSub, in.apply)
	if err != nil {
		unsubThreads()
		cancel()
		log.Printf("⚠️ Chat message subscription for user %d failed: %v", v.ID, err)
		return nil, apperrors.Subscription(msgSub.Channel(), err)
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			unsubThreads()
			unsubMessages()
			in.close()
			cancel()
		})
	}

	threads, err := s.GetAllChats(ctx, v)
	if err != nil {
		in.close()
		unsubThreads()
		unsubMessages()
		cancel()
		return nil, err
	}
	in.threads = threads
	callback(in.snapshot())
	return unsubscribe, nil
}
