package realtime

import (
	"context"
	"log"
	"sync"
)

// Handler receives events for one subscription, in publish order.
type Handler func(Event)

// Unsubscribe releases a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error)
}

type Broker interface {
	Publisher
	Subscriber
}

// subscriberBuffer bounds the events queued for a slow handler.
const subscriberBuffer = 256

type memorySubscriber struct {
	id      uint64
	sub     Subscription
	handler Handler
	events  chan Event
	done    chan struct{}
}

// MemoryBroker fans events out to subscribers of the same process.
type MemoryBroker struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]*memorySubscriber
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subscribers: make(map[uint64]*memorySubscriber),
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, s := range b.subscribers {
		if !s.sub.wants(event) {
			continue
		}
		select {
		case s.events <- event:
		case <-s.done:
		default:
			log.Printf("⚠️ Realtime subscriber %d on %s is full, dropping %s event", s.id, s.sub.Channel(), event.Type)
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	b.mu.Lock()
	b.nextID++
	s := &memorySubscriber{
		id:      b.nextID,
		sub:     sub,
		handler: handler,
		events:  make(chan Event, subscriberBuffer),
		done:    make(chan struct{}),
	}
	b.subscribers[s.id] = s
	b.mu.Unlock()

	go s.run()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, s.id)
			b.mu.Unlock()
			close(s.done)
		})
	}, nil
}

// SubscriberCount is the number of live subscriptions.
func (b *MemoryBroker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (s *memorySubscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case e := <-s.events:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(e)
		}
	}
}
