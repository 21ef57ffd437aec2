package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "realtime:"

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("✅ Connected to Redis at %s", addr)
	return rdb, nil
}

// RedisBroker carries change events between server instances over Redis
// pub/sub, one channel per table.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+event.Table, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", event.Table, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, sub Subscription, handler Handler) (Unsubscribe, error) {
	pubsub := b.client.Subscribe(ctx, redisChannelPrefix+sub.Table)

	// Wait for the subscription confirmation so failures surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	messages := pubsub.Channel(redis.WithChannelSize(subscriberBuffer))
	go func() {
		for msg := range messages {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("❌ Dropping malformed realtime payload on %s: %v", msg.Channel, err)
				continue
			}
			if sub.wants(event) {
				handler(event)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("⚠️ Closing realtime subscription %s: %v", sub.Channel(), err)
			}
		})
	}, nil
}
