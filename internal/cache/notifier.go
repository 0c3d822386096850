package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type SaleEventKind string

const (
	SaleCreated  SaleEventKind = "created"
	SaleReplaced SaleEventKind = "replaced"
	SaleDeleted  SaleEventKind = "deleted"
)

// SaleEvent announces that a branch's sales changed. Receivers refetch; the
// event carries no ordering guarantee relative to their own writes.
type SaleEvent struct {
	BranchID string        `json:"branch_id"`
	SaleID   string        `json:"sale_id"`
	Kind     SaleEventKind `json:"kind"`
	At       time.Time     `json:"at"`
}

type Handler func(ctx context.Context, event SaleEvent)

type Notifier interface {
	Publish(ctx context.Context, event SaleEvent) error
}

// Subscriber delivers events to handler until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
}

type NoopNotifier struct{}

func (NoopNotifier) Publish(_ context.Context, _ SaleEvent) error {
	return nil
}

func (NoopNotifier) Subscribe(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return nil
}

// LocalNotifier fans events out to in-process handlers synchronously.
type LocalNotifier struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{}
}

func (n *LocalNotifier) Publish(ctx context.Context, event SaleEvent) error {
	n.mu.RLock()
	handlers := make([]Handler, len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

func (n *LocalNotifier) Subscribe(ctx context.Context, handler Handler) error {
	n.mu.Lock()
	n.handlers = append(n.handlers, handler)
	idx := len(n.handlers) - 1
	n.mu.Unlock()

	<-ctx.Done()

	n.mu.Lock()
	n.handlers[idx] = func(context.Context, SaleEvent) {}
	n.mu.Unlock()
	return nil
}

type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Publish(ctx context.Context, event SaleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Subscribe listens on the channel until ctx is cancelled. Malformed
// messages are skipped.
func (n *RedisNotifier) Subscribe(ctx context.Context, handler Handler) error {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event SaleEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			handler(ctx, event)
		}
	}
}
