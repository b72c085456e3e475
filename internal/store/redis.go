package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier carries change signals between nodes over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisNotifier connects to redisURL and verifies the connection.
func NewRedisNotifier(redisURL string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, prefix: "ressona:changes:", owned: true}, nil
}

// NewRedisNotifierWithClient uses an existing client. Close leaves it open.
func NewRedisNotifierWithClient(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, prefix: "ressona:changes:"}
}

func (n *RedisNotifier) channel(topic string) string {
	return n.prefix + topic
}

func (n *RedisNotifier) Publish(ctx context.Context, topic string) error {
	err := n.client.Publish(ctx, n.channel(topic), "changed").Err()
	if err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Listen(ctx context.Context, topic string) (Listener, error) {
	ps := n.client.Subscribe(ctx, n.channel(topic))

	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to changes: %w", err)
	}

	l := &redisListener{
		ps: ps,
		c:  make(chan struct{}, 1),
	}
	go l.forward(topic)
	return l, nil
}

func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisNotifier) Close() error {
	if !n.owned {
		return nil
	}
	return n.client.Close()
}

type redisListener struct {
	ps *redis.PubSub
	c  chan struct{}

	closeOnce sync.Once
}

func (l *redisListener) forward(topic string) {
	defer close(l.c)

	for range l.ps.Channel() {
		select {
		case l.c <- struct{}{}:
		default:
		}
	}
	slog.Debug("change listener stopped", "topic", topic)
}

func (l *redisListener) C() <-chan struct{} { return l.c }

func (l *redisListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.ps.Close()
	})
	return err
}
