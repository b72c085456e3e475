package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, l Listener) {
	t.Helper()
	select {
	case _, ok := <-l.C():
		require.True(t, ok, "listener closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func assertQuiet(t *testing.T, l Listener) {
	t.Helper()
	select {
	case <-l.C():
		t.Fatal("unexpected signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalNotifier(t *testing.T) {
	ctx := context.Background()
	n := NewLocalNotifier()
	defer n.Close()

	a, err := n.Listen(ctx, "topic-a")
	require.NoError(t, err)
	b, err := n.Listen(ctx, "topic-b")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, "topic-a"))
	require.NoError(t, n.Publish(ctx, "topic-a"))
	receive(t, a)
	assertQuiet(t, a)
	assertQuiet(t, b)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, ok := <-a.C()
	assert.False(t, ok)

	require.NoError(t, n.Publish(ctx, "topic-a"))
}

func TestRedisNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	n, err := NewRedisNotifier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer n.Close()
	require.NoError(t, n.Ping(ctx))

	l, err := n.Listen(ctx, testScope.Path())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, n.Publish(ctx, testScope.Path()))
	receive(t, l)

	require.NoError(t, n.Publish(ctx, "artifacts/ressona-test/users/someone-else/intentions"))
	assertQuiet(t, l)
}

func TestRedisNotifierSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	publisher := NewRedisNotifierWithClient(client)
	subscriber, err := NewRedisNotifier("redis://" + mr.Addr())
	require.NoError(t, err)
	defer subscriber.Close()

	l, err := subscriber.Listen(ctx, "topic")
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, "topic"))
	receive(t, l)

	require.NoError(t, publisher.Close())
	require.NoError(t, client.Ping(ctx).Err())

	require.NoError(t, l.Close())
	select {
	case _, ok := <-l.C():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not close")
	}
}

func TestNewRedisNotifierBadURL(t *testing.T) {
	_, err := NewRedisNotifier("not a url")
	assert.Error(t, err)
}
