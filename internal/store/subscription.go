package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/templui/ressona/internal/model"
)

var ErrListenerClosed = errors.New("change listener closed")

// Snapshot is the full window at one point in time, never a delta.
type Snapshot struct {
	Documents []model.Document
	At        time.Time
}

// Subscription is a cancellable stream of snapshots. The channel holds at
// most one pending snapshot; a newer one replaces it.
type Subscription struct {
	snapshots chan Snapshot
	cancel    context.CancelFunc
	done      chan struct{}

	mu  sync.Mutex
	err error
}

// Snapshots is closed when the subscription ends; Err then reports why.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Err is nil while running and after a caller-initiated Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *Subscription) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *Subscription) offer(snap Snapshot) {
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snap
}

type fetchFunc func(ctx context.Context) ([]model.Document, error)

// watch delivers an initial snapshot and one per change notification. The
// listener must already be active so no change between the two is missed.
func watch(ctx context.Context, scope Scope, listener Listener, fetch fetchFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		snapshots: make(chan Snapshot, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.snapshots)
		defer func() {
			if err := listener.Close(); err != nil {
				slog.Warn("failed to close change listener", "error", err, "path", scope.Path())
			}
		}()

		deliver := func() bool {
			docs, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Error("failed to load intention window", "error", err, "path", scope.Path())
					sub.fail(wrap("subscribe", err))
				}
				return false
			}
			sub.offer(Snapshot{Documents: docs, At: time.Now()})
			return true
		}

		if !deliver() {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.C():
				if !ok {
					if ctx.Err() == nil {
						sub.fail(wrap("subscribe", ErrListenerClosed))
					}
					return
				}
				if !deliver() {
					return
				}
			}
		}
	}()

	return sub
}
