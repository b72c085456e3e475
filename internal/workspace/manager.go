// Package workspace holds each active user's recording session and feed,
// and tears them down when the user goes idle.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/feed"
	"github.com/templui/ressona/internal/metrics"
	"github.com/templui/ressona/internal/session"
	"github.com/templui/ressona/internal/store"
)

var ErrClosed = errors.New("workspace manager closed")

type Workspace struct {
	UserID  string
	Session *session.Session

	lastSeen atomic.Int64

	mu     sync.Mutex
	feed   *feed.Synchronizer
	closed bool
}

// Feed returns the workspace's current intention feed.
func (w *Workspace) Feed() *feed.Synchronizer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feed
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

func (w *Workspace) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, w.lastSeen.Load()))
}

func (w *Workspace) feedStopped() bool {
	select {
	case <-w.Feed().Done():
		return true
	default:
		return false
	}
}

// replaceFeed swaps in next if old is still current. It reports false,
// and leaves next to the caller, when the workspace moved on.
func (w *Workspace) replaceFeed(old, next *feed.Synchronizer) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.feed != old {
		return false
	}
	w.feed = next
	return true
}

func (w *Workspace) close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	f := w.feed
	w.mu.Unlock()
	return errors.Join(w.Session.Close(ctx), f.Close())
}

type Options struct {
	Store           store.Store
	AppID           string
	FeedLimit       int
	Device          capture.Device
	Artifacts       *artifact.Registry
	IdleTimeout     time.Duration
	FinalizeTimeout time.Duration
}

type Manager struct {
	opts Options
	now  func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	closed     bool

	stop chan struct{}
	done chan struct{}
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		opts:       opts,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go m.cleanupLoop()
	} else {
		close(m.done)
	}

	return m
}

// Get returns the user's workspace, opening it on first use. A workspace
// whose feed has stopped gets a fresh feed; the session is kept.
func (m *Manager) Get(ctx context.Context, userID string) (*Workspace, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	w, ok := m.workspaces[userID]
	if ok {
		w.touch(m.now())
	}
	m.mu.Unlock()

	if ok {
		if w.feedStopped() {
			m.reopenFeed(ctx, w)
		}
		return w, nil
	}

	synchronizer, err := m.startFeed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open intention feed: %w", err)
	}

	w = &Workspace{
		UserID: userID,
		Session: session.New(session.Options{
			OwnerID:         userID,
			Device:          m.opts.Device,
			Artifacts:       m.opts.Artifacts,
			FinalizeTimeout: m.opts.FinalizeTimeout,
		}),
		feed: synchronizer,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = w.close(ctx)
		return nil, ErrClosed
	}
	if existing, ok := m.workspaces[userID]; ok {
		existing.touch(m.now())
		m.mu.Unlock()
		_ = w.close(ctx)
		return existing, nil
	}
	w.touch(m.now())
	m.workspaces[userID] = w
	m.mu.Unlock()

	metrics.ActiveWorkspaces.Inc()
	slog.Debug("workspace opened", "user_id", userID)
	return w, nil
}

func (m *Manager) startFeed(ctx context.Context, userID string) (*feed.Synchronizer, error) {
	scope := store.Scope{AppID: m.opts.AppID, UserID: userID}
	// The feed outlives the request that opened it.
	return feed.Start(context.WithoutCancel(ctx), m.opts.Store, scope, m.opts.FeedLimit)
}

// reopenFeed resubscribes a workspace whose feed has stopped. On failure
// the stopped feed stays in place and keeps reporting its error.
func (m *Manager) reopenFeed(ctx context.Context, w *Workspace) {
	old := w.Feed()

	next, err := m.startFeed(ctx, w.UserID)
	if err != nil {
		slog.Error("failed to reopen intention feed", "error", err, "user_id", w.UserID)
		return
	}

	if !w.replaceFeed(old, next) {
		_ = next.Close()
		return
	}
	_ = old.Close()
	metrics.FeedReconnects.Inc()
	slog.Info("intention feed reopened", "user_id", w.UserID)
}

// Evict closes the user's workspace, releasing its capture device and
// artifacts. Evicting an unknown user is a no-op.
func (m *Manager) Evict(ctx context.Context, userID string) error {
	return m.evict(ctx, userID, func(*Workspace) bool { return true })
}

// evict removes the workspace only if cond still holds under the lock.
func (m *Manager) evict(ctx context.Context, userID string, cond func(*Workspace) bool) error {
	m.mu.Lock()
	w, ok := m.workspaces[userID]
	if ok && !cond(w) {
		ok = false
	}
	if ok {
		delete(m.workspaces, userID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	metrics.ActiveWorkspaces.Dec()

	err := w.close(ctx)
	if err != nil {
		slog.Error("failed to close workspace", "error", err, "user_id", userID)
		return err
	}
	slog.Debug("workspace closed", "user_id", userID)
	return nil
}

// Touch marks the workspace as in use.
func (m *Manager) Touch(w *Workspace) {
	w.touch(m.now())
}

// Len reports the number of open workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

func (m *Manager) cleanupLoop() {
	defer close(m.done)

	interval := m.opts.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.cleanup(context.Background())
		}
	}
}

// cleanup evicts workspaces idle for longer than the idle timeout.
func (m *Manager) cleanup(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	var idle []string
	for userID, w := range m.workspaces {
		if w.idleSince(now) > m.opts.IdleTimeout {
			slog.Debug("workspace idle", "user_id", userID)
			idle = append(idle, userID)
		}
	}
	m.mu.Unlock()

	// A Get between the scan and the eviction revives the workspace.
	for _, userID := range idle {
		_ = m.evict(ctx, userID, m.isIdle)
	}
}

func (m *Manager) isIdle(w *Workspace) bool {
	return w.idleSince(m.now()) > m.opts.IdleTimeout
}

// Close stops the janitor and closes every workspace.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	userIDs := make([]string, 0, len(m.workspaces))
	for userID := range m.workspaces {
		userIDs = append(userIDs, userID)
	}
	m.mu.Unlock()

	close(m.stop)
	<-m.done

	var errs []error
	for _, userID := range userIDs {
		if err := m.Evict(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
