// Package feed keeps a user's intention list in sync with the store and
// derives the coherence level from it.
package feed

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/templui/ressona/internal/metrics"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/service"
	"github.com/templui/ressona/internal/store"
)

const DefaultLimit = 20

// Update is one complete view of the feed. Err is set once when the
// subscription fails; the intentions are then the last good ones.
type Update struct {
	Intentions     []model.Intention `json:"intentions"`
	VibrationLevel float64           `json:"vibrationLevel"`
	At             time.Time         `json:"at"`
	Err            error             `json:"-"`
}

type Synchronizer struct {
	scope store.Scope
	sub   *store.Subscription
	done  chan struct{}

	mu        sync.RWMutex
	latest    Update
	listeners map[chan Update]struct{}
	stopped   bool
}

// Start subscribes to the scope's window. The store does not order the
// window; every snapshot is sorted here.
func Start(ctx context.Context, st store.Store, scope store.Scope, limit int) (*Synchronizer, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	sub, err := st.Subscribe(ctx, scope, limit)
	if err != nil {
		return nil, err
	}

	s := &Synchronizer{
		scope: scope,
		sub:   sub,
		done:  make(chan struct{}),
		latest: Update{
			Intentions:     []model.Intention{},
			VibrationLevel: service.BaselineCoherence,
			At:             time.Now(),
		},
		listeners: make(map[chan Update]struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Synchronizer) run() {
	defer close(s.done)

	for snap := range s.sub.Snapshots() {
		intentions := Materialize(snap.Documents)
		metrics.FeedSnapshots.Inc()
		s.publish(Update{
			Intentions:     intentions,
			VibrationLevel: service.Coherence(intentions),
			At:             snap.At,
		})
	}

	if err := s.sub.Err(); err != nil {
		slog.Error("intention feed stopped", "error", err, "path", s.scope.Path())
		s.mu.RLock()
		last := s.latest
		s.mu.RUnlock()
		last.Err = err
		last.At = time.Now()
		s.publish(last)
	}

	s.mu.Lock()
	s.stopped = true
	for ch := range s.listeners {
		delete(s.listeners, ch)
		close(ch)
	}
	s.mu.Unlock()
}

func (s *Synchronizer) publish(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = u
	for ch := range s.listeners {
		select {
		case <-ch:
		default:
		}
		ch <- u
	}
}

// Latest returns the most recent update.
func (s *Synchronizer) Latest() Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Listen yields the current update and every later one, latest-wins. The
// channel is closed when the feed ends.
func (s *Synchronizer) Listen() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	s.mu.Lock()
	ch <- s.latest
	if s.stopped {
		close(ch)
		s.mu.Unlock()
		return ch, func() {}
	}
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.listeners[ch]; ok {
			delete(s.listeners, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Done is closed once the feed has stopped.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

func (s *Synchronizer) Close() error {
	err := s.sub.Close()
	<-s.done
	return err
}

// Materialize converts documents into intentions sorted newest first.
// Documents that cannot be read are skipped.
func Materialize(docs []model.Document) []model.Intention {
	intentions := make([]model.Intention, 0, len(docs))
	for _, doc := range docs {
		in, err := model.IntentionFromDocument(doc)
		if err != nil {
			slog.Warn("skipping unreadable intention", "error", err, "intention_id", doc.ID)
			continue
		}
		intentions = append(intentions, in)
	}

	sort.SliceStable(intentions, func(i, j int) bool {
		a, b := intentions[i], intentions[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return intentions
}
