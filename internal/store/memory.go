package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/templui/ressona/internal/model"
)

// Memory is a process-local Store for development and tests. It has no
// clock of its own: ServerTimestamp is stamped with the local time.
type Memory struct {
	mu         sync.RWMutex
	partitions map[string][]model.Document
	notifier   *LocalNotifier
}

func NewMemory() *Memory {
	return &Memory{
		partitions: make(map[string][]model.Document),
		notifier:   NewLocalNotifier(),
	}
}

func (m *Memory) ServerTimestamps() bool { return false }

func (m *Memory) Create(ctx context.Context, scope Scope, fields Fields) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	if err := validateCreate(fields); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", wrap("create intention", err)
	}

	data := make(map[string]any, len(fields))
	maps.Copy(data, fields)
	if _, ok := data[model.FieldCreatedAt].(serverTimestamp); ok {
		data[model.FieldCreatedAt] = time.Now()
	}

	doc := model.Document{ID: uuid.New().String(), Data: data}

	m.mu.Lock()
	m.partitions[scope.Path()] = append(m.partitions[scope.Path()], doc)
	m.mu.Unlock()

	_ = m.notifier.Publish(ctx, scope.Path())
	return doc.ID, nil
}

func (m *Memory) Update(ctx context.Context, scope Scope, id string, fields Fields) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := validateUpdate(fields); err != nil {
		return err
	}

	m.mu.Lock()
	docs := m.partitions[scope.Path()]
	found := false
	for i := range docs {
		if docs[i].ID != id {
			continue
		}
		// Copy so delivered snapshots never change underneath a reader.
		data := maps.Clone(docs[i].Data)
		maps.Copy(data, fields)
		docs[i] = model.Document{ID: id, Data: data}
		found = true
		break
	}
	m.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %w", ErrStore, ErrNotFound)
	}

	_ = m.notifier.Publish(ctx, scope.Path())
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, scope Scope, limit int) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	listener, err := m.notifier.Listen(ctx, scope.Path())
	if err != nil {
		return nil, wrap("subscribe", err)
	}

	return watch(ctx, scope, listener, func(context.Context) ([]model.Document, error) {
		return m.window(scope, limit), nil
	}), nil
}

// window returns the limit most recently written documents in insertion
// order.
func (m *Memory) window(scope Scope, limit int) []model.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.partitions[scope.Path()]
	if limit > 0 && len(docs) > limit {
		docs = docs[len(docs)-limit:]
	}
	out := make([]model.Document, len(docs))
	copy(out, docs)
	return out
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error {
	return m.notifier.Close()
}

var _ Store = (*Memory)(nil)
