package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/repository"
)

// SQL keeps intentions in the intentions table and announces writes on a
// Notifier so subscribers on any node re-read their window.
type SQL struct {
	repo     repository.IntentionRepository
	notifier Notifier
}

func NewSQL(repo repository.IntentionRepository, notifier Notifier) *SQL {
	return &SQL{repo: repo, notifier: notifier}
}

func (s *SQL) ServerTimestamps() bool { return true }

func (s *SQL) Create(ctx context.Context, scope Scope, fields Fields) (string, error) {
	if err := scope.Validate(); err != nil {
		return "", err
	}
	if err := validateCreate(fields); err != nil {
		return "", err
	}

	record, err := recordFromFields(scope, fields)
	if err != nil {
		return "", err
	}

	err = s.repo.Create(ctx, record)
	if err != nil {
		return "", wrap("create intention", err)
	}

	s.publish(ctx, scope)
	return record.ID, nil
}

func (s *SQL) Update(ctx context.Context, scope Scope, id string, fields Fields) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := validateUpdate(fields); err != nil {
		return err
	}

	manifested := fields[model.FieldIsManifested].(bool)
	err := s.repo.SetManifested(ctx, scope.AppID, scope.UserID, id, manifested)
	if errors.Is(err, repository.ErrIntentionNotFound) {
		return fmt.Errorf("%w: %w", ErrStore, ErrNotFound)
	}
	if err != nil {
		return wrap("update intention", err)
	}

	s.publish(ctx, scope)
	return nil
}

func (s *SQL) Subscribe(ctx context.Context, scope Scope, limit int) (*Subscription, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	listener, err := s.notifier.Listen(ctx, scope.Path())
	if err != nil {
		return nil, wrap("subscribe", err)
	}

	return watch(ctx, scope, listener, func(ctx context.Context) ([]model.Document, error) {
		return s.repo.Window(ctx, scope.AppID, scope.UserID, limit)
	}), nil
}

// publish failures do not fail the write; subscribers catch up on their
// next signal.
func (s *SQL) publish(ctx context.Context, scope Scope) {
	err := s.notifier.Publish(ctx, scope.Path())
	if err != nil {
		slog.Warn("failed to publish intention change", "error", err, "path", scope.Path())
	}
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *SQL) Close() error {
	return s.notifier.Close()
}

func recordFromFields(scope Scope, fields Fields) (*model.IntentionRecord, error) {
	record := &model.IntentionRecord{
		ID:     uuid.New().String(),
		AppID:  scope.AppID,
		UserID: scope.UserID,
	}
	record.Text, _ = fields[model.FieldText].(string)
	record.AudioRecorded, _ = fields[model.FieldAudioRecorded].(bool)
	record.AudioDuration, _ = fields[model.FieldAudioDuration].(int)
	record.IsManifested, _ = fields[model.FieldIsManifested].(bool)

	if image, ok := fields[model.FieldImageURL].(string); ok && image != "" {
		record.ImageURL = &image
	}

	createdAt := fields[model.FieldCreatedAt]
	if _, ok := createdAt.(serverTimestamp); !ok {
		ts, err := model.ParseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		record.CreatedAt = &ts
	}

	return record, nil
}

var _ Store = (*SQL)(nil)
