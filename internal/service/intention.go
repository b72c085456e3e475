package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/templui/ressona/internal/metrics"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/session"
	"github.com/templui/ressona/internal/store"
)

var (
	ErrNotReady   = errors.New("intention is not ready to submit")
	ErrSubmission = errors.New("failed to submit intention")
	ErrNoIdentity = errors.New("no user identity")
)

const ViewHistory = "history"

const (
	MsgNotReady     = "Type your intention and record it before aligning."
	MsgSending      = "Aligning frequency. Sending your intention..."
	MsgSent         = "Intention sent. Await its manifestation."
	MsgSubmitFailed = "Failed to send the intention. Check the connection and try again."
)

type SubmitResult struct {
	ID   string `json:"id"`
	View string `json:"view"`
}

type IntentionService struct {
	store store.Store
	appID string
	now   func() time.Time
}

func NewIntentionService(st store.Store, appID string) *IntentionService {
	return &IntentionService{
		store: st,
		appID: appID,
		now:   time.Now,
	}
}

func (s *IntentionService) Scope(userID string) store.Scope {
	return store.Scope{AppID: s.appID, UserID: userID}
}

// IsProcessable reports whether a session holds enough to submit: text and
// a finished recording.
func IsProcessable(st model.RecordingState) bool {
	return st.TrimmedText() != "" && st.HasAudio()
}

// Submit writes the session's intention and resets the session. On any
// failure the session keeps its text, audio and image so the user can retry.
func (s *IntentionService) Submit(ctx context.Context, userID string, sess *session.Session) (*SubmitResult, error) {
	if !IsProcessable(sess.Snapshot()) {
		sess.SetMessage(MsgNotReady)
		return nil, ErrNotReady
	}

	sess.SetMessage(MsgSending)

	var id string
	err := sess.Commit(ctx, func(ctx context.Context, st model.RecordingState) error {
		// Re-checked under the session lock; a removal may have won the race.
		if !IsProcessable(st) {
			return ErrNotReady
		}
		if userID == "" || s.store == nil {
			return fmt.Errorf("%w: %w", ErrSubmission, ErrNoIdentity)
		}

		created, err := s.store.Create(ctx, s.Scope(userID), s.record(st))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSubmission, err)
		}
		id = created
		return nil
	})

	if errors.Is(err, ErrNotReady) {
		sess.SetMessage(MsgNotReady)
		return nil, err
	}
	if err != nil {
		slog.Error("failed to submit intention", "error", err, "user_id", userID)
		metrics.IntentionsSubmitted.WithLabelValues("error").Inc()
		sess.SetMessage(MsgSubmitFailed)
		return nil, err
	}

	metrics.IntentionsSubmitted.WithLabelValues("ok").Inc()
	sess.SetMessage(MsgSent)
	slog.Info("intention submitted", "user_id", userID, "intention_id", id)

	return &SubmitResult{ID: id, View: ViewHistory}, nil
}

func (s *IntentionService) record(st model.RecordingState) store.Fields {
	var createdAt any = store.ServerTimestamp
	if !s.store.ServerTimestamps() {
		createdAt = s.now().UnixMilli()
	}

	var image any
	if st.HasImage() {
		image = st.ImageBase64
	}

	return store.Fields{
		model.FieldText:          st.TrimmedText(),
		model.FieldAudioRecorded: st.HasAudio(),
		model.FieldAudioDuration: st.Duration,
		model.FieldImageURL:      image,
		model.FieldIsManifested:  false,
		model.FieldCreatedAt:     createdAt,
	}
}

// ToggleManifested sets isManifested to !current. Without an identity or a
// store it does nothing.
func (s *IntentionService) ToggleManifested(ctx context.Context, userID, intentionID string, current bool) error {
	if userID == "" || s.store == nil {
		return nil
	}

	err := s.store.Update(ctx, s.Scope(userID), intentionID, store.Fields{
		model.FieldIsManifested: !current,
	})
	if err != nil {
		slog.Error("failed to update manifestation status", "error", err, "user_id", userID, "intention_id", intentionID)
		metrics.ManifestToggles.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to toggle manifestation: %w", err)
	}

	metrics.ManifestToggles.WithLabelValues("ok").Inc()
	return nil
}
