// Package session implements the per-user recording session: text buffer,
// microphone capture with its duration timer, the recorded audio artifact and
// the image attachment. State is published as immutable snapshots.
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/validation"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotRecording = errors.New("not recording")
	ErrClosed       = errors.New("session closed")
)

const (
	obligationCapture = "capture"
	obligationAudio   = "audio"
	obligationImage   = "image"

	DefaultFinalizeTimeout = 30 * time.Second
)

// Status messages shown to the user.
const (
	MsgTypeFirst        = "Type your intention before recording."
	MsgRecordingStarted = "Recording started. Focus on your desire."
	MsgMicrophoneDenied = "Could not access the microphone. Check the device permissions."
	MsgStopping         = "Stopping recording... processing audio."
	MsgRecordingReady   = "Recording ready. Play it back to review."
	MsgFinalizeFailed   = "The recording could not be processed. Record again."
	MsgFinalizeTimedOut = "The recording did not finish processing. Record again."
	MsgAudioRemoved     = "Audio removed. Record again or continue."
	MsgImageAttached    = "Image attached. Large images may fail to send."
	MsgImageFailed      = "The image could not be read."
	MsgImageRemoved     = "Image removed. Continue to submit."
	MsgPlaybackFailed   = "The recording could not be played."
	MsgChunkRejected    = "Audio chunk rejected."
)

// TickerFunc starts a repeating tick and returns its channel and a stop func.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Options struct {
	OwnerID         string
	Device          capture.Device
	Artifacts       *artifact.Registry
	Ticker          TickerFunc
	FinalizeTimeout time.Duration
}

type Session struct {
	ownerID         string
	device          capture.Device
	artifacts       *artifact.Registry
	ticker          TickerFunc
	finalizeTimeout time.Duration

	// op serializes transitions; everything below it is guarded by op.
	op          sync.Mutex
	obligations *obligations
	capture     capture.Capture
	audio       *model.Artifact
	image       *model.Artifact
	closed      bool
	closedCh    chan struct{}

	// gen identifies the current recording. Ticks and finalization results
	// carrying an older generation are dropped.
	gen atomic.Uint64

	mu       sync.RWMutex
	state    model.RecordingState
	watchers map[chan model.RecordingState]struct{}
}

func New(opts Options) *Session {
	ticker := opts.Ticker
	if ticker == nil {
		ticker = realTicker
	}
	timeout := opts.FinalizeTimeout
	if timeout <= 0 {
		timeout = DefaultFinalizeTimeout
	}

	return &Session{
		ownerID:         opts.OwnerID,
		device:          opts.Device,
		artifacts:       opts.Artifacts,
		ticker:          ticker,
		finalizeTimeout: timeout,
		obligations:     newObligations(),
		closedCh:        make(chan struct{}),
		state:           model.NewRecordingState(),
		watchers:        make(map[chan model.RecordingState]struct{}),
	}
}

// Snapshot returns the current state value.
func (s *Session) Snapshot() model.RecordingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Watch yields the latest snapshot after every transition. Slow readers
// only ever see the newest value. Call cancel when done.
func (s *Session) Watch() (<-chan model.RecordingState, func()) {
	ch := make(chan model.RecordingState, 1)

	s.mu.Lock()
	ch <- s.state
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// set applies a transition and publishes the resulting snapshot.
func (s *Session) set(transition func(model.RecordingState) model.RecordingState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = transition(s.state)
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
}

func (s *Session) setMessage(msg string) {
	s.set(func(st model.RecordingState) model.RecordingState {
		st.Message = msg
		return st
	})
}

// SetText replaces the intention text. Capture is never interrupted.
func (s *Session) SetText(text string) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}

	text = validation.NormalizeIntentionText(text)
	s.set(func(st model.RecordingState) model.RecordingState {
		st.IntentionText = text
		return st
	})
	return nil
}

// StartRecording acquires the capture device and starts the duration timer.
// The previous recording is revoked only after the device is acquired, so a
// denied device leaves the session exactly as it was.
func (s *Session) StartRecording(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}

	st := s.Snapshot()
	if st.IsRecording {
		return nil
	}

	if err := validation.ValidateIntentionText(st.IntentionText); err != nil {
		s.setMessage(MsgTypeFirst)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	c, err := s.device.Acquire(ctx)
	if err != nil {
		slog.Error("failed to access capture device", "error", err, "user_id", s.ownerID)
		s.setMessage(MsgMicrophoneDenied)
		if !errors.Is(err, capture.ErrDeviceAccess) {
			err = fmt.Errorf("%w: %w", capture.ErrDeviceAccess, err)
		}
		return err
	}

	if err := s.obligations.fire(obligationAudio); err != nil {
		slog.Warn("failed to revoke previous recording", "error", err, "user_id", s.ownerID)
	}

	gen := s.gen.Add(1)
	tickC, stopTicker := s.ticker(time.Second)
	done := make(chan struct{})
	go s.tickLoop(gen, tickC, done)

	s.capture = c
	_ = s.obligations.register(obligationCapture, func() error {
		stopTicker()
		close(done)
		s.capture = nil
		return c.Release()
	})

	s.set(func(st model.RecordingState) model.RecordingState {
		st.Phase = model.PhaseRecording
		st.IsRecording = true
		st.Duration = 0
		st.RecordedAudioURL = ""
		st.Finalizing = false
		st.Message = MsgRecordingStarted
		return st
	})

	slog.Debug("recording started", "user_id", s.ownerID)
	return nil
}

func (s *Session) tickLoop(gen uint64, tickC <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-tickC:
			s.set(func(st model.RecordingState) model.RecordingState {
				if st.IsRecording && s.gen.Load() == gen {
					st.Duration++
				}
				return st
			})
		}
	}
}

// WriteAudio forwards a recorded chunk to the open capture.
func (s *Session) WriteAudio(chunk []byte) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.capture == nil {
		return ErrNotRecording
	}

	err := s.capture.Write(chunk)
	if err != nil {
		slog.Warn("audio chunk rejected", "error", err, "user_id", s.ownerID)
		s.setMessage(MsgChunkRejected)
		return err
	}
	return nil
}

// StopRecording cancels the timer, finalizes and releases the capture. The
// artifact arrives asynchronously; until then the state is finalizing.
func (s *Session) StopRecording(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.capture == nil {
		return nil
	}

	results := s.capture.Finalize()
	gen := s.gen.Load()

	if err := s.obligations.fire(obligationCapture); err != nil {
		slog.Warn("failed to release capture device", "error", err, "user_id", s.ownerID)
	}

	s.set(func(st model.RecordingState) model.RecordingState {
		st.Phase = model.PhaseStopped
		st.IsRecording = false
		st.Finalizing = true
		st.Message = MsgStopping
		return st
	})

	go s.awaitFinalize(gen, results)
	return nil
}

func (s *Session) awaitFinalize(gen uint64, results <-chan capture.Result) {
	timer := time.NewTimer(s.finalizeTimeout)
	defer timer.Stop()

	var res capture.Result
	select {
	case r, ok := <-results:
		if !ok {
			r.Err = errors.New("capture closed without a recording")
		}
		res = r
	case <-timer.C:
		s.abandonFinalize(gen, MsgFinalizeTimedOut, errors.New("finalization timed out"))
		return
	case <-s.closedCh:
		return
	}

	if res.Err != nil {
		s.abandonFinalize(gen, MsgFinalizeFailed, res.Err)
		return
	}

	rec := res.Recording
	a, err := s.artifacts.Materialize(s.ownerID, model.ArtifactKindAudio, rec.ContentType, rec.Data)
	if err != nil {
		s.abandonFinalize(gen, MsgFinalizeFailed, err)
		return
	}

	s.op.Lock()
	defer s.op.Unlock()

	if s.closed || s.gen.Load() != gen {
		// Superseded by a newer recording, a removal or teardown.
		_ = s.artifacts.Revoke(a)
		return
	}

	s.audio = a
	_ = s.obligations.register(obligationAudio, func() error {
		held := s.audio
		s.audio = nil
		return s.artifacts.Revoke(held)
	})

	s.set(func(st model.RecordingState) model.RecordingState {
		st.RecordedAudioURL = a.URL
		st.Finalizing = false
		st.Message = MsgRecordingReady
		return st
	})

	slog.Debug("recording finalized", "user_id", s.ownerID, "bytes", a.Size, "chunks", rec.Chunks)
}

// abandonFinalize reports a recording that will never become usable.
// There is no retry; the user records again.
func (s *Session) abandonFinalize(gen uint64, msg string, cause error) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed || s.gen.Load() != gen {
		return
	}
	s.gen.Add(1)

	slog.Error("failed to finalize recording", "error", cause, "user_id", s.ownerID)
	s.set(func(st model.RecordingState) model.RecordingState {
		st.Finalizing = false
		st.Message = msg
		return st
	})
}

// Playback opens the held recording. It returns a nil reader when there is
// nothing to play. Failures are reported but never change the recording.
func (s *Session) Playback(ctx context.Context) (io.ReadCloser, *model.Artifact, error) {
	s.op.Lock()
	a := s.audio
	closed := s.closed
	s.op.Unlock()

	if closed {
		return nil, nil, ErrClosed
	}
	if a == nil {
		return nil, nil, nil
	}

	rc, err := s.artifacts.Open(a)
	if err != nil {
		slog.Error("failed to play audio", "error", err, "user_id", s.ownerID)
		s.setMessage(MsgPlaybackFailed)
		return nil, nil, fmt.Errorf("failed to open recording: %w", err)
	}
	return rc, a, nil
}

// RemoveAudio discards the recording and resets the timer. A finalization
// still in flight is discarded too. No-op while recording.
func (s *Session) RemoveAudio(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.capture != nil {
		return nil
	}

	s.gen.Add(1)
	if err := s.obligations.fire(obligationAudio); err != nil {
		slog.Warn("failed to revoke recording", "error", err, "user_id", s.ownerID)
	}

	s.set(func(st model.RecordingState) model.RecordingState {
		st.Phase = model.PhaseIdle
		st.RecordedAudioURL = ""
		st.Duration = 0
		st.Finalizing = false
		st.Message = MsgAudioRemoved
		return st
	})
	return nil
}

// AttachImage reads and encodes the image before touching state, so a read
// or validation failure leaves the attachment as it was.
func (s *Session) AttachImage(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		slog.Error("failed to read image", "error", err, "user_id", s.ownerID)
		s.setMessage(MsgImageFailed)
		return fmt.Errorf("failed to read image: %w", err)
	}

	contentType, err := validation.ValidateFile(name, data, validation.ImageConstraints)
	if err != nil {
		s.setMessage(MsgImageFailed)
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	encoded := encodeDataURL(contentType, data)

	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}

	preview, err := s.artifacts.Materialize(s.ownerID, model.ArtifactKindImage, contentType, data)
	if err != nil {
		slog.Error("failed to materialize image preview", "error", err, "user_id", s.ownerID)
		s.setMessage(MsgImageFailed)
		return fmt.Errorf("failed to store image preview: %w", err)
	}

	err = s.obligations.register(obligationImage, func() error {
		held := s.image
		s.image = nil
		return s.artifacts.Revoke(held)
	})
	if err != nil {
		slog.Warn("failed to revoke previous image preview", "error", err, "user_id", s.ownerID)
	}
	s.image = preview

	s.set(func(st model.RecordingState) model.RecordingState {
		st.ImageName = name
		st.ImagePreviewURL = preview.URL
		st.ImageBase64 = encoded
		st.Message = MsgImageAttached
		return st
	})
	return nil
}

// RemoveImage revokes the preview and clears every image field.
func (s *Session) RemoveImage(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.obligations.fire(obligationImage); err != nil {
		slog.Warn("failed to revoke image preview", "error", err, "user_id", s.ownerID)
	}

	s.set(func(st model.RecordingState) model.RecordingState {
		st.ImageName = ""
		st.ImagePreviewURL = ""
		st.ImageBase64 = ""
		st.Message = MsgImageRemoved
		return st
	})
	return nil
}

// Commit runs submit against the current snapshot with transitions held
// off. On success every resource is released and the session starts over;
// on failure nothing changes so the user can retry.
func (s *Session) Commit(ctx context.Context, submit func(context.Context, model.RecordingState) error) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}

	err := submit(ctx, s.Snapshot())
	if err != nil {
		return err
	}

	s.resetLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.gen.Add(1)
	if err := s.obligations.fireAll(); err != nil {
		slog.Warn("failed to release session resources", "error", err, "user_id", s.ownerID)
	}
	s.set(func(st model.RecordingState) model.RecordingState {
		next := model.NewRecordingState()
		next.Message = st.Message
		return next
	})
}

// SetMessage surfaces a status message without changing anything else.
func (s *Session) SetMessage(msg string) {
	s.setMessage(msg)
}

// Close releases the capture device and revokes every artifact. Safe to
// call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.closedCh)
	s.gen.Add(1)

	err := s.obligations.fireAll()

	s.mu.Lock()
	for ch := range s.watchers {
		delete(s.watchers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to release session resources: %w", err)
	}
	return nil
}

func encodeDataURL(contentType string, data []byte) string {
	var b bytes.Buffer
	b.WriteString("data:")
	b.WriteString(contentType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
