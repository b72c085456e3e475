package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/ressona/internal/artifact"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/storage"
)

// manualTicker hands out a channel the test drives by hand.
type manualTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	stopped int
}

func (m *manualTicker) start(time.Duration) (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c = make(chan time.Time)
	return m.c, func() {
		m.mu.Lock()
		m.stopped++
		m.mu.Unlock()
	}
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	c := m.c
	m.mu.Unlock()
	select {
	case c <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
}

type deniedDevice struct{}

func (deniedDevice) Acquire(context.Context) (capture.Capture, error) {
	return nil, errors.New("permission denied")
}

// heldCapture finalizes only when the test says so.
type heldCapture struct {
	results  chan capture.Result
	released int
}

func (c *heldCapture) Write([]byte) error              { return nil }
func (c *heldCapture) Finalize() <-chan capture.Result { return c.results }
func (c *heldCapture) Release() error {
	c.released++
	return nil
}

type heldDevice struct{ last *heldCapture }

func (d *heldDevice) Acquire(context.Context) (capture.Capture, error) {
	d.last = &heldCapture{results: make(chan capture.Result, 1)}
	return d.last, nil
}

func newTestSession(t *testing.T, device capture.Device) (*Session, *artifact.Registry, *manualTicker) {
	t.Helper()
	disk, err := storage.NewDiskStorage(t.TempDir(), "/api/artifacts")
	require.NoError(t, err)
	registry := artifact.NewRegistry(disk)
	ticker := &manualTicker{}
	s := New(Options{
		OwnerID:         "user-1",
		Device:          device,
		Artifacts:       registry,
		Ticker:          ticker.start,
		FinalizeTimeout: time.Second,
	})
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, registry, ticker
}

func uploadDevice() *capture.UploadDevice {
	return capture.NewUploadDevice(capture.UploadConfig{Enabled: true, MaxActive: 4})
}

func recordAndStop(t *testing.T, s *Session, chunk string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.WriteAudio([]byte(chunk)))
	require.NoError(t, s.StopRecording(ctx))
	require.Eventually(t, func() bool {
		st := s.Snapshot()
		return st.HasAudio() && !st.Finalizing
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartRecordingRequiresText(t *testing.T) {
	s, _, _ := newTestSession(t, uploadDevice())

	require.NoError(t, s.SetText("   "))
	before := s.Snapshot()

	err := s.StartRecording(context.Background())
	require.ErrorIs(t, err, ErrValidation)

	after := s.Snapshot()
	assert.False(t, after.IsRecording)
	assert.Equal(t, before.Duration, after.Duration)
	assert.Equal(t, model.PhaseIdle, after.Phase)
	assert.Equal(t, MsgTypeFirst, after.Message)
}

func TestStartRecordingDeviceDeniedLeavesStateUnchanged(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())
	require.NoError(t, s.SetText("abundance"))
	recordAndStop(t, s, "first")
	url := s.Snapshot().RecordedAudioURL

	s.device = deniedDevice{}
	err := s.StartRecording(context.Background())
	require.ErrorIs(t, err, capture.ErrDeviceAccess)

	st := s.Snapshot()
	assert.False(t, st.IsRecording)
	assert.Equal(t, url, st.RecordedAudioURL)
	assert.Equal(t, MsgMicrophoneDenied, st.Message)
	assert.Equal(t, 1, registry.Live())
}

func TestRecordingTicksAndStop(t *testing.T) {
	s, registry, ticker := newTestSession(t, uploadDevice())
	ctx := context.Background()

	require.NoError(t, s.SetText("calm mind"))
	require.NoError(t, s.StartRecording(ctx))

	st := s.Snapshot()
	assert.True(t, st.IsRecording)
	assert.Equal(t, model.PhaseRecording, st.Phase)
	assert.Equal(t, 0, st.Duration)

	ticker.tick(t)
	ticker.tick(t)
	require.Eventually(t, func() bool { return s.Snapshot().Duration == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.WriteAudio([]byte("abc")))
	require.NoError(t, s.WriteAudio([]byte("def")))
	require.NoError(t, s.StopRecording(ctx))

	st = s.Snapshot()
	assert.False(t, st.IsRecording)
	assert.Equal(t, model.PhaseStopped, st.Phase)
	assert.Equal(t, 2, st.Duration)

	require.Eventually(t, func() bool { return s.Snapshot().HasAudio() }, 2*time.Second, 5*time.Millisecond)
	st = s.Snapshot()
	assert.False(t, st.Finalizing)
	assert.Equal(t, MsgRecordingReady, st.Message)
	assert.Equal(t, 1, registry.Live())
	assert.Equal(t, 1, ticker.stopped)

	rc, a, err := s.Playback(ctx)
	require.NoError(t, err)
	require.NotNil(t, rc)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
	assert.Equal(t, capture.DefaultContentType, a.ContentType)
}

func TestRestartRevokesPreviousRecording(t *testing.T) {
	device := uploadDevice()
	s, registry, ticker := newTestSession(t, device)
	ctx := context.Background()

	require.NoError(t, s.SetText("clarity"))
	recordAndStop(t, s, "take one")
	first := s.Snapshot().RecordedAudioURL

	require.NoError(t, s.StartRecording(ctx))
	st := s.Snapshot()
	assert.Equal(t, 0, st.Duration)
	assert.Empty(t, st.RecordedAudioURL)
	assert.Equal(t, 0, registry.Live())

	ticker.tick(t)
	require.NoError(t, s.StopRecording(ctx))
	require.Eventually(t, func() bool { return s.Snapshot().HasAudio() }, 2*time.Second, 5*time.Millisecond)

	assert.NotEqual(t, first, s.Snapshot().RecordedAudioURL)
	assert.Equal(t, 1, registry.Live())
	assert.Equal(t, 0, device.Active())
}

func TestStartWhileRecordingIsNoop(t *testing.T) {
	device := uploadDevice()
	s, _, _ := newTestSession(t, device)
	ctx := context.Background()

	require.NoError(t, s.SetText("focus"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.StartRecording(ctx))
	assert.Equal(t, 1, device.Active())
}

func TestTextEditDoesNotInterruptRecording(t *testing.T) {
	s, _, _ := newTestSession(t, uploadDevice())
	ctx := context.Background()

	require.NoError(t, s.SetText("focus"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.SetText("focus and calm"))

	st := s.Snapshot()
	assert.True(t, st.IsRecording)
	assert.Equal(t, "focus and calm", st.IntentionText)
}

func TestRemoveAudio(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())
	ctx := context.Background()

	require.NoError(t, s.SetText("gratitude"))
	recordAndStop(t, s, "data")

	require.NoError(t, s.RemoveAudio(ctx))
	st := s.Snapshot()
	assert.Equal(t, model.PhaseIdle, st.Phase)
	assert.Empty(t, st.RecordedAudioURL)
	assert.Equal(t, 0, st.Duration)
	assert.Equal(t, 0, registry.Live())

	rc, a, err := s.Playback(ctx)
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Nil(t, a)
}

func TestRemoveAudioWhileRecordingIsNoop(t *testing.T) {
	s, _, _ := newTestSession(t, uploadDevice())
	ctx := context.Background()

	require.NoError(t, s.SetText("gratitude"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.RemoveAudio(ctx))
	assert.True(t, s.Snapshot().IsRecording)
}

func TestRemoveAudioDiscardsPendingFinalize(t *testing.T) {
	device := &heldDevice{}
	s, registry, _ := newTestSession(t, device)
	ctx := context.Background()

	require.NoError(t, s.SetText("patience"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.StopRecording(ctx))
	assert.True(t, s.Snapshot().Finalizing)
	assert.Equal(t, 1, device.last.released)

	require.NoError(t, s.RemoveAudio(ctx))
	device.last.results <- capture.Result{Recording: capture.Recording{Data: []byte("late"), ContentType: "audio/webm"}}

	require.Never(t, func() bool { return s.Snapshot().HasAudio() }, 100*time.Millisecond, 5*time.Millisecond)
	require.Eventually(t, func() bool { return registry.Live() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFinalizeFailure(t *testing.T) {
	device := &heldDevice{}
	s, registry, _ := newTestSession(t, device)
	ctx := context.Background()

	require.NoError(t, s.SetText("patience"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.StopRecording(ctx))
	device.last.results <- capture.Result{Err: errors.New("encoder crashed")}

	require.Eventually(t, func() bool { return !s.Snapshot().Finalizing }, time.Second, 5*time.Millisecond)
	st := s.Snapshot()
	assert.False(t, st.HasAudio())
	assert.Equal(t, MsgFinalizeFailed, st.Message)
	assert.Equal(t, 0, registry.Live())
}

func TestFinalizeTimeout(t *testing.T) {
	device := &heldDevice{}
	s, _, _ := newTestSession(t, device)
	s.finalizeTimeout = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, s.SetText("patience"))
	require.NoError(t, s.StartRecording(ctx))
	require.NoError(t, s.StopRecording(ctx))

	require.Eventually(t, func() bool { return s.Snapshot().Message == MsgFinalizeTimedOut }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Snapshot().Finalizing)
}

func TestAttachAndRemoveImage(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())
	ctx := context.Background()
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	require.NoError(t, s.AttachImage(ctx, "vision.png", bytes.NewReader(png)))
	st := s.Snapshot()
	assert.Equal(t, "vision.png", st.ImageName)
	assert.True(t, strings.HasPrefix(st.ImageBase64, "data:image/png;base64,"))
	assert.NotEmpty(t, st.ImagePreviewURL)
	assert.Equal(t, 1, registry.Live())

	firstPreview := st.ImagePreviewURL
	require.NoError(t, s.AttachImage(ctx, "vision2.png", bytes.NewReader(png)))
	st = s.Snapshot()
	assert.Equal(t, "vision2.png", st.ImageName)
	assert.NotEqual(t, firstPreview, st.ImagePreviewURL)
	assert.Equal(t, 1, registry.Live())

	require.NoError(t, s.RemoveImage(ctx))
	st = s.Snapshot()
	assert.Empty(t, st.ImageName)
	assert.Empty(t, st.ImagePreviewURL)
	assert.Empty(t, st.ImageBase64)
	assert.Equal(t, 0, registry.Live())
}

func TestAttachImageWithoutExtension(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	require.NoError(t, s.AttachImage(context.Background(), "blob", bytes.NewReader(png)))
	st := s.Snapshot()
	assert.Equal(t, "blob", st.ImageName)
	assert.True(t, strings.HasPrefix(st.ImageBase64, "data:image/png;base64,"))
	assert.Equal(t, MsgImageAttached, st.Message)
	assert.Equal(t, 1, registry.Live())
}

func TestAttachImageRejectsNonImage(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())

	err := s.AttachImage(context.Background(), "notes.txt", strings.NewReader("plain text"))
	require.ErrorIs(t, err, ErrValidation)

	st := s.Snapshot()
	assert.False(t, st.HasImage())
	assert.Equal(t, MsgImageFailed, st.Message)
	assert.Equal(t, 0, registry.Live())
}

func TestCommitResetsOnSuccess(t *testing.T) {
	device := uploadDevice()
	s, registry, _ := newTestSession(t, device)
	ctx := context.Background()
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	require.NoError(t, s.SetText("trust the process"))
	recordAndStop(t, s, "voice")
	require.NoError(t, s.AttachImage(ctx, "v.png", bytes.NewReader(png)))

	var seen model.RecordingState
	err := s.Commit(ctx, func(_ context.Context, st model.RecordingState) error {
		seen = st
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "trust the process", seen.IntentionText)
	assert.True(t, seen.HasAudio())
	assert.True(t, seen.HasImage())

	st := s.Snapshot()
	assert.Empty(t, st.IntentionText)
	assert.False(t, st.HasAudio())
	assert.False(t, st.HasImage())
	assert.Equal(t, 0, st.Duration)
	assert.Equal(t, 0, registry.Live())
	assert.Equal(t, 0, device.Active())
}

func TestCommitFailurePreservesState(t *testing.T) {
	s, registry, _ := newTestSession(t, uploadDevice())
	ctx := context.Background()

	require.NoError(t, s.SetText("try again"))
	recordAndStop(t, s, "voice")
	before := s.Snapshot()

	boom := errors.New("store down")
	err := s.Commit(ctx, func(context.Context, model.RecordingState) error { return boom })
	require.ErrorIs(t, err, boom)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 1, registry.Live())
}

func TestCloseReleasesEverything(t *testing.T) {
	device := uploadDevice()
	s, registry, _ := newTestSession(t, device)
	ctx := context.Background()

	require.NoError(t, s.SetText("let go"))
	recordAndStop(t, s, "voice")
	require.NoError(t, s.StartRecording(ctx))

	updates, cancel := s.Watch()
	defer cancel()

	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	assert.Equal(t, 0, device.Active())
	assert.Equal(t, 0, registry.Live())
	assert.ErrorIs(t, s.SetText("x"), ErrClosed)

	for range updates {
	}
}

func TestWatchDeliversLatest(t *testing.T) {
	s, _, _ := newTestSession(t, uploadDevice())

	updates, cancel := s.Watch()
	defer cancel()

	require.NoError(t, s.SetText("a"))
	require.NoError(t, s.SetText("ab"))
	require.NoError(t, s.SetText("abc"))

	st := <-updates
	assert.Equal(t, "abc", st.IntentionText)
}
