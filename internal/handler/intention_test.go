package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/ressona/internal/capture"
	"github.com/templui/ressona/internal/ctxkeys"
	"github.com/templui/ressona/internal/model"
	"github.com/templui/ressona/internal/store"
	"github.com/templui/ressona/internal/workspace"
)

func TestStreamKeepsWatcherWorkspaceOpen(t *testing.T) {
	previous := streamKeepAlive
	streamKeepAlive = 50 * time.Millisecond
	t.Cleanup(func() { streamKeepAlive = previous })

	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	workspaces := workspace.NewManager(workspace.Options{
		Store:       st,
		AppID:       "ressona-test",
		Device:      capture.NewUploadDevice(capture.UploadConfig{}),
		IdleTimeout: 500 * time.Millisecond,
	})
	t.Cleanup(func() { _ = workspaces.Close(context.Background()) })

	ws, err := workspaces.Get(context.Background(), "watcher")
	require.NoError(t, err)
	require.NoError(t, ws.Session.SetText("stay present"))

	h := NewIntentionHandler(workspaces, nil, "v-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ctxkeys.WithIdentity(r.Context(), model.Identity{UserID: "watcher", Kind: model.IdentityAnonymous})
		h.Stream(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	go func() { _, _ = io.Copy(io.Discard, resp.Body) }()

	// Long enough for the janitor to run twice.
	time.Sleep(2500 * time.Millisecond)

	assert.Equal(t, 1, workspaces.Len())
	again, err := workspaces.Get(context.Background(), "watcher")
	require.NoError(t, err)
	assert.Same(t, ws, again)
	assert.Equal(t, "stay present", again.Session.Snapshot().IntentionText)
}
