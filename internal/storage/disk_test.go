package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/ressona/internal/config"
)

func TestDiskStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewDiskStorage(root, "/api/artifacts/")
	require.NoError(t, err)

	require.NoError(t, s.Save("sessions/u1/audios/a1", strings.NewReader("voice")))

	rc, err := s.Open("sessions/u1/audios/a1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "voice", string(data))

	assert.Equal(t, "/api/artifacts/sessions/u1/audios/a1", s.URL("sessions/u1/audios/a1"))

	require.NoError(t, s.Delete("sessions/u1/audios/a1"))
	require.NoError(t, s.Delete("sessions/u1/audios/a1"))
	_, err = os.Stat(filepath.Join(root, "sessions", "u1", "audios", "a1"))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStorageStaysInRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "artifacts")
	s, err := NewDiskStorage(root, "/api/artifacts")
	require.NoError(t, err)

	require.NoError(t, s.Save("../../escape", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(parent, "escape"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape"))
	assert.NoError(t, err)

	assert.ErrorIs(t, s.Save("/", strings.NewReader("x")), ErrInvalidPath)
}

func TestNewPicksDriver(t *testing.T) {
	s, err := New(&config.Config{StorageDriver: "disk", StoragePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &DiskStorage{}, s)

	_, err = New(&config.Config{StorageDriver: "ftp"})
	assert.Error(t, err)
}
