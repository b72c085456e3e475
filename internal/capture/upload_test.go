package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadCaptureJoinsChunks(t *testing.T) {
	d := NewUploadDevice(UploadConfig{Enabled: true})

	c, err := d.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.Active())

	require.NoError(t, c.Write([]byte("abc")))
	require.NoError(t, c.Write(nil))
	require.NoError(t, c.Write([]byte("def")))

	results := c.Finalize()
	assert.Equal(t, results, c.Finalize())

	res, ok := <-results
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, "abcdef", string(res.Recording.Data))
	assert.Equal(t, DefaultContentType, res.Recording.ContentType)
	assert.Equal(t, 2, res.Recording.Chunks)

	_, ok = <-results
	assert.False(t, ok)

	assert.ErrorIs(t, c.Write([]byte("late")), ErrClosed)

	require.NoError(t, c.Release())
	require.NoError(t, c.Release())
	assert.Equal(t, 0, d.Active())
}

func TestUploadDeviceAccess(t *testing.T) {
	_, err := NewUploadDevice(UploadConfig{}).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeviceAccess)

	d := NewUploadDevice(UploadConfig{Enabled: true, MaxActive: 1})
	first, err := d.Acquire(context.Background())
	require.NoError(t, err)

	_, err = d.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrDeviceAccess)

	require.NoError(t, first.Release())
	second, err := d.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, second.Release())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Acquire(ctx)
	assert.ErrorIs(t, err, ErrDeviceAccess)
}

func TestUploadCaptureSizeLimit(t *testing.T) {
	d := NewUploadDevice(UploadConfig{Enabled: true, MaxBytes: 4, ContentType: "audio/ogg"})
	c, err := d.Acquire(context.Background())
	require.NoError(t, err)
	defer c.Release()

	require.NoError(t, c.Write([]byte("abc")))
	assert.ErrorIs(t, c.Write([]byte("de")), ErrTooLarge)

	res := <-c.Finalize()
	assert.Equal(t, "abc", string(res.Recording.Data))
	assert.Equal(t, "audio/ogg", res.Recording.ContentType)
}
