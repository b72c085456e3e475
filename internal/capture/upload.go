package capture

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/templui/ressona/internal/metrics"
)

const DefaultContentType = "audio/webm"

// UploadDevice is fed by the client: the browser records and posts chunks,
// the server buffers them per capture handle.
type UploadDevice struct {
	enabled     bool
	maxActive   int
	maxBytes    int64
	contentType string

	mu     sync.Mutex
	active int
}

type UploadConfig struct {
	Enabled     bool
	MaxActive   int
	MaxBytes    int64
	ContentType string
}

func NewUploadDevice(cfg UploadConfig) *UploadDevice {
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return &UploadDevice{
		enabled:     cfg.Enabled,
		maxActive:   cfg.MaxActive,
		maxBytes:    cfg.MaxBytes,
		contentType: contentType,
	}
}

func (d *UploadDevice) Acquire(ctx context.Context) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceAccess, err)
	}
	if !d.enabled {
		return nil, fmt.Errorf("%w: audio capture is disabled", ErrDeviceAccess)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.maxActive > 0 && d.active >= d.maxActive {
		return nil, fmt.Errorf("%w: all %d capture slots in use", ErrDeviceAccess, d.maxActive)
	}
	d.active++
	metrics.ActiveCaptures.Inc()

	return &uploadCapture{device: d}, nil
}

// Active reports the number of acquired handles.
func (d *UploadDevice) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

func (d *UploadDevice) release() {
	d.mu.Lock()
	d.active--
	d.mu.Unlock()
	metrics.ActiveCaptures.Dec()
}

type uploadCapture struct {
	device *UploadDevice

	mu       sync.Mutex
	chunks   [][]byte
	size     int64
	done     chan Result
	released bool
}

func (c *uploadCapture) Write(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil || c.released {
		return ErrClosed
	}
	if c.device.maxBytes > 0 && c.size+int64(len(chunk)) > c.device.maxBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, c.device.maxBytes)
	}

	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	c.chunks = append(c.chunks, buf)
	c.size += int64(len(chunk))
	return nil
}

func (c *uploadCapture) Finalize() <-chan Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return c.done
	}

	c.done = make(chan Result, 1)
	chunks := c.chunks
	c.chunks = nil

	go func(done chan<- Result) {
		data := bytes.Join(chunks, nil)
		done <- Result{Recording: Recording{
			Data:        data,
			ContentType: c.device.contentType,
			Chunks:      len(chunks),
		}}
		close(done)
	}(c.done)

	return c.done
}

func (c *uploadCapture) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()

	c.device.release()
	return nil
}
