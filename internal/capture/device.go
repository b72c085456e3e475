// Package capture models the microphone: a device hands out capture handles
// that accept incremental audio chunks and finalize into one recording.
package capture

import (
	"context"
	"errors"
)

var (
	ErrDeviceAccess = errors.New("capture device unavailable")
	ErrClosed       = errors.New("capture closed")
	ErrTooLarge     = errors.New("recording too large")
)

// Recording is the finalized audio produced by a capture.
type Recording struct {
	Data        []byte
	ContentType string
	Chunks      int
}

type Result struct {
	Recording Recording
	Err       error
}

type Device interface {
	// Acquire opens a capture handle. Errors wrap ErrDeviceAccess.
	Acquire(ctx context.Context) (Capture, error)
}

type Capture interface {
	// Write appends an audio chunk. Empty chunks are ignored.
	Write(chunk []byte) error

	// Finalize stops accepting chunks. The returned channel yields exactly
	// one Result and is then closed. Repeated calls return the same channel.
	Finalize() <-chan Result

	// Release gives the device slot back. Safe to call more than once.
	Release() error
}
