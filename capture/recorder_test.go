package capture_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/capture"
	"github.com/fwojciec/murmur/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkHandle feeds fixed chunks and then blocks until closed, like a
// live capture pipe.
type chunkHandle struct {
	mime   string
	chunks [][]byte

	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func newChunkHandle(mime string, chunks ...[]byte) *chunkHandle {
	return &chunkHandle{mime: mime, chunks: chunks, closed: make(chan struct{})}
}

func (h *chunkHandle) MimeType() string { return h.mime }

func (h *chunkHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	if len(h.chunks) > 0 {
		chunk := h.chunks[0]
		h.chunks = h.chunks[1:]
		h.mu.Unlock()
		return copy(p, chunk), nil
	}
	h.mu.Unlock()
	<-h.closed
	return 0, io.EOF
}

func (h *chunkHandle) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

func TestRecorder_Lifecycle(t *testing.T) {
	t.Parallel()
	handle := newChunkHandle("audio/webm;codecs=opus", []byte("aud"), []byte("io!"))
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) { return handle, nil },
	}
	r := capture.NewRecorder(device, nil)

	require.NoError(t, r.Start(context.Background()))
	assert.Equal(t, capture.StateRecording, r.State())

	require.NoError(t, r.Stop())
	assert.Equal(t, capture.StateReviewable, r.State())

	clip, ok := r.Clip()
	require.True(t, ok)
	assert.Equal(t, []byte("audio!"), clip.Data)
	assert.Equal(t, "audio/webm;codecs=opus", clip.MimeType)
}

// tailHandle delivers a head chunk, blocks like a live device, and
// flushes a tail chunk only after Close, the way a recorder process
// writes its container trailer on SIGTERM.
type tailHandle struct {
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	stage int
}

func newTailHandle() *tailHandle {
	return &tailHandle{closed: make(chan struct{})}
}

func (h *tailHandle) MimeType() string { return "audio/webm" }

func (h *tailHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	stage := h.stage
	h.stage++
	h.mu.Unlock()
	switch stage {
	case 0:
		return copy(p, "HEAD"), nil
	case 1:
		<-h.closed
		return copy(p, "TAIL"), nil
	default:
		return 0, io.EOF
	}
}

func (h *tailHandle) Close() error {
	h.once.Do(func() { close(h.closed) })
	return nil
}

func TestRecorder_Stop_IncludesTailFlushedOnClose(t *testing.T) {
	t.Parallel()
	handle := newTailHandle()
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) { return handle, nil },
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, r.Stop())

	// Every byte readable up to EOF belongs to the clip, including
	// what the device flushed after the stop signal.
	clip, ok := r.Clip()
	require.True(t, ok)
	assert.Equal(t, []byte("HEADTAIL"), clip.Data)
}

func TestRecorder_Start_WhileRecordingRejected(t *testing.T) {
	t.Parallel()
	first := newChunkHandle("audio/wav")
	acquisitions := 0
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) {
			acquisitions++
			return first, nil
		},
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))

	// The second attempt must not touch the device; the original handle
	// keeps recording.
	err := r.Start(context.Background())

	assert.ErrorIs(t, err, murmur.ErrRecordingActive)
	assert.Equal(t, 1, acquisitions)
	assert.Equal(t, capture.StateRecording, r.State())
	require.NoError(t, r.Stop())
}

func TestRecorder_Start_WithClipPendingRejected(t *testing.T) {
	t.Parallel()
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) {
			return newChunkHandle("audio/wav", []byte("x")), nil
		},
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())

	err := r.Start(context.Background())

	assert.ErrorIs(t, err, murmur.ErrClipPending)
	assert.Equal(t, capture.StateReviewable, r.State())
}

func TestRecorder_Start_DeviceUnavailable(t *testing.T) {
	t.Parallel()
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) {
			return nil, murmur.ErrDeviceUnavailable
		},
	}
	r := capture.NewRecorder(device, nil)

	err := r.Start(context.Background())

	assert.ErrorIs(t, err, murmur.ErrDeviceUnavailable)
	assert.Equal(t, capture.StateIdle, r.State())
}

func TestRecorder_Stop_WhenIdle(t *testing.T) {
	t.Parallel()
	r := capture.NewRecorder(&mock.Device{}, nil)

	assert.ErrorIs(t, r.Stop(), murmur.ErrNotRecording)
}

func TestRecorder_Attach(t *testing.T) {
	t.Parallel()
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) {
			return newChunkHandle("audio/webm;codecs=opus", []byte("blob")), nil
		},
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())

	a, err := r.Attach()

	require.NoError(t, err)
	// Name extension follows the negotiated container, not a constant.
	assert.Regexp(t, `^recording-\d{8}-\d{6}\.webm$`, a.Name)
	assert.Equal(t, "audio/webm;codecs=opus", a.MediaType)
	rc, err := a.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob"), data)

	assert.Equal(t, capture.StateIdle, r.State())
	_, ok := r.Clip()
	assert.False(t, ok)
}

func TestRecorder_Attach_NoClip(t *testing.T) {
	t.Parallel()
	r := capture.NewRecorder(&mock.Device{}, nil)

	_, err := r.Attach()

	assert.ErrorIs(t, err, murmur.ErrNoClip)
}

func TestRecorder_Discard(t *testing.T) {
	t.Parallel()
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) {
			return newChunkHandle("audio/wav", []byte("junk")), nil
		},
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())

	require.NoError(t, r.Discard())

	assert.Equal(t, capture.StateIdle, r.State())
	_, ok := r.Clip()
	assert.False(t, ok)

	// A fresh recording starts cleanly after a discard.
	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

func TestRecorder_Discard_NoClip(t *testing.T) {
	t.Parallel()
	r := capture.NewRecorder(&mock.Device{}, nil)

	assert.ErrorIs(t, r.Discard(), murmur.ErrNoClip)
}

func TestRecorder_DrainToleratesReadError(t *testing.T) {
	t.Parallel()
	reads := 0
	handle := &mock.Handle{
		MimeTypeFn: func() string { return "audio/wav" },
		ReadFn: func(p []byte) (int, error) {
			reads++
			if reads == 1 {
				return copy(p, []byte("part")), nil
			}
			return 0, errors.New("device yanked")
		},
	}
	device := &mock.Device{
		AcquireFn: func(ctx context.Context) (capture.Handle, error) { return handle, nil },
	}
	r := capture.NewRecorder(device, nil)
	require.NoError(t, r.Start(context.Background()))

	require.NoError(t, r.Stop())

	clip, ok := r.Clip()
	require.True(t, ok)
	assert.Equal(t, []byte("part"), clip.Data)
}
