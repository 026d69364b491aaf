// Package capture governs the lifecycle of an audio recording:
// idle -> recording -> reviewable -> attached or discarded.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/content"
)

// State is the recorder's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateReviewable
)

// Clip is one assembled recording, tagged with the container MIME
// negotiated when the device was acquired.
type Clip struct {
	Data     []byte
	MimeType string
}

// Recorder drives a single capture device. Only one recording may be
// active at a time; a second Start while recording is a caller error,
// not a new recording.
type Recorder struct {
	device Device
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	state  State
	handle Handle
	mime   string
	buf    bytes.Buffer
	done   chan struct{}
	clip   *Clip
}

// NewRecorder creates a Recorder over the given device.
func NewRecorder(device Device, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{device: device, logger: logger, now: time.Now}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the device and begins buffering audio. The negotiated
// MIME type is captured here, at acquisition time. On acquisition
// failure the recorder stays idle and the error wraps
// [murmur.ErrDeviceUnavailable].
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRecording:
		return murmur.ErrRecordingActive
	case StateReviewable:
		return murmur.ErrClipPending
	}

	handle, err := r.device.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire device: %w", err)
	}

	r.handle = handle
	r.mime = handle.MimeType()
	r.buf.Reset()
	r.done = make(chan struct{})
	r.state = StateRecording

	go r.drain(handle, r.done)
	return nil
}

// drain buffers captured audio until the handle is closed.
func (r *Recorder) drain(handle Handle, done chan struct{}) {
	defer close(done)
	chunk := make([]byte, 4096)
	for {
		n, err := handle.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			r.buf.Write(chunk[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				r.logger.Warn("capture read failed", "error", err)
			}
			return
		}
	}
}

// Stop ends the recording: the device handle is released and all
// buffered chunks are assembled into one reviewable clip.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return murmur.ErrNotRecording
	}
	handle, done := r.handle, r.done
	r.mu.Unlock()

	// Close signals the device to stop; the drain goroutine keeps
	// reading the flushed tail to EOF before the clip is assembled.
	if err := handle.Close(); err != nil {
		r.logger.Warn("capture device close failed", "error", err)
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.clip = &Clip{Data: data, MimeType: r.mime}
	r.handle = nil
	r.done = nil
	r.buf.Reset()
	r.state = StateReviewable
	return nil
}

// Clip returns the reviewable clip, if any.
func (r *Recorder) Clip() (Clip, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip == nil {
		return Clip{}, false
	}
	return *r.clip, true
}

// Attach consumes the reviewable clip as a pending attachment with a
// synthesized name and the negotiated MIME type, and resets to idle.
func (r *Recorder) Attach() (murmur.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReviewable || r.clip == nil {
		return murmur.Attachment{}, murmur.ErrNoClip
	}
	clip := *r.clip
	r.clip = nil
	r.state = StateIdle

	name := fmt.Sprintf("recording-%s.%s",
		r.now().Format("20060102-150405"),
		content.AudioFormat(clip.MimeType))
	return murmur.NewAttachment(name, clip.MimeType, clip.Data), nil
}

// Discard drops the reviewable clip and resets to idle.
func (r *Recorder) Discard() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateReviewable {
		return murmur.ErrNoClip
	}
	r.clip = nil
	r.state = StateIdle
	return nil
}
