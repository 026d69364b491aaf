// Package mock provides test doubles for murmur interfaces using
// function fields.
package mock

import (
	"context"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/backend"
	"github.com/fwojciec/murmur/capture"
	"github.com/fwojciec/murmur/chat"
	"github.com/fwojciec/murmur/store"
)

// Interface compliance checks.
var (
	_ chat.Streamer  = (*Streamer)(nil)
	_ murmur.Stream  = (*Stream)(nil)
	_ store.Syncer   = (*Syncer)(nil)
	_ capture.Device = (*Device)(nil)
	_ capture.Handle = (*Handle)(nil)
)

// Streamer is a test double for chat.Streamer.
// Set StreamFn before calling Stream.
type Streamer struct {
	StreamFn func(ctx context.Context, req backend.ChatRequest) (murmur.Stream, error)
}

// Stream delegates to StreamFn.
func (s *Streamer) Stream(ctx context.Context, req backend.ChatRequest) (murmur.Stream, error) {
	return s.StreamFn(ctx, req)
}

// Stream is a test double for murmur.Stream.
// NextFn panics when nil to catch missing setup. The other fields are
// nil-safe because test code commonly calls defer stream.Close() and
// rarely needs custom behavior from them.
type Stream struct {
	NextFn  func() (murmur.Event, error)
	StateFn func() murmur.StreamState
	TextFn  func() string
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (murmur.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() murmur.StreamState {
	if s.StateFn == nil {
		return murmur.StreamStateNew
	}
	return s.StateFn()
}

// Text delegates to TextFn. Returns "" when TextFn is nil.
func (s *Stream) Text() string {
	if s.TextFn == nil {
		return ""
	}
	return s.TextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Syncer is a test double for store.Syncer.
// Nil fields degrade to an empty map and a successful write.
type Syncer struct {
	ReadHistoryFn  func(ctx context.Context) (map[string]murmur.Session, error)
	WriteHistoryFn func(ctx context.Context, sessions map[string]murmur.Session) error
}

// ReadHistory delegates to ReadHistoryFn.
func (s *Syncer) ReadHistory(ctx context.Context) (map[string]murmur.Session, error) {
	if s.ReadHistoryFn == nil {
		return map[string]murmur.Session{}, nil
	}
	return s.ReadHistoryFn(ctx)
}

// WriteHistory delegates to WriteHistoryFn.
func (s *Syncer) WriteHistory(ctx context.Context, sessions map[string]murmur.Session) error {
	if s.WriteHistoryFn == nil {
		return nil
	}
	return s.WriteHistoryFn(ctx, sessions)
}

// Device is a test double for capture.Device.
// Set AcquireFn before calling Acquire.
type Device struct {
	AcquireFn func(ctx context.Context) (capture.Handle, error)
}

// Acquire delegates to AcquireFn.
func (d *Device) Acquire(ctx context.Context) (capture.Handle, error) {
	return d.AcquireFn(ctx)
}

// Handle is a test double for capture.Handle.
// Set ReadFn before reading. MimeTypeFn defaults to "audio/wav" and
// CloseFn to a no-op.
type Handle struct {
	MimeTypeFn func() string
	ReadFn     func(p []byte) (int, error)
	CloseFn    func() error
}

// MimeType delegates to MimeTypeFn.
func (h *Handle) MimeType() string {
	if h.MimeTypeFn == nil {
		return "audio/wav"
	}
	return h.MimeTypeFn()
}

// Read delegates to ReadFn.
func (h *Handle) Read(p []byte) (int, error) {
	return h.ReadFn(p)
}

// Close delegates to CloseFn.
func (h *Handle) Close() error {
	if h.CloseFn == nil {
		return nil
	}
	return h.CloseFn()
}
