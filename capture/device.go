package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/fwojciec/murmur"
)

// Device grants exclusive access to an audio input. Acquire fails when
// the device is missing or permission is denied.
type Device interface {
	Acquire(ctx context.Context) (Handle, error)
}

// Handle is an open capture session. MimeType reports the negotiated
// container, fixed at acquisition time; it can vary by platform, so it
// must be read at start rather than inferred later. Read streams raw
// audio bytes; after Close the handle keeps delivering whatever the
// device flushed on shutdown, then returns io.EOF.
type Handle interface {
	MimeType() string
	io.ReadCloser
}

// CommandDevice captures audio by running an external recorder (e.g.
// arecord or sox) and reading its stdout. MimeType must match the
// container the command emits.
type CommandDevice struct {
	Command  []string
	MimeType string
}

// Acquire starts the capture process. The process gets its own group
// so Close can kill it without touching the client.
func (d CommandDevice) Acquire(ctx context.Context) (Handle, error) {
	if len(d.Command) == 0 {
		return nil, fmt.Errorf("no capture command configured: %w", murmur.ErrDeviceUnavailable)
	}

	cmd := exec.CommandContext(ctx, d.Command[0], d.Command[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, murmur.ErrDeviceUnavailable)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%v: %w", err, murmur.ErrDeviceUnavailable)
	}

	mime := d.MimeType
	if mime == "" {
		mime = "audio/wav"
	}
	return &commandHandle{cmd: cmd, stdout: stdout, mime: mime}, nil
}

type commandHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	mime   string

	mu         sync.Mutex
	readerDone bool
	waited     bool
}

func (h *commandHandle) MimeType() string { return h.mime }

// Read streams from the process's stdout. Wait closes the pipe, so the
// process is reaped only here, after the final read returns; reaping
// any earlier would discard buffered audio still in flight.
func (h *commandHandle) Read(p []byte) (int, error) {
	n, err := h.stdout.Read(p)
	if err != nil {
		h.mu.Lock()
		h.readerDone = true
		h.mu.Unlock()
		h.reap()
	}
	return n, err
}

// Close asks the recorder to stop. SIGTERM first so the process can
// flush its container trailer; the flushed tail stays readable until
// the reader drains the pipe to EOF.
func (h *commandHandle) Close() error {
	if h.cmd.Process != nil {
		syscall.Kill(-h.cmd.Process.Pid, syscall.SIGTERM)
	}
	h.mu.Lock()
	readerDone := h.readerDone
	h.mu.Unlock()
	if readerDone {
		return h.reap()
	}
	return nil
}

func (h *commandHandle) reap() error {
	h.mu.Lock()
	if h.waited {
		h.mu.Unlock()
		return nil
	}
	h.waited = true
	h.mu.Unlock()

	err := h.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}
