package murmur

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrEmptyTurn indicates a send with no text and no attachments.
	ErrEmptyTurn = errors.New("empty turn: no text or attachments")

	// ErrTurnInFlight indicates a send while another turn is streaming.
	ErrTurnInFlight = errors.New("turn already in flight")

	// ErrDeviceUnavailable indicates the capture device could not be
	// acquired (permission denied or no device present).
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrRecordingActive indicates Start was called while a recording
	// is already in progress.
	ErrRecordingActive = errors.New("recording already active")

	// ErrNotRecording indicates Stop was called with no recording in
	// progress.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrClipPending indicates Start was called while a recorded clip
	// awaits review.
	ErrClipPending = errors.New("recorded clip awaiting review")

	// ErrNoClip indicates Attach or Discard was called with nothing to
	// review.
	ErrNoClip = errors.New("no recorded clip to review")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")
)
