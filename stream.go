package murmur

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving frames.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Stream uses a pull-based iterator pattern over a chunked response
// body. Cancellation flows through the context passed to the client's
// Stream call.
//
// Next() returns the next semantic event, io.EOF on normal completion,
// or a transport error. Text() returns the token text accumulated so
// far; after a mid-stream failure it holds the partial answer, which
// callers finalize rather than discard.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	Text() string
	Close() error
}
