package murmur

// Event is a sealed interface representing one frame of a streamed
// response. Events are transient: only accumulated token text survives
// into the persisted assistant message. Transport failures come from
// Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventToken carries a text delta to append to the response buffer.
type EventToken struct {
	Content string
}

func (EventToken) event() {}

// EventStatus carries a human-readable tool/progress label. A new
// status replaces any prior one for the same turn.
type EventStatus struct {
	Label string
}

func (EventStatus) event() {}

// EventToolResult signals that a tool finished; it clears any pending
// status indicator. The result payload is opaque to this client.
type EventToolResult struct {
	Tool   string
	Result string
}

func (EventToolResult) event() {}

// EventError carries a backend-reported error for the current turn.
type EventError struct {
	Message string
}

func (EventError) event() {}

// Interface compliance checks.
var (
	_ Event = EventToken{}
	_ Event = EventStatus{}
	_ Event = EventToolResult{}
	_ Event = EventError{}
)
