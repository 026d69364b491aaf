package chat

import "github.com/fwojciec/murmur"

// TurnEvent is a sealed interface over the lifecycle events a
// presentation layer renders. Optimistic updates are an explicit
// two-phase commit: UserPending arrives immediately, UserCommitted
// once the durable encode and persist complete. Every event carries
// its session ID because an abandoned stream finalizes into a session
// that may no longer be on screen.
// The unexported marker method prevents external implementations.
type TurnEvent interface {
	turnEvent()
}

// UserPending is the provisional user turn, emitted before attachment
// encoding for immediate display. Attachments are still transient
// handles here.
type UserPending struct {
	SessionID   string
	MessageID   string
	Text        string
	Attachments []murmur.Attachment
}

func (UserPending) turnEvent() {}

// UserCommitted confirms the user turn: fully encoded and durably
// upserted.
type UserCommitted struct {
	SessionID string
	Message   murmur.Message
}

func (UserCommitted) turnEvent() {}

// TurnAborted signals that a provisional user turn was not committed
// (attachment encoding failed); the presentation should drop the
// pending bubble.
type TurnAborted struct {
	SessionID string
	MessageID string
	Err       error
}

func (TurnAborted) turnEvent() {}

// TitleChanged reports a derived session title.
type TitleChanged struct {
	SessionID string
	Title     string
}

func (TitleChanged) turnEvent() {}

// AssistantStarted is the provisional empty assistant turn.
type AssistantStarted struct {
	SessionID string
	MessageID string
}

func (AssistantStarted) turnEvent() {}

// AssistantDelta carries an increment of assistant text to render.
type AssistantDelta struct {
	SessionID string
	MessageID string
	Delta     string
}

func (AssistantDelta) turnEvent() {}

// AssistantStatus carries a transient progress indicator, replacing
// any prior one for the turn. An empty label clears the indicator.
type AssistantStatus struct {
	SessionID string
	MessageID string
	Label     string
}

func (AssistantStatus) turnEvent() {}

// AssistantFinal is the committed assistant message, emitted on every
// outcome: success, rejection, and mid-stream failure alike.
type AssistantFinal struct {
	SessionID string
	Message   murmur.Message
}

func (AssistantFinal) turnEvent() {}

// Interface compliance checks.
var (
	_ TurnEvent = UserPending{}
	_ TurnEvent = UserCommitted{}
	_ TurnEvent = TurnAborted{}
	_ TurnEvent = TitleChanged{}
	_ TurnEvent = AssistantStarted{}
	_ TurnEvent = AssistantDelta{}
	_ TurnEvent = AssistantStatus{}
	_ TurnEvent = AssistantFinal{}
)
