// Package chat ties the session engine together: it assembles outgoing
// turns, drives the response stream, and commits both sides of a turn
// to the session store.
package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/backend"
	"github.com/fwojciec/murmur/content"
	"github.com/fwojciec/murmur/store"
)

// Streamer issues one chat request and returns its event stream.
// Implemented by backend.Client.
type Streamer interface {
	Stream(ctx context.Context, req backend.ChatRequest) (murmur.Stream, error)
}

// Orchestrator owns the pending-attachment list and the single-flight
// turn lock. It is an explicit context object: everything it needs is
// injected, nothing is ambient.
type Orchestrator struct {
	client  Streamer
	store   *store.Store
	logger  *slog.Logger
	onEvent func(TurnEvent)

	turn sync.Mutex // held for the duration of one Send

	mu       sync.Mutex
	settings murmur.Settings
	pending  []murmur.Attachment
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithEventHandler sets the callback that receives lifecycle events.
// If not set, events are silently discarded.
func WithEventHandler(h func(TurnEvent)) Option {
	return func(o *Orchestrator) { o.onEvent = h }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithSettings sets the initial settings forwarded with each request.
func WithSettings(s murmur.Settings) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// New creates an Orchestrator over the given backend client and store.
func New(client Streamer, st *store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client: client,
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetSettings replaces the settings forwarded with each request.
func (o *Orchestrator) SetSettings(s murmur.Settings) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.settings = s
}

// Settings returns the current settings.
func (o *Orchestrator) Settings() murmur.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

// AddAttachment appends a raw capture to the pending list. The list
// owns the attachment until a send consumes it or Discard drops it.
func (o *Orchestrator) AddAttachment(a murmur.Attachment) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, a)
}

// PendingAttachments returns a snapshot of the pending list.
func (o *Orchestrator) PendingAttachments() []murmur.Attachment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]murmur.Attachment, len(o.pending))
	copy(out, o.pending)
	return out
}

// DiscardAttachments drops the pending list without sending.
func (o *Orchestrator) DiscardAttachments() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = nil
}

// takePending atomically validates the turn and transfers ownership of
// the pending list to the caller.
func (o *Orchestrator) takePending(text string) ([]murmur.Attachment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if strings.TrimSpace(text) == "" && len(o.pending) == 0 {
		return nil, murmur.ErrEmptyTurn
	}
	taken := o.pending
	o.pending = nil
	return taken, nil
}

// Send runs one full turn: commit the user message, issue the request,
// drive the stream, and finalize the assistant message under its
// provisional ID on every outcome. It blocks until the turn settles.
func (o *Orchestrator) Send(ctx context.Context, sessionID, text string) error {
	if !o.turn.TryLock() {
		return murmur.ErrTurnInFlight
	}
	defer o.turn.Unlock()

	attachments, err := o.takePending(text)
	if err != nil {
		return err
	}

	userID := murmur.NewID()
	o.emit(UserPending{SessionID: sessionID, MessageID: userID, Text: text, Attachments: attachments})

	userMsg, err := o.commitUserTurn(ctx, sessionID, userID, text, attachments)
	if err != nil {
		o.emit(TurnAborted{SessionID: sessionID, MessageID: userID, Err: err})
		return err
	}
	o.emit(UserCommitted{SessionID: sessionID, Message: userMsg})

	assistantID := murmur.NewID()
	o.emit(AssistantStarted{SessionID: sessionID, MessageID: assistantID})

	buf := o.streamAssistantTurn(ctx, sessionID, assistantID)

	// Finalize on all paths: success, rejection, and network failure
	// alike commit whatever accumulated under the provisional ID. The
	// persist must outlive the turn context, or a cancelled turn could
	// never write its partial answer.
	final := murmur.Message{
		ID:        assistantID,
		Role:      murmur.RoleAssistant,
		Parts:     []murmur.Part{murmur.TextPart{Text: buf}},
		Timestamp: time.Now(),
	}
	o.store.UpsertMessage(sessionID, final)
	o.store.Persist(context.WithoutCancel(ctx))
	o.emit(AssistantFinal{SessionID: sessionID, Message: final})
	return nil
}

// commitUserTurn encodes attachments, upserts the user message, sets a
// derived title on the session's first message, and persists. The user
// turn is durable before the outgoing request is issued, so a crash
// mid-stream cannot lose it.
func (o *Orchestrator) commitUserTurn(ctx context.Context, sessionID, userID, text string, attachments []murmur.Attachment) (murmur.Message, error) {
	parts := []murmur.Part{murmur.TextPart{Text: text}}
	if len(attachments) > 0 {
		encoded, err := content.EncodeAll(ctx, attachments)
		if err != nil {
			return murmur.Message{}, err
		}
		parts = append(parts, encoded...)
	}

	msg := murmur.Message{
		ID:        userID,
		Role:      murmur.RoleUser,
		Parts:     parts,
		Timestamp: time.Now(),
	}
	if err := murmur.ValidateMessage(msg); err != nil {
		return murmur.Message{}, err
	}
	o.store.UpsertMessage(sessionID, msg)

	if sess, ok := o.store.Get(sessionID); ok && len(sess.Messages) == 1 {
		title := murmur.DeriveTitle(text)
		o.store.SetTitle(sessionID, title)
		o.emit(TitleChanged{SessionID: sessionID, Title: title})
	}

	o.store.Persist(ctx)
	return msg, nil
}

// streamAssistantTurn issues the request and drains the stream,
// returning the accumulated response text. Failures append a visible
// error marker instead of propagating: the partial buffer is preserved.
func (o *Orchestrator) streamAssistantTurn(ctx context.Context, sessionID, assistantID string) string {
	req := backend.ChatRequest{
		SessionID: sessionID,
		Messages:  o.store.Messages(sessionID),
		Settings:  o.Settings(),
	}

	var buf strings.Builder
	appendText := func(s string) {
		buf.WriteString(s)
		o.emit(AssistantDelta{SessionID: sessionID, MessageID: assistantID, Delta: s})
	}

	stream, err := o.client.Stream(ctx, req)
	if err != nil {
		appendText(errorMarker(buf.Len(), errorDetail(err)))
		return buf.String()
	}
	defer stream.Close()

	for {
		evt, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			appendText(errorMarker(buf.Len(), errorDetail(err)))
			break
		}
		switch e := evt.(type) {
		case murmur.EventToken:
			appendText(e.Content)
		case murmur.EventStatus:
			o.emit(AssistantStatus{SessionID: sessionID, MessageID: assistantID, Label: e.Label})
		case murmur.EventToolResult:
			o.emit(AssistantStatus{SessionID: sessionID, MessageID: assistantID})
		case murmur.EventError:
			appendText(errorMarker(buf.Len(), e.Message))
		}
	}

	// Clear any dangling status indicator before the turn settles.
	o.emit(AssistantStatus{SessionID: sessionID, MessageID: assistantID})
	return buf.String()
}

// PushSettings propagates the current settings to the backend without
// sending a turn: a valid zero-content chat call.
func (o *Orchestrator) PushSettings(ctx context.Context, sessionID string) error {
	stream, err := o.client.Stream(ctx, backend.ChatRequest{
		SessionID: sessionID,
		Settings:  o.Settings(),
	})
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		if _, err := stream.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (o *Orchestrator) emit(evt TurnEvent) {
	if o.onEvent != nil {
		o.onEvent(evt)
	}
}

// errorMarker renders a backend or transport failure as visible turn
// content, separated from any partial answer already accumulated.
func errorMarker(bufLen int, detail string) string {
	marker := "[error: " + detail + "]"
	if bufLen > 0 {
		return "\n\n" + marker
	}
	return marker
}

func errorDetail(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return err.Error()
}
