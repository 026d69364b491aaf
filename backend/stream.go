package backend

import (
	"context"
	"io"
	"strings"

	"github.com/fwojciec/murmur"
	"github.com/fwojciec/murmur/ndjson"
)

// stream implements [murmur.Stream] over an NDJSON response body.
// Token text accumulates in arrival order; Text() exposes the partial
// buffer so a failed stream still yields whatever arrived.
type stream struct {
	body    io.ReadCloser
	ctx     context.Context
	parser  ndjson.Parser
	pending []murmur.Event
	chunk   []byte
	state   murmur.StreamState
	text    strings.Builder
	err     error // terminal error, if any
}

// Interface compliance check.
var _ murmur.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser) *stream {
	return &stream{
		body:  body,
		ctx:   ctx,
		chunk: make([]byte, 4096),
		state: murmur.StreamStateNew,
	}
}

// Next returns the next event in arrival order, reading more chunks
// from the transport as needed. Returns io.EOF on normal completion.
// Events parsed from a chunk that arrived together with a transport
// error are delivered before the error is surfaced; a failing read can
// carry the tail of the response.
func (s *stream) Next() (murmur.Event, error) {
	for {
		if s.state == murmur.StreamStateClosed {
			return nil, murmur.ErrStreamClosed
		}

		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			if tok, ok := evt.(murmur.EventToken); ok {
				s.text.WriteString(tok.Content)
			}
			return evt, nil
		}

		switch s.state {
		case murmur.StreamStateComplete:
			return nil, io.EOF
		case murmur.StreamStateError:
			return nil, s.err
		}

		if err := s.ctx.Err(); err != nil {
			s.state = murmur.StreamStateError
			s.err = err
			return nil, s.err
		}

		n, err := s.body.Read(s.chunk)
		if n > 0 {
			s.pending = s.parser.Feed(s.chunk[:n])
		}
		switch {
		case err == io.EOF:
			s.parser.Finish()
			s.state = murmur.StreamStateComplete
		case err != nil:
			s.state = murmur.StreamStateError
			s.err = err
		case n > 0 && s.state == murmur.StreamStateNew:
			s.state = murmur.StreamStateStreaming
		}
	}
}

// State returns the current stream state.
func (s *stream) State() murmur.StreamState {
	return s.state
}

// Text returns the token text accumulated so far.
func (s *stream) Text() string {
	return s.text.String()
}

// Close closes the underlying response body.
func (s *stream) Close() error {
	if s.state != murmur.StreamStateComplete && s.state != murmur.StreamStateError {
		s.state = murmur.StreamStateClosed
	}
	return s.body.Close()
}
