// Package ndjson parses newline-delimited JSON stream frames into
// semantic events, tolerating frames that span delivery chunks.
package ndjson

import (
	"bytes"
	"encoding/json"

	"github.com/fwojciec/murmur"
)

// frame is the wire shape of one stream record.
type frame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Tool    string `json:"tool"`
	Result  string `json:"result"`
}

// Parser is a stateful line-buffered demultiplexer. Feed it successive
// chunks from a chunked response body; it splits on newlines, holds
// back the trailing unterminated fragment, and parses each complete
// line as one JSON record. It performs no ordering of its own beyond
// preserving arrival order.
//
// Malformed lines are skipped, never fatal: one corrupt frame must not
// cost the remainder of a response. Skipped() exposes the count as a
// diagnostic.
type Parser struct {
	buf     []byte
	skipped int
}

// Feed appends a chunk and returns the events parsed from every
// complete line it finishes.
func (p *Parser) Feed(chunk []byte) []murmur.Event {
	p.buf = append(p.buf, chunk...)

	var events []murmur.Event
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return events
		}
		line := p.buf[:i]
		p.buf = p.buf[i+1:]
		if evt, ok := p.parseLine(line); ok {
			events = append(events, evt)
		}
	}
}

// Finish marks the end of the transport. A residual partial line is a
// truncated frame, not a complete event; it is discarded. Finish
// reports whether anything was dropped.
func (p *Parser) Finish() bool {
	dropped := len(bytes.TrimSpace(p.buf)) > 0
	if dropped {
		p.skipped++
	}
	p.buf = nil
	return dropped
}

// Buffered reports whether an unterminated fragment is pending.
func (p *Parser) Buffered() bool {
	return len(p.buf) > 0
}

// Skipped returns the number of frames dropped as malformed or
// truncated.
func (p *Parser) Skipped() int {
	return p.skipped
}

func (p *Parser) parseLine(line []byte) (murmur.Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		p.skipped++
		return nil, false
	}
	switch f.Type {
	case "token":
		return murmur.EventToken{Content: f.Content}, true
	case "status":
		return murmur.EventStatus{Label: f.Content}, true
	case "tool_result":
		return murmur.EventToolResult{Tool: f.Tool, Result: f.Result}, true
	case "error":
		return murmur.EventError{Message: f.Content}, true
	default:
		p.skipped++
		return nil, false
	}
}
