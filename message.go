package murmur

import (
	"encoding/json"
	"time"
)

// Message is one entry in a conversation. IDs are caller-generated and
// unique within a session; re-saving under the same ID replaces the
// message in place rather than appending.
type Message struct {
	ID        string
	Role      Role
	Parts     []Part
	Timestamp time.Time
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// Part is a sealed interface representing one piece of message content.
// The unexported marker method prevents external implementations.
type Part interface {
	part()
}

// TextPart contains plain text.
type TextPart struct {
	Text string
}

func (TextPart) part() {}

// ImagePart references an image by URI. Committed messages carry data
// URIs only; transient object handles never cross the persistence
// boundary.
type ImagePart struct {
	URL string
}

func (ImagePart) part() {}

// AudioPart contains an inline audio payload: headerless base64 data
// plus the container format the audio was captured in ("wav", "webm", ...).
type AudioPart struct {
	Data   string
	Format string
}

func (AudioPart) part() {}

// OpaquePart preserves a part whose type tag this client does not
// recognize. It round-trips through persistence untouched so history
// written by newer clients survives a read-modify-write cycle here.
type OpaquePart struct {
	Type string
	Raw  json.RawMessage
}

func (OpaquePart) part() {}

// Interface compliance checks.
var (
	_ Part = TextPart{}
	_ Part = ImagePart{}
	_ Part = AudioPart{}
	_ Part = OpaquePart{}
)
