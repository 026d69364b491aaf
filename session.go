package murmur

import (
	"time"

	"github.com/rivo/uniseg"
)

// Session represents one ordered conversation. CreatedAt is touched
// only by user-authored messages, never by assistant output, so recent
// activity sorts a session forward in listings.
type Session struct {
	ID        string
	Title     string
	Messages  []Message
	CreatedAt time.Time
}

// titleLimit is the number of grapheme clusters kept when deriving a
// session title from its first user message.
const titleLimit = 35

// DeriveTitle derives a display title from the first user message:
// the first 35 grapheme clusters, with "..." appended when truncated.
func DeriveTitle(text string) string {
	if uniseg.GraphemeClusterCount(text) <= titleLimit {
		return text
	}
	g := uniseg.NewGraphemes(text)
	var end, n int
	for g.Next() {
		n++
		_, end = g.Positions()
		if n == titleLimit {
			break
		}
	}
	return text[:end] + "..."
}
