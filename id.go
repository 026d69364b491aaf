package murmur

import "github.com/google/uuid"

// NewID returns a collision-resistant identifier for sessions and
// messages. Timestamp-prefixed random strings collide under rapid
// successive sends, so IDs are random UUIDs instead.
func NewID() string {
	return uuid.NewString()
}
