package murmur

import (
	"bytes"
	"io"
)

// Attachment is a raw pre-send capture: a named byte source with a
// media type. The pending-attachment list owns an attachment until it
// is either consumed into a message (durable encoding produced) or
// discarded. Open returns a fresh reader over the raw bytes; encode
// failures surface as read errors from it.
type Attachment struct {
	Name      string
	MediaType string
	Open      func() (io.ReadCloser, error)
}

// NewAttachment wraps an in-memory payload as an Attachment.
func NewAttachment(name, mediaType string, data []byte) Attachment {
	return Attachment{
		Name:      name,
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
