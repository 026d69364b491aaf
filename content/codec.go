// Package content converts raw capture attachments into durable
// message parts and message parts back into displayable sources.
package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fwojciec/murmur"
)

// Encode reads an attachment's raw bytes and produces its durable
// part: a data-URI image part for image/* media, an inline base64
// audio part for audio/* media. The audio format tag is derived from
// the captured container, not hardcoded, so a webm capture is labeled
// webm.
func Encode(ctx context.Context, a murmur.Attachment) (murmur.Part, error) {
	data, err := readAll(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", a.Name, err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	switch {
	case strings.HasPrefix(a.MediaType, "image/"):
		return murmur.ImagePart{URL: "data:" + a.MediaType + ";base64," + encoded}, nil
	case strings.HasPrefix(a.MediaType, "audio/"):
		return murmur.AudioPart{Data: encoded, Format: AudioFormat(a.MediaType)}, nil
	default:
		return nil, fmt.Errorf("encode %s: unsupported media type %q", a.Name, a.MediaType)
	}
}

// EncodeAll encodes attachments concurrently. Results preserve input
// order on join. Any read failure fails the whole batch: a message is
// committed with all of its attachments or not at all.
func EncodeAll(ctx context.Context, attachments []murmur.Attachment) ([]murmur.Part, error) {
	if len(attachments) == 0 {
		return nil, nil
	}

	parts := make([]murmur.Part, len(attachments))
	errs := make([]error, len(attachments))

	var wg sync.WaitGroup
	for i, a := range attachments {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parts[i], errs[i] = Encode(ctx, a)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return parts, nil
}

// AudioFormat maps a captured MIME type to the container format tag
// used in inline audio parts ("audio/webm;codecs=opus" -> "webm").
func AudioFormat(mediaType string) string {
	sub, _, _ := strings.Cut(strings.TrimPrefix(mediaType, "audio/"), ";")
	sub = strings.TrimPrefix(strings.TrimSpace(sub), "x-")
	switch sub {
	case "mpeg":
		return "mp3"
	case "":
		return "wav"
	default:
		return sub
	}
}

func readAll(ctx context.Context, a murmur.Attachment) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
