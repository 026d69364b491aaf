// Package fsx resolves attachment paths and glob patterns to raw
// attachments. Supports ** for recursive matching.
package fsx

import (
	"fmt"
	"io"
	iofs "io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/murmur"
)

// Resolve expands pattern relative to base and returns file-backed
// attachments for every image or audio file it matches. Non-media
// matches are skipped; matching nothing attachable is an error so a
// typo never silently sends a bare message.
func Resolve(base, pattern string) ([]murmur.Attachment, error) {
	if pattern == "" {
		return nil, fmt.Errorf("empty attachment pattern")
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
	}

	var paths []string
	err := doublestar.GlobWalk(os.DirFS(base), pattern, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		paths = append(paths, filepath.Join(base, filepath.FromSlash(path)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("match pattern: %w", err)
	}
	sort.Strings(paths)

	var attachments []murmur.Attachment
	for _, p := range paths {
		mediaType, err := detectMediaType(p)
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(mediaType, "image/") && !strings.HasPrefix(mediaType, "audio/") {
			continue
		}
		attachments = append(attachments, fileAttachment(p, mediaType))
	}
	if len(attachments) == 0 {
		return nil, fmt.Errorf("no attachable files match %q", pattern)
	}
	return attachments, nil
}

func fileAttachment(path, mediaType string) murmur.Attachment {
	return murmur.Attachment{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// detectMediaType prefers the file extension and falls back to content
// sniffing for extensionless files.
func detectMediaType(path string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	t, _, _ := strings.Cut(http.DetectContentType(head[:n]), ";")
	return t, nil
}
