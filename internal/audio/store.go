// Package audio persists synthesized transcript audio.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidahmann/callrelay/internal/speech"
)

// DefaultTimeout bounds a single Save.
const DefaultTimeout = 10 * time.Second

// Store saves a clip under key and returns where it ended up.
type Store interface {
	Save(ctx context.Context, key string, clip speech.Audio) (string, error)
}

// NewKey returns a unique, time-ordered object key without extension.
func NewKey(now time.Time) string {
	return fmt.Sprintf("transcript-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString())
}

// Extension maps an audio content type to a file extension.
func Extension(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "audio/wav"), strings.HasPrefix(contentType, "audio/x-wav"):
		return ".wav"
	case strings.HasPrefix(contentType, "audio/ogg"):
		return ".ogg"
	default:
		return ".mp3"
	}
}

// FileStore writes clips to Dir, creating it on first use.
type FileStore struct {
	Dir string
}

// Save writes <Dir>/<key><ext> and returns the path. Directory components in
// key are dropped.
func (s FileStore) Save(ctx context.Context, key string, clip speech.Audio) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("missing audio directory")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create audio directory: %w", err)
	}
	path := filepath.Join(s.Dir, filepath.Base(key)+Extension(clip.ContentType))
	if err := os.WriteFile(path, clip.Data, 0o640); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	return path, nil
}
