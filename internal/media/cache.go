// Package media stores compressed attachment content addressed by digest.
//
// Attachments are hashed over their original bytes, compressed once, and
// written under the cache directory as immutable digest-named files. Handles
// (Image, Audio) carry only the digest and load bytes lazily, so persisted
// transcripts stay small and reloads are cheap.
package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"banter/internal/logging"
)

// ErrUnsupportedMedia reports content the cache refuses to store, such as
// over-length audio in strict mode.
var ErrUnsupportedMedia = errors.New("unsupported media")

// Options tunes compression. Zero values fall back to the defaults below.
type Options struct {
	FFmpegPath      string
	FFprobePath     string
	StrictAudio     bool
	MaxAudioSeconds int
	MaxImageDim     int
	JPEGQuality     int
}

const (
	defaultMaxAudioSeconds = 30
	defaultMaxImageDim     = 512
	defaultJPEGQuality     = 75
)

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.MaxAudioSeconds <= 0 {
		o.MaxAudioSeconds = defaultMaxAudioSeconds
	}
	if o.MaxImageDim <= 0 {
		o.MaxImageDim = defaultMaxImageDim
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = defaultJPEGQuality
	}
	return o
}

// Cache is a write-once read-many content store rooted at a directory.
// Files are written via temp file + rename, so concurrent writers of the
// same digest are harmless.
type Cache struct {
	dir  string
	opts Options
}

// NewCache opens (creating if needed) a cache rooted at dir.
func NewCache(dir string, opts Options) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("media cache directory required")
	}
	for _, sub := range []string{"images", "audio"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create media cache directory: %w", err)
		}
	}
	return &Cache{dir: dir, opts: opts.withDefaults()}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

func (c *Cache) imagePath(hash string) string {
	return filepath.Join(c.dir, "images", hash+".jpeg")
}

func (c *Cache) audioPath(hash string) string {
	return filepath.Join(c.dir, "audio", hash+".aac")
}

func (c *Cache) audioMetaPath(hash string) string {
	return filepath.Join(c.dir, "audio", hash+".json")
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// writeOnce stores data at path unless a file is already there. The write
// goes through a temp file in the same directory so the rename is atomic.
func writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish cache file: %w", err)
	}
	logging.MediaDebug("cached %s (%d bytes)", filepath.Base(path), len(data))
	return nil
}

func readCached(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content not found in cache: %s", filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}
