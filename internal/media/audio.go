package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"banter/internal/logging"
)

const (
	audioSampleRate = 16000
	audioBitrate    = "24k"
)

// Audio is a handle to compressed audio in a Cache.
type Audio struct {
	Hash string

	// CutOff is set when the source ran past the duration cap and was
	// trimmed. Only populated on fresh puts; rehydrated handles read it
	// from the sidecar via Meta.
	CutOff bool

	cache *Cache
	mu    sync.Mutex
	data  []byte
}

// AudioMeta is the sidecar record written next to each cached audio file.
type AudioMeta struct {
	Duration float64 `json:"duration"`
	CutOff   bool    `json:"cut_off"`
}

// PutAudio transcodes audio to mono 16 kHz AAC (ADTS) capped at
// MaxAudioSeconds and stores it. In strict mode over-length audio is
// rejected with ErrUnsupportedMedia instead of trimmed.
func (c *Cache) PutAudio(ctx context.Context, data []byte) (*Audio, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	hash := digest(data)
	path := c.audioPath(hash)

	if _, err := os.Stat(path); err == nil {
		logging.MediaDebug("audio %s already cached", hash[:12])
		a := &Audio{Hash: hash, cache: c}
		if meta, err := a.Meta(); err == nil {
			a.CutOff = meta.CutOff
		}
		return a, nil
	}

	tmpIn, err := os.CreateTemp("", "banter-audio-in-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpIn.Name())
	if _, err := tmpIn.Write(data); err != nil {
		tmpIn.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	tmpIn.Close()

	duration, err := c.probeDuration(ctx, tmpIn.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to probe audio: %w", err)
	}

	cutOff := duration > float64(c.opts.MaxAudioSeconds)
	if cutOff && c.opts.StrictAudio {
		return nil, fmt.Errorf("%w: audio longer than %d seconds", ErrUnsupportedMedia, c.opts.MaxAudioSeconds)
	}

	timer := logging.StartTimer(logging.CategoryMedia, "audio transcode")
	compressed, err := c.transcodeAudio(ctx, tmpIn.Name())
	timer.Stop()
	if err != nil {
		return nil, err
	}

	if err := writeOnce(path, compressed); err != nil {
		return nil, err
	}
	meta := AudioMeta{Duration: duration, CutOff: cutOff}
	if metaBytes, err := json.Marshal(meta); err == nil {
		if err := writeOnce(c.audioMetaPath(hash), metaBytes); err != nil {
			logging.Get(logging.CategoryMedia).Warn("failed to write audio sidecar for %s: %v", hash[:12], err)
		}
	}

	return &Audio{Hash: hash, CutOff: cutOff, cache: c, data: compressed}, nil
}

// Audio returns a handle for a previously stored digest.
func (c *Cache) Audio(hash string) *Audio {
	return &Audio{Hash: hash, cache: c}
}

// probeDuration asks ffprobe for the first audio stream's duration.
func (c *Cache) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, c.opts.FFprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	// Some containers report per-stream duration as N/A; fall back to zero
	// so the clip is treated as within bounds.
	if out == "" || out == "N/A" {
		return 0, nil
	}
	duration, err := strconv.ParseFloat(strings.Split(out, "\n")[0], 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe output %q: %w", out, err)
	}
	return duration, nil
}

// transcodeAudio converts the input to the cache format, trimming at the cap.
func (c *Cache) transcodeAudio(ctx context.Context, inPath string) ([]byte, error) {
	tmpOut, err := os.CreateTemp("", "banter-audio-out-*.aac")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpOut.Close()
	defer os.Remove(tmpOut.Name())

	cmd := exec.CommandContext(ctx, c.opts.FFmpegPath,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inPath,
		"-ar", strconv.Itoa(audioSampleRate),
		"-ac", "1",
		"-b:a", audioBitrate,
		"-ss", "0",
		"-t", strconv.Itoa(c.opts.MaxAudioSeconds),
		"-f", "adts",
		tmpOut.Name(),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg transcode failed: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(tmpOut.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read transcoded audio: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return out, nil
}

// Meta reads the sidecar record for this audio, if one exists.
func (a *Audio) Meta() (AudioMeta, error) {
	var meta AudioMeta
	if a.cache == nil {
		return meta, fmt.Errorf("audio handle not bound to a cache")
	}
	data, err := os.ReadFile(a.cache.audioMetaPath(a.Hash))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse audio sidecar: %w", err)
	}
	return meta, nil
}

// Exists reports whether the content is present in the cache.
func (a *Audio) Exists() bool {
	if a == nil || a.cache == nil || a.Hash == "" {
		return false
	}
	_, err := os.Stat(a.cache.audioPath(a.Hash))
	return err == nil
}

// Bytes returns the compressed audio, loading from disk on first use.
func (a *Audio) Bytes() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data != nil {
		return a.data, nil
	}
	if a.cache == nil {
		return nil, fmt.Errorf("audio handle not bound to a cache")
	}
	data, err := readCached(a.cache.audioPath(a.Hash))
	if err != nil {
		return nil, err
	}
	a.data = data
	return data, nil
}

// Base64 returns the compressed audio as standard base64.
func (a *Audio) Base64() (string, error) {
	data, err := a.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
