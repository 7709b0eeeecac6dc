package media

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"golang.org/x/image/draw"

	"banter/internal/logging"
)

// Image is a handle to a compressed image in a Cache. Only the digest is
// persisted; bytes reload lazily from the cache directory.
type Image struct {
	Hash string

	cache *Cache
	mu    sync.Mutex
	data  []byte
}

// PutImage compresses an image to a JPEG thumbnail and stores it, returning
// a handle. The digest covers the original bytes, so re-uploads of the same
// content dedupe regardless of compression settings.
func (c *Cache) PutImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	hash := digest(data)
	path := c.imagePath(hash)

	if _, err := os.Stat(path); err == nil {
		logging.MediaDebug("image %s already cached", hash[:12])
		return &Image{Hash: hash, cache: c}, nil
	}

	timer := logging.StartTimer(logging.CategoryMedia, "image compression")
	compressed, err := c.compressImage(data)
	timer.Stop()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}

	if err := writeOnce(path, compressed); err != nil {
		return nil, err
	}
	return &Image{Hash: hash, cache: c, data: compressed}, nil
}

// Image returns a handle for a previously stored digest, as found in
// persisted transcripts. The content may or may not still be on disk.
func (c *Cache) Image(hash string) *Image {
	return &Image{Hash: hash, cache: c}
}

// compressImage decodes, downsizes to fit MaxImageDim and re-encodes as JPEG.
// Images already within bounds are still re-encoded so every cached file is
// a plain baseline JPEG.
func (c *Cache) compressImage(data []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	maxDim := c.opts.MaxImageDim

	// Thumbnail semantics: downsize only, preserving aspect ratio.
	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		dw := int(float64(w) * scale)
		dh := int(float64(h) * scale)
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.BiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
		src = dst
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, src, &jpeg.Options{Quality: c.opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	logging.MediaDebug("compressed %s image %dx%d -> %d bytes", format, w, h, out.Len())
	return out.Bytes(), nil
}

// Exists reports whether the content is present in the cache.
func (i *Image) Exists() bool {
	if i == nil || i.cache == nil || i.Hash == "" {
		return false
	}
	_, err := os.Stat(i.cache.imagePath(i.Hash))
	return err == nil
}

// Bytes returns the compressed image, loading from disk on first use.
func (i *Image) Bytes() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.data != nil {
		return i.data, nil
	}
	if i.cache == nil {
		return nil, fmt.Errorf("image handle not bound to a cache")
	}
	data, err := readCached(i.cache.imagePath(i.Hash))
	if err != nil {
		return nil, err
	}
	i.data = data
	return data, nil
}

// Base64 returns the compressed image as standard base64.
func (i *Image) Base64() (string, error) {
	data, err := i.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DataURL returns the image as a data: URL suitable for image_url parts.
func (i *Image) DataURL() (string, error) {
	b64, err := i.Base64()
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + b64, nil
}
