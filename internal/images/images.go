// Package images stores mood entry pictures on S3-compatible object storage.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const keyPrefix = "mood-entries/"

var (
	ErrDisabled        = errors.New("image storage is not configured")
	ErrUnknownRef      = errors.New("image reference not owned by this store")
	ErrUnsupportedType = errors.New("unsupported image type")
	allowedFormats     = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
)

// Store uploads images and destroys them by the reference Upload returned.
type Store interface {
	Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error)
	Destroy(ctx context.Context, ref string) error
}

// objectKey names a new object for the content type.
func objectKey(contentType string) (string, error) {
	ext, ok := allowedFormats[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, contentType)
	}
	return keyPrefix + uuid.NewString() + ext, nil
}

// Memory keeps images in process. It backs tests and deployments without
// object storage.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Upload(_ context.Context, contentType string, r io.Reader, _ int64) (string, error) {
	key, err := objectKey(contentType)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "memory://" + key, nil
}

func (m *Memory) Destroy(_ context.Context, ref string) error {
	key, ok := strings.CutPrefix(ref, "memory://")
	if !ok || path.Clean(key) != key {
		return ErrUnknownRef
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Disabled rejects uploads and ignores destroys.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, io.Reader, int64) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Destroy(context.Context, string) error { return nil }
