package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
)

const (
	BackendFFmpeg = "ffmpeg"
	BackendGocv   = "gocv"
)

var (
	ErrUnavailable    = errors.New("camera unavailable")
	ErrReadFailed     = errors.New("camera frame read failed")
	ErrUnsupported    = errors.New("camera backend not supported by this build")
	errUnknownBackend = errors.New("unknown camera backend")
)

// Stream is an acquired capture device. Close releases it and may be called more than once.
type Stream interface {
	Read() (image.Image, error)
	Close() error
}

// Source acquires the capture device.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

type Config struct {
	Backend string
	Device  int
	FPS     int
}

func New(cfg Config) (Source, error) {
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendFFmpeg:
		return NewFFmpeg(cfg), nil
	case BackendGocv:
		return newGocv(cfg)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownBackend, cfg.Backend)
	}
}

func DevicePath(device int) string {
	return fmt.Sprintf("/dev/video%d", device)
}
