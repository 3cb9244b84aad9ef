//go:build gocv

package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

type gocvSource struct {
	cfg Config
}

func newGocv(cfg Config) (Source, error) {
	return &gocvSource{cfg: cfg}, nil
}

func (s *gocvSource) Open(ctx context.Context) (Stream, error) {
	webcam, err := gocv.OpenVideoCapture(s.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, DevicePath(s.cfg.Device))
	}
	webcam.Set(gocv.VideoCaptureFPS, float64(s.cfg.FPS))

	return &gocvCamera{webcam: webcam, mat: gocv.NewMat()}, nil
}

type gocvCamera struct {
	webcam *gocv.VideoCapture
	mat    gocv.Mat
	once   sync.Once
}

func (c *gocvCamera) Read() (image.Image, error) {
	if ok := c.webcam.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrReadFailed
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return img, nil
}

func (c *gocvCamera) Close() error {
	var err error
	c.once.Do(func() {
		c.mat.Close()
		err = c.webcam.Close()
	})
	return err
}
