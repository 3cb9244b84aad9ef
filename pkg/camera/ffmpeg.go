package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

const megabyte = 1024 * 1024

var (
	JpegSOI = []byte{0xFF, 0xD8}
	JpegEOI = []byte{0xFF, 0xD9}
)

// SplitJpeg is a bufio.SplitFunc that yields whole JPEG images from an MJPEG stream.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, JpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], JpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// FFmpeg reads a V4L2 device through an ffmpeg process that emits MJPEG on stdout.
type FFmpeg struct {
	cfg Config
	cmd func(ctx context.Context, cfg Config) *exec.Cmd
}

func NewFFmpeg(cfg Config) *FFmpeg {
	return &FFmpeg{cfg: cfg, cmd: NewFFmpegCmd}
}

// NewFFmpegCmd builds the capture pipeline for cfg.Device at cfg.FPS.
func NewFFmpegCmd(ctx context.Context, cfg Config) *exec.Cmd {
	return exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(cfg.FPS),
		"-i", DevicePath(cfg.Device),
		"-f", "image2pipe", "-vcodec", "mjpeg", "-",
	)
}

func (f *FFmpeg) Open(ctx context.Context) (Stream, error) {
	cmd := f.cmd(ctx, f.cfg)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return newStreamCamera(stdout, func() error {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
		return nil
	}), nil
}

// streamCamera decodes JPEG frames from any MJPEG reader.
type streamCamera struct {
	scanner *bufio.Scanner
	rc      io.ReadCloser
	release func() error

	once sync.Once
	err  error
}

func newStreamCamera(rc io.ReadCloser, release func() error) *streamCamera {
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJpeg)
	return &streamCamera{scanner: scanner, rc: rc, release: release}
}

func (c *streamCamera) Read() (image.Image, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, io.EOF)
	}

	img, err := jpeg.Decode(bytes.NewReader(c.scanner.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return img, nil
}

func (c *streamCamera) Close() error {
	c.once.Do(func() {
		c.rc.Close()
		if c.release != nil {
			c.err = c.release()
		}
	})
	return c.err
}
