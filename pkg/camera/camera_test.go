package camera

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedFrame(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, jpeg.Encode(buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestSplitJpeg(t *testing.T) {
	frame1 := []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9}
	frame2 := []byte{0xFF, 0xD8, 0x03, 0xFF, 0xD9}
	stream := append(append([]byte{0x00, 0x00}, frame1...), frame2...)

	scanner := bufio.NewScanner(bytes.NewReader(stream))
	scanner.Split(SplitJpeg)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte{}, scanner.Bytes()...))
	}

	require.NoError(t, scanner.Err())
	assert.Equal(t, [][]byte{frame1, frame2}, frames)
}

type trackedReader struct {
	io.Reader
	closed int
}

func (r *trackedReader) Close() error {
	r.closed++
	return nil
}

func TestStreamCameraReadsFramesUntilEOF(t *testing.T) {
	stream := append(encodedFrame(t, color.White), encodedFrame(t, color.Black)...)
	rc := &trackedReader{Reader: bytes.NewReader(stream)}
	released := 0
	cam := newStreamCamera(rc, func() error { released++; return nil })

	first, err := cam.Read()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), first.Bounds())

	_, err = cam.Read()
	require.NoError(t, err)

	_, err = cam.Read()
	assert.ErrorIs(t, err, ErrReadFailed)

	require.NoError(t, cam.Close())
	require.NoError(t, cam.Close())
	assert.Equal(t, 1, rc.closed)
	assert.Equal(t, 1, released)
}

func TestStreamCameraCorruptFrame(t *testing.T) {
	rc := &trackedReader{Reader: bytes.NewReader([]byte{0xFF, 0xD8, 0x00, 0xFF, 0xD9})}
	cam := newStreamCamera(rc, nil)

	_, err := cam.Read()
	assert.ErrorIs(t, err, ErrReadFailed)
}

func TestNewBackends(t *testing.T) {
	src, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, &FFmpeg{}, src)
	assert.Equal(t, 15, src.(*FFmpeg).cfg.FPS)

	_, err = New(Config{Backend: "webrtc"})
	assert.Error(t, err)
}

func TestDevicePath(t *testing.T) {
	assert.Equal(t, "/dev/video0", DevicePath(0))
}
