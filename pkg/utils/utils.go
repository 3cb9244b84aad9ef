package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

// CanvasSize is the square every uploaded image and camera frame is resized to.
const CanvasSize = 400

var (
	ErrNoFile             = errors.New("no file uploaded")
	ErrUnsupportedFormat  = errors.New("unsupported image extension")
	allowedImageExtension = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	DecodeImage(r io.Reader) (image.Image, error)
	FitCanvas(img image.Image) *image.NRGBA
	EncodeJPEG(img image.Image, quality int) ([]byte, error)
	EncodePNGBase64(img image.Image) (string, error)
}

type utils struct{}

func New() IUtils {
	return &utils{}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ValidateImageFile only filters by extension, like the upload control it backs. The
// content is checked by the decoder.
func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExtension[ext] {
		return ErrUnsupportedFormat
	}

	return nil
}

func (u *utils) DecodeImage(r io.Reader) (image.Image, error) {
	return imaging.Decode(r, imaging.AutoOrientation(true))
}

// FitCanvas stretches img to CanvasSize x CanvasSize without keeping the aspect ratio.
func (u *utils) FitCanvas(img image.Image) *image.NRGBA {
	return imaging.Resize(img, CanvasSize, CanvasSize, imaging.Lanczos)
}

func (u *utils) EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (u *utils) EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
