package deepface

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// blankJPEG is sent by Warmup so the service loads its models before the first real request.
var blankJPEG = func() []byte {
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, image.NewGray(image.Rect(0, 0, 48, 48)), imaging.JPEG)
	return buf.Bytes()
}()
