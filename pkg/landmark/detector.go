package landmark

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
)

type PigoConfig struct {
	CascadeFile  string
	Angle        float64
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IouThreshold float64
	MinQuality   float32
}

type pigoDetector struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
}

// NewPigoDetector unpacks a facefinder cascade. Zero values in cfg take the usual pigo defaults.
func NewPigoDetector(cfg PigoConfig) (Detector, error) {
	if cfg.MinSize == 0 {
		cfg.MinSize = 20
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 1000
	}
	if cfg.ShiftFactor == 0 {
		cfg.ShiftFactor = 0.1
	}
	if cfg.ScaleFactor == 0 {
		cfg.ScaleFactor = 1.1
	}
	if cfg.IouThreshold == 0 {
		cfg.IouThreshold = 0.2
	}
	if cfg.MinQuality == 0 {
		cfg.MinQuality = 5.0
	}

	cascade, err := os.ReadFile(cfg.CascadeFile)
	if err != nil {
		return nil, fmt.Errorf("can not open cascade file %s: %w", cfg.CascadeFile, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade file: %w", err)
	}

	return &pigoDetector{cfg: cfg, classifier: classifier}, nil
}

func (d *pigoDetector) Detect(gray *image.Gray) []image.Rectangle {
	bounds := gray.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil
	}

	params := pigo.CascadeParams{
		MinSize:     d.cfg.MinSize,
		MaxSize:     d.cfg.MaxSize,
		ShiftFactor: d.cfg.ShiftFactor,
		ScaleFactor: d.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: packedPixels(gray),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, d.cfg.Angle)
	dets = d.classifier.ClusterDetections(dets, d.cfg.IouThreshold)

	rects := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.cfg.MinQuality {
			continue
		}
		half := det.Scale / 2
		rect := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half).
			Add(bounds.Min).
			Intersect(bounds)
		if rect.Empty() {
			continue
		}
		rects = append(rects, rect)
	}
	return rects
}

// packedPixels returns gray's pixels row by row without stride padding.
func packedPixels(gray *image.Gray) []uint8 {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if gray.Stride == w && bounds.Min == (image.Point{}) {
		return gray.Pix[:w*h]
	}

	out := make([]uint8, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		start := gray.PixOffset(bounds.Min.X, y)
		out = append(out, gray.Pix[start:start+w]...)
	}
	return out
}
