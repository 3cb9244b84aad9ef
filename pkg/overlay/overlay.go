package overlay

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	"FaceLens/internal/entity"
	"FaceLens/pkg/landmark"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	boxLineWidth   = 3.0
	labelHeight    = 50.0
	labelPadX      = 10.0
	labelPadTop    = 5.0
	landmarkRadius = 3.0
)

type Config struct {
	FontPath string
	FontSize float64
}

// Renderer draws analysis records and landmarks on copies of an image.
type Renderer struct {
	locator landmark.Locator
	face    font.Face
	log     *logrus.Logger

	// font faces keep glyph caches that are not safe for concurrent use
	mu sync.Mutex
}

func New(cfg Config, locator landmark.Locator, log *logrus.Logger) *Renderer {
	if cfg.FontSize == 0 {
		cfg.FontSize = 20
	}
	if locator == nil {
		locator = landmark.Disabled{}
	}

	var face font.Face = basicfont.Face7x13
	if cfg.FontPath != "" {
		loaded, err := gg.LoadFontFace(cfg.FontPath, cfg.FontSize)
		if err != nil {
			log.WithFields(logrus.Fields{
				"font":  cfg.FontPath,
				"error": err.Error(),
			}).Warn("Font not available, using built-in bitmap font")
		} else {
			face = loaded
		}
	}

	return &Renderer{locator: locator, face: face, log: log}
}

func (r *Renderer) LandmarksEnabled() bool {
	return r.locator.Enabled()
}

// Render returns a new image; src is left untouched. Records without a region are skipped.
func (r *Renderer) Render(src image.Image, faces []entity.FaceAnalysis) image.Image {
	regions := regionsOf(faces)
	if len(regions) == 0 {
		return imaging.Clone(src)
	}

	var shapes []entity.Shape
	if r.locator.Enabled() {
		var err error
		shapes, err = r.locator.Locate(Grayscale(src))
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("Landmark detection failed, drawing without landmarks")
			shapes = nil
		}
	}
	owned := Associate(regions, shapes)

	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContextForImage(src)
	dc.SetFontFace(r.face)

	for i, face := range faces {
		if face.Region == nil {
			continue
		}
		r.drawFace(dc, face)
		for _, shape := range owned[i] {
			drawLandmarks(dc, shape)
		}
	}

	return dc.Image()
}

func (r *Renderer) drawFace(dc *gg.Context, face entity.FaceAnalysis) {
	x, y := float64(face.Region.X), float64(face.Region.Y)
	w, h := float64(face.Region.W), float64(face.Region.H)

	dc.SetRGBA255(255, 255, 0, 200)
	dc.SetLineWidth(boxLineWidth)
	dc.DrawRectangle(x, y, w, h)
	dc.Stroke()

	dc.SetRGBA255(0, 0, 0, 180)
	dc.DrawRectangle(x, y-labelHeight, w, labelHeight)
	dc.Fill()

	dc.SetRGB255(255, 255, 255)
	lineHeight := dc.FontHeight()
	for i, line := range Label(face) {
		dc.DrawStringAnchored(line, x+labelPadX, y-labelHeight+labelPadTop+float64(i)*lineHeight, 0, 1)
	}
}

func drawLandmarks(dc *gg.Context, shape entity.Shape) {
	dc.SetRGBA255(0, 255, 0, 255)
	for _, p := range shape.Points {
		dc.DrawCircle(float64(p.X), float64(p.Y), landmarkRadius)
		dc.Fill()
	}
}

// Label is the three line caption drawn above a face.
func Label(face entity.FaceAnalysis) []string {
	return []string{
		fmt.Sprintf("Age: %d", face.Age),
		fmt.Sprintf("Gender: %s", face.DominantGender),
		fmt.Sprintf("Ethnicity: %s", face.DominantRace),
	}
}

// Grayscale converts img to an 8-bit gray copy with the same bounds.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, img, bounds.Min, draw.Src)
	return gray
}

func regionsOf(faces []entity.FaceAnalysis) map[int]image.Rectangle {
	regions := make(map[int]image.Rectangle)
	for i, face := range faces {
		if face.Region != nil {
			regions[i] = face.Region.Rect()
		}
	}
	return regions
}
