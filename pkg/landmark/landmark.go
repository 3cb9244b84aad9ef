package landmark

import (
	"errors"
	"fmt"
	"image"
	"os"

	"FaceLens/internal/entity"

	"github.com/sirupsen/logrus"
)

// ModelFile is where the 68 point shape predictor is expected, relative to the working directory.
const ModelFile = "shape_predictor_68_face_landmarks.dat"

var ErrModelNotFound = errors.New("landmark model not found")

// Locator finds faces on a grayscale image and returns 68 landmarks for each of them.
type Locator interface {
	Enabled() bool
	Locate(gray *image.Gray) ([]entity.Shape, error)
	Close() error
}

// Detector returns face rectangles in gray's coordinate space.
type Detector interface {
	Detect(gray *image.Gray) []image.Rectangle
}

// Predictor regresses 68 points inside every rectangle. The result has one entry per rect.
type Predictor interface {
	Predict(gray *image.Gray, rects []image.Rectangle) ([][entity.LandmarkCount]image.Point, error)
	Close() error
}

type Config struct {
	ModelPath   string
	CascadePath string
	WorkerCmd   []string
}

// New starts the predictor and picks the face detector. Faces are found with the pigo cascade
// when one is configured and loads, and by the worker's dlib detector otherwise. A missing model
// or a worker that does not start yields the Disabled locator together with the reason; callers
// are expected to warn once and carry on.
func New(cfg Config, log *logrus.Logger) (Locator, error) {
	if cfg.ModelPath == "" {
		cfg.ModelPath = ModelFile
	}

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Disabled{}, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
		}
		return Disabled{}, err
	}

	worker, err := StartWorker(cfg.WorkerCmd, cfg.ModelPath)
	if err != nil {
		return Disabled{}, err
	}

	fields := logrus.Fields{"model": cfg.ModelPath}

	if cfg.CascadePath != "" {
		detector, err := NewPigoDetector(PigoConfig{CascadeFile: cfg.CascadePath})
		if err == nil {
			fields["detector"] = "pigo"
			fields["cascade"] = cfg.CascadePath
			log.WithFields(fields).Info("Landmark locator ready")
			return NewLocator(detector, worker), nil
		}
		log.WithFields(logrus.Fields{
			"cascade": cfg.CascadePath,
			"error":   err.Error(),
		}).Warn("Cascade not usable, detecting faces with dlib")
	}

	fields["detector"] = "dlib"
	log.WithFields(fields).Info("Landmark locator ready")
	return NewFinderLocator(worker), nil
}

// Finder detects faces and predicts their landmarks in one call.
type Finder interface {
	Find(gray *image.Gray) ([]entity.Shape, error)
	Close() error
}

func NewLocator(detector Detector, predictor Predictor) Locator {
	return &locator{detector: detector, predictor: predictor}
}

type locator struct {
	detector  Detector
	predictor Predictor
}

func (l *locator) Enabled() bool {
	return true
}

func (l *locator) Locate(gray *image.Gray) ([]entity.Shape, error) {
	rects := l.detector.Detect(gray)
	if len(rects) == 0 {
		return nil, nil
	}

	points, err := l.predictor.Predict(gray, rects)
	if err != nil {
		return nil, err
	}
	if len(points) != len(rects) {
		return nil, fmt.Errorf("predictor returned %d shapes for %d faces", len(points), len(rects))
	}

	shapes := make([]entity.Shape, len(rects))
	for i := range rects {
		shapes[i] = entity.Shape{Rect: rects[i], Points: points[i]}
	}
	return shapes, nil
}

func (l *locator) Close() error {
	return l.predictor.Close()
}

func NewFinderLocator(finder Finder) Locator {
	return &finderLocator{finder: finder}
}

type finderLocator struct {
	finder Finder
}

func (l *finderLocator) Enabled() bool {
	return true
}

func (l *finderLocator) Locate(gray *image.Gray) ([]entity.Shape, error) {
	return l.finder.Find(gray)
}

func (l *finderLocator) Close() error {
	return l.finder.Close()
}

// Disabled is used for the whole process lifetime when the model could not be loaded.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Locate(*image.Gray) ([]entity.Shape, error) { return nil, nil }

func (Disabled) Close() error { return nil }
