package capture

import (
	"context"
	"errors"
	"image"

	"FaceLens/internal/entity"
	"FaceLens/pkg/camera"

	"github.com/sirupsen/logrus"
)

// Frame is one processed camera frame.
type Frame struct {
	Analysis  entity.Analysis
	Annotated image.Image
}

// Processor analyzes and annotates one frame.
type Processor interface {
	ProcessFrame(ctx context.Context, img image.Image) Frame
}

// Sink receives every processed frame. An error ends the loop.
type Sink func(Frame) error

type Loop struct {
	source    camera.Source
	processor Processor
	log       *logrus.Logger
}

func NewLoop(source camera.Source, processor Processor, log *logrus.Logger) *Loop {
	return &Loop{source: source, processor: processor, log: log}
}

// Run owns the camera for one Running period. The flag is checked before each frame, so a
// frame already being processed when Stop is called is still delivered. A failed read ends
// the period quietly. The camera is released on every exit path before the state turns
// Stopped. Run returns at once when the state was never started.
func (l *Loop) Run(ctx context.Context, state *State, sink Sink) error {
	switch err := state.acquire(); {
	case errors.Is(err, errNotRunning):
		return nil
	case err != nil:
		return err
	}
	defer state.release()

	stream, err := l.source.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			l.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("Failed to release camera")
		}
	}()

	frames := 0
	for state.continuing() {
		if ctx.Err() != nil {
			break
		}

		img, err := stream.Read()
		if err != nil {
			l.log.WithFields(logrus.Fields{
				"frames": frames,
				"error":  err.Error(),
			}).Debug("Camera read failed, stopping capture")
			return nil
		}

		if err := sink(l.processor.ProcessFrame(ctx, img)); err != nil {
			return err
		}
		frames++
	}

	l.log.WithFields(logrus.Fields{
		"frames": frames,
	}).Debug("Capture stopped")

	return nil
}
