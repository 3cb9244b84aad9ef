package detectionService

import (
	"bytes"
	"context"
	"image"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	"FaceLens/pkg/capture"
	contextPkg "FaceLens/pkg/context"

	"github.com/sirupsen/logrus"
)

// ProcessFrame analyzes and annotates one camera frame. Analysis failures travel in the frame.
func (s *detectionService) ProcessFrame(ctx context.Context, img image.Image) capture.Frame {
	canvas := s.utils.FitCanvas(img)

	jpeg, err := s.utils.EncodeJPEG(canvas, JPEGQuality)
	if err != nil {
		return capture.Frame{Analysis: entity.FailedAnalysis(err.Error()), Annotated: canvas}
	}

	analysis := s.analyzer.Analyze(ctx, jpeg)
	return capture.Frame{
		Analysis:  analysis,
		Annotated: s.renderer.Render(canvas, analysis.Faces),
	}
}

func (s *detectionService) AnalyzeBrowserFrame(ctx context.Context, frame []byte) (*detection.FrameResponse, error) {
	img, err := s.utils.DecodeImage(bytes.NewReader(frame))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"size":       len(frame),
			"error":      err.Error(),
		}).Debug("Browser frame could not be decoded")
		return nil, detection.ErrBadRequest
	}

	return s.EncodeFrame(s.ProcessFrame(ctx, img))
}

func (s *detectionService) EncodeFrame(frame capture.Frame) (*detection.FrameResponse, error) {
	annotated, err := s.utils.EncodePNGBase64(frame.Annotated)
	if err != nil {
		return nil, err
	}
	return &detection.FrameResponse{
		Analysis:       frame.Analysis,
		AnnotatedImage: annotated,
	}, nil
}
