package detectionService

import (
	"context"
	"errors"
	"mime/multipart"
	"time"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/log"
	"FaceLens/pkg/session"
	"FaceLens/pkg/utils"

	"github.com/sirupsen/logrus"
)

func (s *detectionService) AnalyzeUpload(ctx context.Context, file *multipart.FileHeader) (*detection.AnalyzeResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	sessionID := contextPkg.GetSessionID(ctx)

	if err := s.utils.ValidateImageFile(file); err != nil {
		switch {
		case errors.Is(err, utils.ErrNoFile):
			return nil, detection.ErrImageRequired
		case errors.Is(err, utils.ErrUnsupportedFormat):
			return nil, detection.ErrUnsupportedImage
		}
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// a corrupt upload surfaces as an unexpected error
	decoded, err := s.utils.DecodeImage(src)
	if err != nil {
		return nil, err
	}
	canvas := s.utils.FitCanvas(decoded)

	frame, err := s.utils.EncodeJPEG(canvas, JPEGQuality)
	if err != nil {
		return nil, err
	}

	analysis := s.analyzer.Analyze(ctx, frame)
	if analysis.Failed() {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      analysis.Error,
		}).Warn("Face analysis failed")
	}

	annotated, err := s.utils.EncodePNGBase64(s.renderer.Render(canvas, analysis.Faces))
	if err != nil {
		return nil, err
	}

	reportID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return nil, err
	}

	if _, err := s.exporter.Save(analysis); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to write detection report")
		return nil, err
	}

	if sessionID != "" {
		if err := s.sessions.SaveAnalysis(ctx, sessionID, analysis); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"error":      err.Error(),
			}).Error("Failed to remember session analysis")
			return nil, err
		}
	}

	s.archiveReport(ctx, reportID, sessionID, analysis)

	return &detection.AnalyzeResponse{
		ReportID:         reportID,
		Analysis:         analysis,
		AnnotatedImage:   annotated,
		LandmarksEnabled: s.renderer.LandmarksEnabled(),
	}, nil
}

func (s *detectionService) ReportFile(ctx context.Context) ([]byte, error) {
	sessionID := contextPkg.GetSessionID(ctx)
	if sessionID == "" {
		return nil, detection.ErrNoReport
	}

	analysis, err := s.sessions.LastAnalysis(ctx, sessionID)
	if errors.Is(err, session.ErrNoAnalysis) {
		return nil, detection.ErrNoReport
	}
	if err != nil {
		return nil, err
	}

	return s.exporter.Bytes(analysis)
}

// archiveReport keeps the report in history and object storage when they are configured.
// Failures are logged; the upload itself has already succeeded.
func (s *detectionService) archiveReport(ctx context.Context, reportID, sessionID string, analysis entity.Analysis) {
	if s.repo == nil && s.archive == nil {
		return
	}
	logger := log.WithRequestID(ctx).WithField("report_id", reportID)

	body, err := s.exporter.Bytes(analysis)
	if err != nil {
		logger.WithField("error", err.Error()).Error("Failed to render report for archive")
		return
	}

	if s.repo != nil {
		if err := s.storeReport(ctx, entity.DetectionReport{
			ID:        reportID,
			SessionID: sessionID,
			Source:    entity.SourceUpload,
			FaceCount: len(analysis.Faces),
			Error:     analysis.Error,
			Report:    body,
			CreatedAt: time.Now(),
		}); err != nil {
			logger.WithField("error", err.Error()).Error("Failed to store report history")
		}
	}

	if s.archive != nil {
		location, err := s.archive.UploadReport(ctx, reportID, body)
		if err != nil {
			logger.WithField("error", err.Error()).Error("Failed to archive report")
			return
		}
		logger.WithField("location", location).Debug("Report archived")
	}
}

func (s *detectionService) storeReport(ctx context.Context, report entity.DetectionReport) error {
	client, err := s.repo.NewClient(true)
	if err != nil {
		return err
	}

	if err := client.Reports.CreateReport(ctx, report); err != nil {
		if rbErr := client.Rollback(); rbErr != nil {
			s.log.WithFields(logrus.Fields{
				"error": rbErr.Error(),
			}).Error("Failed to rollback report insert")
		}
		return err
	}

	return client.Commit()
}
