package detectionService

import (
	"context"
	"image"
	"mime/multipart"

	"FaceLens/internal/api/detection"
	detectionRepository "FaceLens/internal/api/detection/repository"
	"FaceLens/pkg/camera"
	"FaceLens/pkg/capture"
	"FaceLens/pkg/deepface"
	"FaceLens/pkg/overlay"
	"FaceLens/pkg/report"
	"FaceLens/pkg/s3"
	"FaceLens/pkg/session"
	"FaceLens/pkg/utils"

	"github.com/sirupsen/logrus"
)

// JPEGQuality is used for the frames sent to the analysis service.
const JPEGQuality = 95

type IDetectionService interface {
	AnalyzeUpload(ctx context.Context, file *multipart.FileHeader) (*detection.AnalyzeResponse, error)
	ReportFile(ctx context.Context) ([]byte, error)

	ProcessFrame(ctx context.Context, img image.Image) capture.Frame
	AnalyzeBrowserFrame(ctx context.Context, frame []byte) (*detection.FrameResponse, error)
	EncodeFrame(frame capture.Frame) (*detection.FrameResponse, error)

	StartCamera(sessionID string) bool
	StopCamera(sessionID string) bool
	CameraRunning(sessionID string) bool
	RunCamera(ctx context.Context, sessionID string, sink func(*detection.FrameResponse) error) error

	ListReports(ctx context.Context, query detection.ListReportsQuery) (*detection.ListReportsResponse, error)
	GetReport(ctx context.Context, id string) (*detection.ReportDetailResponse, error)

	LandmarksEnabled() bool
}

type detectionService struct {
	log      *logrus.Logger
	analyzer deepface.IDeepFace
	renderer *overlay.Renderer
	exporter report.IExporter
	sessions session.Store
	states   *session.Registry
	loop     *capture.Loop
	repo     detectionRepository.Repository
	archive  s3.ItfS3
	utils    utils.IUtils
}

type Dependencies struct {
	Analyzer deepface.IDeepFace
	Renderer *overlay.Renderer
	Exporter report.IExporter
	Sessions session.Store
	States   *session.Registry
	Camera   camera.Source

	// Repository and Archive are optional; history endpoints answer 503 without a repository.
	Repository detectionRepository.Repository
	Archive    s3.ItfS3
}

func NewDetectionService(log *logrus.Logger, deps Dependencies, utils utils.IUtils) IDetectionService {
	s := &detectionService{
		log:      log,
		analyzer: deps.Analyzer,
		renderer: deps.Renderer,
		exporter: deps.Exporter,
		sessions: deps.Sessions,
		states:   deps.States,
		repo:     deps.Repository,
		archive:  deps.Archive,
		utils:    utils,
	}
	s.loop = capture.NewLoop(deps.Camera, s, log)
	return s
}

func (s *detectionService) LandmarksEnabled() bool {
	return s.renderer.LandmarksEnabled()
}
