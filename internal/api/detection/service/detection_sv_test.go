package detectionService

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	"FaceLens/pkg/camera"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/overlay"
	"FaceLens/pkg/report"
	"FaceLens/pkg/response"
	"FaceLens/pkg/session"
	"FaceLens/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	analysis entity.Analysis
	frames   [][]byte
}

func (f *fakeAnalyzer) Analyze(_ context.Context, jpeg []byte) entity.Analysis {
	f.frames = append(f.frames, jpeg)
	return f.analysis
}

func (f *fakeAnalyzer) Warmup(context.Context) error { return nil }

type fakeStream struct{ left int }

func (s *fakeStream) Read() (image.Image, error) {
	if s.left == 0 {
		return nil, camera.ErrReadFailed
	}
	s.left--
	return image.NewRGBA(image.Rect(0, 0, 640, 480)), nil
}

func (s *fakeStream) Close() error { return nil }

type fakeCamera struct{ frames int }

func (c *fakeCamera) Open(context.Context) (camera.Stream, error) {
	return &fakeStream{left: c.frames}, nil
}

type fixture struct {
	svc      IDetectionService
	analyzer *fakeAnalyzer
	dir      string
}

func newFixture(t *testing.T, analysis entity.Analysis) fixture {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dir := t.TempDir()
	analyzer := &fakeAnalyzer{analysis: analysis}

	svc := NewDetectionService(logger, Dependencies{
		Analyzer: analyzer,
		Renderer: overlay.New(overlay.Config{}, nil, logger),
		Exporter: report.New(dir),
		Sessions: session.NewMemoryStore(time.Minute),
		States:   session.NewRegistry(time.Minute),
		Camera:   &fakeCamera{frames: 2},
	}, utils.New())

	return fixture{svc: svc, analyzer: analyzer, dir: dir}
}

func sessionCtx(sessionID string) context.Context {
	return contextPkg.WithSessionID(contextPkg.WithRequestID(context.Background(), "req-1"), sessionID)
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	return form.File["image"][0]
}

func blackPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func placeholderAnalysis() entity.Analysis {
	return entity.Analysis{Faces: []entity.FaceAnalysis{{
		Region:         &entity.Region{X: 0, Y: 0, W: 400, H: 400},
		Age:            31,
		DominantGender: "Man",
		DominantRace:   "white",
	}}}
}

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestAnalyzeUploadTinyBlackPNG(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())
	ctx := sessionCtx("01HSESSION")

	resp, err := f.svc.AnalyzeUpload(ctx, fileHeader(t, "black.PNG", blackPNG(t, 2, 2)))
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ReportID)
	assert.Equal(t, placeholderAnalysis(), resp.Analysis)
	assert.False(t, resp.LandmarksEnabled)
	assert.NotEmpty(t, resp.AnnotatedImage)

	// the analyzer saw the 400x400 canvas
	require.Len(t, f.analyzer.frames, 1)
	sent, _, err := image.Decode(bytes.NewReader(f.analyzer.frames[0]))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, utils.CanvasSize, utils.CanvasSize), sent.Bounds())

	onDisk, err := os.ReadFile(filepath.Join(f.dir, report.FileName))
	require.NoError(t, err)

	download, err := f.svc.ReportFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, onDisk, download)
}

func TestAnalyzeUploadFailedAnalysisIsNotAnError(t *testing.T) {
	f := newFixture(t, entity.FailedAnalysis("Face could not be detected"))
	ctx := sessionCtx("01HSESSION")

	resp, err := f.svc.AnalyzeUpload(ctx, fileHeader(t, "face.jpg", blackPNG(t, 8, 8)))
	require.NoError(t, err)
	assert.True(t, resp.Analysis.Failed())

	download, err := f.svc.ReportFile(ctx)
	require.NoError(t, err)
	assert.Equal(t, `"Face could not be detected"`, string(download))
}

func TestAnalyzeUploadRejectsInput(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())
	ctx := sessionCtx("01HSESSION")

	_, err := f.svc.AnalyzeUpload(ctx, fileHeader(t, "face.gif", []byte("GIF89a")))
	assert.ErrorIs(t, err, detection.ErrUnsupportedImage)

	_, err = f.svc.AnalyzeUpload(ctx, nil)
	assert.ErrorIs(t, err, detection.ErrImageRequired)

	// corrupt content is not a domain error
	_, err = f.svc.AnalyzeUpload(ctx, fileHeader(t, "face.png", []byte("not an image")))
	require.Error(t, err)
	var respErr *response.Error
	assert.False(t, errors.As(err, &respErr))
	assert.Empty(t, f.analyzer.frames)
}

func TestReportFileWithoutAnalysis(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())

	_, err := f.svc.ReportFile(sessionCtx("01HNOTHING"))
	assert.ErrorIs(t, err, detection.ErrNoReport)

	_, err = f.svc.ReportFile(context.Background())
	assert.ErrorIs(t, err, detection.ErrNoReport)
}

func TestReportsArePerSession(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())

	_, err := f.svc.AnalyzeUpload(sessionCtx("a"), fileHeader(t, "face.png", blackPNG(t, 4, 4)))
	require.NoError(t, err)

	_, err = f.svc.ReportFile(sessionCtx("b"))
	assert.ErrorIs(t, err, detection.ErrNoReport)
}

func TestHistoryDisabledWithoutRepository(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())

	_, err := f.svc.ListReports(context.Background(), detection.ListReportsQuery{})
	assert.ErrorIs(t, err, detection.ErrHistoryDisabled)

	_, err = f.svc.GetReport(context.Background(), "x")
	assert.ErrorIs(t, err, detection.ErrHistoryDisabled)
}

func TestRunCameraStreamsUntilReadFailure(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())

	assert.False(t, f.svc.CameraRunning("s"))
	require.True(t, f.svc.StartCamera("s"))
	assert.False(t, f.svc.StartCamera("s"))
	assert.True(t, f.svc.CameraRunning("s"))

	var frames []*detection.FrameResponse
	err := f.svc.RunCamera(context.Background(), "s", func(resp *detection.FrameResponse) error {
		frames = append(frames, resp)
		return nil
	})

	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Equal(t, placeholderAnalysis(), frames[0].Analysis)
	assert.False(t, f.svc.CameraRunning("s"))
	assert.False(t, f.svc.StopCamera("s"))
}

func TestStopCameraUnknownSession(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())
	assert.False(t, f.svc.StopCamera("nobody"))
}

func TestAnalyzeBrowserFrame(t *testing.T) {
	f := newFixture(t, placeholderAnalysis())

	resp, err := f.svc.AnalyzeBrowserFrame(context.Background(), blackPNG(t, 32, 32))
	require.NoError(t, err)
	assert.Equal(t, placeholderAnalysis(), resp.Analysis)
	assert.NotEmpty(t, resp.AnnotatedImage)

	_, err = f.svc.AnalyzeBrowserFrame(context.Background(), []byte{0x00, 0x01})
	assert.ErrorIs(t, err, detection.ErrBadRequest)
}

func TestProcessFrameResizesToCanvas(t *testing.T) {
	f := newFixture(t, entity.Analysis{Faces: []entity.FaceAnalysis{}})

	frame := f.svc.ProcessFrame(context.Background(), image.NewGray(image.Rect(0, 0, 64, 48)))

	assert.Equal(t, image.Rect(0, 0, utils.CanvasSize, utils.CanvasSize), frame.Annotated.Bounds())
	assert.False(t, frame.Analysis.Failed())
}

func TestStopCameraReachesLoopRunningPastSessionTTL(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewDetectionService(logger, Dependencies{
		Analyzer: &fakeAnalyzer{analysis: placeholderAnalysis()},
		Renderer: overlay.New(overlay.Config{}, nil, logger),
		Exporter: report.New(t.TempDir()),
		Sessions: session.NewMemoryStore(time.Minute),
		States:   session.NewRegistry(30 * time.Millisecond),
		Camera:   &fakeCamera{frames: 1000},
	}, utils.New())

	require.True(t, svc.StartCamera("s"))

	frames := 0
	err := svc.RunCamera(context.Background(), "s", func(*detection.FrameResponse) error {
		frames++
		if frames == 1 {
			time.Sleep(100 * time.Millisecond)
			assert.True(t, svc.CameraRunning("s"))
			assert.True(t, svc.StopCamera("s"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, frames)
	assert.False(t, svc.CameraRunning("s"))
}
