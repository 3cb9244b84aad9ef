package detectionHandler

import (
	"bytes"
	"context"
	"image"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	"FaceLens/internal/middleware"
	"FaceLens/pkg/capture"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/report"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fakeService struct {
	mu       sync.Mutex
	running  map[string]bool
	uploads  []*multipart.FileHeader
	sessions []string
	report   []byte
	frames   int

	// releasing keeps every session reported as running after a stop was taken
	releasing bool
}

func newFakeService() *fakeService {
	return &fakeService{running: map[string]bool{}}
}

func (f *fakeService) AnalyzeUpload(ctx context.Context, file *multipart.FileHeader) (*detection.AnalyzeResponse, error) {
	if file == nil {
		return nil, detection.ErrImageRequired
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, file)
	f.sessions = append(f.sessions, contextPkg.GetSessionID(ctx))
	f.mu.Unlock()
	return &detection.AnalyzeResponse{
		ReportID:       "01HREPORT",
		Analysis:       entity.Analysis{Faces: []entity.FaceAnalysis{{Age: 30, DominantGender: "Woman", DominantRace: "asian"}}},
		AnnotatedImage: "iVBORw0KGgo=",
	}, nil
}

func (f *fakeService) ReportFile(context.Context) ([]byte, error) {
	if f.report == nil {
		return nil, detection.ErrNoReport
	}
	return f.report, nil
}

func (f *fakeService) ProcessFrame(context.Context, image.Image) capture.Frame { return capture.Frame{} }

func (f *fakeService) AnalyzeBrowserFrame(_ context.Context, frame []byte) (*detection.FrameResponse, error) {
	if len(frame) < 2 {
		return nil, detection.ErrBadRequest
	}
	return &detection.FrameResponse{Analysis: entity.Analysis{Faces: []entity.FaceAnalysis{}}, AnnotatedImage: "x"}, nil
}

func (f *fakeService) EncodeFrame(capture.Frame) (*detection.FrameResponse, error) { return nil, nil }

func (f *fakeService) StartCamera(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[sessionID] {
		return false
	}
	f.running[sessionID] = true
	return true
}

func (f *fakeService) StopCamera(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.running[sessionID]
	f.running[sessionID] = false
	return was
}

func (f *fakeService) CameraRunning(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[sessionID] || f.releasing
}

func (f *fakeService) RunCamera(_ context.Context, sessionID string, sink func(*detection.FrameResponse) error) error {
	defer f.StopCamera(sessionID)
	for i := 0; i < f.frames; i++ {
		if err := sink(&detection.FrameResponse{Analysis: entity.FailedAnalysis("no face"), AnnotatedImage: "x"}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeService) ListReports(context.Context, detection.ListReportsQuery) (*detection.ListReportsResponse, error) {
	return nil, detection.ErrHistoryDisabled
}

func (f *fakeService) GetReport(context.Context, string) (*detection.ReportDetailResponse, error) {
	return nil, detection.ErrHistoryDisabled
}

func (f *fakeService) LandmarksEnabled() bool { return false }

func newTestApp(svc *fakeService) *fiber.App {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	m := middleware.New(logger, time.Hour)
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewSessionMiddleware())

	New(logger, validator.New(), m, svc).Start(app.Group("/api/v1"))
	return app
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	part.Write(content)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/detection/analyze", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestAnalyze(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, err := app.Test(uploadRequest(t, "image", "face.jpg", []byte{0xFF, 0xD8, 0xFF, 0xD9}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body detection.AnalyzeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "01HREPORT", body.ReportID)
	assert.Equal(t, 30, body.Analysis.Faces[0].Age)

	require.Len(t, svc.uploads, 1)
	assert.Equal(t, "face.jpg", svc.uploads[0].Filename)
	assert.NotEmpty(t, svc.sessions[0])
}

func TestAnalyzeWithoutImage(t *testing.T) {
	app := newTestApp(newFakeService())

	resp, err := app.Test(uploadRequest(t, "photo", "face.jpg", []byte{1}), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDownloadReport(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/report", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	svc.report = []byte("[\n    {\n        \"age\": 30\n    }\n]")
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/report", nil))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, report.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), report.FileName)
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, svc.report, data)
}

func TestCameraStatusAndStop(t *testing.T) {
	svc := newFakeService()
	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/camera/status", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"running":false}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/camera/stop", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ = io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"running":false}`, string(body))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/camera/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestReportsHistory(t *testing.T) {
	app := newTestApp(newFakeService())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/01HREPORT", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func serve(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return "ws://" + ln.Addr().String()
}

func readJSON(t *testing.T, conn *gorillaws.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestCameraWebSocket(t *testing.T) {
	svc := newFakeService()
	svc.frames = 2
	base := serve(t, newTestApp(svc))

	conn, _, err := gorillaws.DefaultDialer.Dial(base+"/api/v1/camera/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("start")))

	assert.Equal(t, "started", readJSON(t, conn)["event"])
	for i := 0; i < 2; i++ {
		frame := readJSON(t, conn)
		assert.Equal(t, "x", frame["annotated_image"])
	}
	stopped := readJSON(t, conn)
	assert.Equal(t, "stopped", stopped["event"])
	assert.Equal(t, false, stopped["running"])

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("status")))
	assert.Equal(t, false, readJSON(t, conn)["running"])

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("dance")))
	assert.Equal(t, "unknown command", readJSON(t, conn)["error"])
}

func TestCameraWebSocketStopReportsPendingRelease(t *testing.T) {
	svc := newFakeService()
	base := serve(t, newTestApp(svc))

	conn, _, err := gorillaws.DefaultDialer.Dial(base+"/api/v1/camera/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("stop")))
	assert.Equal(t, "stopped", readJSON(t, conn)["event"])

	svc.mu.Lock()
	svc.releasing = true
	svc.mu.Unlock()

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte("stop")))
	pending := readJSON(t, conn)
	assert.Equal(t, "stopping", pending["event"])
	assert.Equal(t, true, pending["running"])
}

func TestFramesWebSocket(t *testing.T) {
	base := serve(t, newTestApp(newFakeService()))

	conn, _, err := gorillaws.DefaultDialer.Dial(base+"/api/v1/frames/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, []byte{0xFF, 0xD8, 0xFF, 0xD9}))
	assert.Equal(t, "x", readJSON(t, conn)["annotated_image"])

	require.NoError(t, conn.WriteMessage(gorillaws.BinaryMessage, []byte{0x00}))
	assert.True(t, strings.Contains(readJSON(t, conn)["error"].(string), "bad request"))
}
