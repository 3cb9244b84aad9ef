package detectionHandler

import (
	"context"
	"strings"
	"sync"
	"time"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/middleware"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/handlerUtil"
	"FaceLens/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	maxReadTimeout = 60 * time.Second
	writeTimeout   = 10 * time.Second
)

// wsWriter serializes writes from the reader loop and the capture goroutine.
type wsWriter struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsWriter) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	if err := w.conn.WriteJSON(v); err != nil {
		return err
	}
	return w.conn.SetWriteDeadline(time.Time{})
}

func wsContext(c *websocket.Conn) (context.Context, string) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	sessionID, _ := c.Locals(contextPkg.SessionIDKey).(string)

	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	return contextPkg.WithSessionID(ctx, sessionID), sessionID
}

func (h *DetectionHandler) pingHandler(c *websocket.Conn) func(string) error {
	return func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	}
}

// handleCameraWebSocket drives the session's capture loop. Text commands are start, stop and
// status; processed frames and lifecycle events are pushed back as JSON.
func (h *DetectionHandler) handleCameraWebSocket(c *websocket.Conn) {
	ctx, sessionID := wsContext(c)
	ctx, cancel := context.WithCancel(ctx)

	logger := h.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
	})
	logger.Info("Camera WebSocket client connected")

	writer := &wsWriter{conn: c}
	var wg sync.WaitGroup

	defer func() {
		h.detectionService.StopCamera(sessionID)
		cancel()
		wg.Wait()
		logger.Info("Camera WebSocket client disconnected")
	}()

	c.SetPingHandler(h.pingHandler(c))

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Camera WebSocket error: %v", err)
			} else {
				logger.Info("Camera WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.TextMessage {
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		var event detection.CameraEvent
		switch strings.ToLower(strings.TrimSpace(string(message))) {
		case detection.CommandStart:
			if !h.detectionService.StartCamera(sessionID) {
				event = detection.CameraEvent{Event: "error", Running: true, Error: detection.ErrCameraRunning.Error()}
				break
			}
			event = detection.CameraEvent{Event: "started", Running: true}
			if err := writer.WriteJSON(event); err != nil {
				logger.Errorf("Error writing camera event: %v", err)
				return
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				h.runCamera(ctx, sessionID, writer)
			}()
			continue

		case detection.CommandStop:
			if h.detectionService.StopCamera(sessionID) {
				// the capture goroutine reports "stopped" once the frame in flight is sent
				continue
			}
			event = detection.CameraEvent{Event: "stopped"}
			if h.detectionService.CameraRunning(sessionID) {
				// a stop is already pending; the camera is released after the frame in flight
				event = detection.CameraEvent{Event: "stopping", Running: true}
			}

		case "status":
			event = detection.CameraEvent{Event: "status", Running: h.detectionService.CameraRunning(sessionID)}

		default:
			event = detection.CameraEvent{Event: "error", Running: h.detectionService.CameraRunning(sessionID), Error: "unknown command"}
		}

		if err := writer.WriteJSON(event); err != nil {
			logger.Errorf("Error writing camera event: %v", err)
			break
		}
	}
}

func (h *DetectionHandler) runCamera(ctx context.Context, sessionID string, writer *wsWriter) {
	frames := 0
	err := h.detectionService.RunCamera(ctx, sessionID, func(resp *detection.FrameResponse) error {
		frames++
		return writer.WriteJSON(resp)
	})

	logger := h.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
		"frames":     frames,
	})

	event := detection.CameraEvent{Event: "stopped"}
	if err != nil && ctx.Err() == nil {
		logger.Warnf("Camera capture ended with error: %v", err)
		event.Error = err.Error()
	} else {
		logger.Info("Camera capture stopped")
	}

	if ctx.Err() != nil {
		return
	}
	if err := writer.WriteJSON(event); err != nil {
		logger.Debugf("Error writing camera stop event: %v", err)
	}
}

// handleFramesWebSocket analyzes JPEG frames captured by the browser itself.
func (h *DetectionHandler) handleFramesWebSocket(c *websocket.Conn) {
	ctx, sessionID := wsContext(c)

	logger := h.log.WithFields(log.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"session_id": sessionID,
	})
	logger.Info("Frames WebSocket client connected")
	defer logger.Info("Frames WebSocket client disconnected")

	c.SetPingHandler(h.pingHandler(c))
	writer := &wsWriter{conn: c}

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			logger.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Errorf("Frames WebSocket error: %v", err)
			} else {
				logger.Info("Frames WebSocket connection closed")
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			logger.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		result, err := h.detectionService.AnalyzeBrowserFrame(ctx, message)
		if err != nil {
			logger.Errorf("Error processing browser frame: %v", err)
			if writeErr := writer.WriteJSON(handlerUtil.ErrorResponse{Error: err.Error()}); writeErr != nil {
				logger.Errorf("Error sending error response: %v", writeErr)
				break
			}
			continue
		}

		if err := writer.WriteJSON(result); err != nil {
			logger.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func (h *DetectionHandler) StopCamera(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	sessionID := h.middleware.GetSessionID(ctx)
	errHandler := handlerUtil.New(h.log)

	stopped := h.detectionService.StopCamera(sessionID)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"stopped":    stopped,
	}).Debug("Camera stop requested")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.CameraStatusResponse{
		Running: h.detectionService.CameraRunning(sessionID),
	})
}

func (h *DetectionHandler) CameraStatus(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.CameraStatusResponse{
		Running: h.detectionService.CameraRunning(h.middleware.GetSessionID(ctx)),
	})
}
