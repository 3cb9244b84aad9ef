package middleware

import (
	"errors"
	"time"

	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NewLoggingMiddleware logs one line per request. Bodies are images and are never logged.
func (m *middleware) NewLoggingMiddleware(c *fiber.Ctx) error {
	start := time.Now()

	requestID, ok := c.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}
	c.Locals(contextPkg.RequestIDKey, requestID)

	err := c.Next()

	// websocket handlers run until the socket closes and log their own lifecycle
	if websocket.IsWebSocketUpgrade(c) {
		log.Debug(log.Fields{
			"request_id": requestID,
			"path":       c.Path(),
		}, "WebSocket session ended")
		return err
	}

	status := c.Response().StatusCode()
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
	}

	logFields := log.Fields{
		"request_id":     requestID,
		"session_id":     m.GetSessionID(c),
		"method":         c.Method(),
		"path":           c.Path(),
		"status":         status,
		"latency_ms":     time.Since(start).Milliseconds(),
		"ip":             c.IP(),
		"user_agent":     c.Get(fiber.HeaderUserAgent),
		"content_length": len(c.Request().Body()),
		"response_size":  len(c.Response().Body()),
	}

	switch {
	case status >= 500:
		log.Error(logFields, "Server error")
	case status >= 400:
		log.Warn(logFields, "Client error")
	default:
		log.Info(logFields, "Success")
	}

	return err
}
