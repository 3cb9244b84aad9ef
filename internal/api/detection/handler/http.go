package detectionHandler

import (
	detectionService "FaceLens/internal/api/detection/service"
	"FaceLens/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
) *DetectionHandler {
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	detection := srv.Group("/detection")
	detection.Post("/analyze", h.middleware.NewRateLimiter, h.Analyze)
	detection.Get("/report", h.DownloadReport)

	camera := srv.Group("/camera")
	camera.Use("/ws", wsMiddleware)
	camera.Get("/ws", websocket.New(h.handleCameraWebSocket))
	camera.Post("/stop", h.StopCamera)
	camera.Get("/status", h.CameraStatus)

	frames := srv.Group("/frames")
	frames.Use("/ws", wsMiddleware)
	frames.Get("/ws", websocket.New(h.handleFramesWebSocket))

	reports := srv.Group("/reports")
	reports.Get("", h.ListReports)
	reports.Get("/:id", h.GetReport)
}
