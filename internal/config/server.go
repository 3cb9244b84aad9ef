package config

import (
	"context"
	"errors"
	"fmt"

	"FaceLens/database/postgres"
	detectionHandler "FaceLens/internal/api/detection/handler"
	detectionRepository "FaceLens/internal/api/detection/repository"
	detectionService "FaceLens/internal/api/detection/service"
	"FaceLens/internal/middleware"
	"FaceLens/internal/web"
	"FaceLens/pkg/camera"
	"FaceLens/pkg/deepface"
	"FaceLens/pkg/landmark"
	"FaceLens/pkg/overlay"
	"FaceLens/pkg/redis"
	"FaceLens/pkg/report"
	"FaceLens/pkg/s3"
	"FaceLens/pkg/session"
	"FaceLens/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	cfg         *AppConfig
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	analyzer    deepface.IDeepFace
	locator     landmark.Locator
	camera      camera.Source
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.analyzer == nil {
		return nil, fmt.Errorf("analysis client is required")
	}
	if server.camera == nil {
		return nil, fmt.Errorf("camera source is required")
	}
	if server.locator == nil {
		server.locator = landmark.Disabled{}
	}
	if server.utils == nil {
		server.utils = utils.New()
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase enables report history. Without a database url the option does nothing.
func WithDatabase(dsn string) ServerOption {
	return func(s *Server) error {
		if dsn == "" {
			return nil
		}
		db, err := postgres.New(dsn)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil {
			return fmt.Errorf("config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.cfg.SessionTTL)
		return nil
	}
}

// WithS3Client enables report archiving. Without a bucket the option does nothing.
func WithS3Client(cfg s3.Config) ServerOption {
	return func(s *Server) error {
		if cfg.BucketName == "" {
			return nil
		}
		client, err := s3.New(cfg)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithDeepFace(analyzer deepface.IDeepFace) ServerOption {
	return func(s *Server) error {
		s.analyzer = analyzer
		return nil
	}
}

func WithLandmarkLocator(locator landmark.Locator) ServerOption {
	return func(s *Server) error {
		s.locator = locator
		return nil
	}
}

func WithCamera(source camera.Source) ServerOption {
	return func(s *Server) error {
		s.camera = source
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	deps := detectionService.Dependencies{
		Analyzer: s.analyzer,
		Renderer: overlay.New(overlay.Config{FontPath: s.cfg.FontPath}, s.locator, s.log),
		Exporter: report.New(s.cfg.ReportDir),
		States:   session.NewRegistry(s.cfg.SessionTTL),
		Camera:   s.camera,
	}

	if s.redisServer != nil {
		deps.Sessions = session.NewRedisStore(s.redisServer, s.cfg.SessionTTL)
	} else {
		deps.Sessions = session.NewMemoryStore(s.cfg.SessionTTL)
	}
	if s.db != nil {
		deps.Repository = detectionRepository.New(s.db, s.log)
	}
	if s.s3Client != nil {
		deps.Archive = s.s3Client
	}

	detectionServices := detectionService.NewDetectionService(s.log, deps, s.utils)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewSessionMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)

	web.New().Start(s.engine)

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	return s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port))
}

// Shutdown stops accepting requests, then releases the landmark worker and the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	errs := []error{s.engine.ShutdownWithContext(ctx)}

	if s.locator != nil {
		errs = append(errs, s.locator.Close())
	}
	if s.redisServer != nil {
		errs = append(errs, s.redisServer.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":           "Server is Healthy!",
			"landmarks_enabled": s.locator.Enabled(),
			"history_enabled":   s.db != nil,
		})
	})
}
