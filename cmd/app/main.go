package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FaceLens/internal/config"
	"FaceLens/pkg/camera"
	"FaceLens/pkg/deepface"
	"FaceLens/pkg/landmark"
	"FaceLens/pkg/log"
	"FaceLens/pkg/redis"
	"FaceLens/pkg/s3"

	"golang.org/x/sync/errgroup"
)

func main() {
	validator := config.NewValidator()
	cfg, cfgErr := config.Load(validator)

	logger := log.NewLogger()
	if cfgErr != nil {
		log.Fatal(log.Fields{"error": cfgErr.Error()}, "Invalid configuration")
	}

	fiberApp := config.NewFiber(logger)

	analyzer := deepface.New(deepface.Config{
		BaseURL:         cfg.DeepFaceURL,
		DetectorBackend: cfg.DeepFaceDetector,
		Timeout:         cfg.DeepFaceTimeout,
	}, logger)

	locator, err := landmark.New(landmark.Config{
		ModelPath:   cfg.LandmarkModelPath,
		CascadePath: cfg.LandmarkCascadePath,
		WorkerCmd:   cfg.LandmarkWorkerCmd,
	}, logger)
	if err != nil {
		if errors.Is(err, landmark.ErrModelNotFound) {
			logger.Warnf("Landmark model %s not found, facial landmarks are disabled", cfg.LandmarkModelPath)
		} else {
			logger.Warnf("Landmark detection unavailable, facial landmarks are disabled: %v", err)
		}
	}

	cameraSource, err := camera.New(camera.Config{
		Backend: cfg.CameraBackend,
		Device:  cfg.CameraDevice,
		FPS:     cfg.CameraFPS,
	})
	if err != nil {
		log.Fatal(log.Fields{"backend": cfg.CameraBackend, "error": err.Error()}, "Camera backend unavailable")
	}

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithConfig(cfg),
		config.WithValidator(validator),
		config.WithDatabase(cfg.DatabaseURL),
		config.WithMiddleware(),
		config.WithS3Client(s3.Config{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			BucketName:      cfg.AWSBucketName,
		}),
		config.WithDeepFace(analyzer),
		config.WithLandmarkLocator(locator),
		config.WithCamera(cameraSource),
		config.WithUtils(),
	}
	if cfg.RedisEnabled() {
		options = append(options, config.WithRedisServer(redis.New(redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})))
	}

	server, err := config.NewServer(options...)
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to assemble server")
	}

	server.RegisterHandler()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run()
	})

	g.Go(func() error {
		warmupCtx, cancel := context.WithTimeout(gctx, cfg.DeepFaceTimeout)
		defer cancel()

		if err := analyzer.Warmup(warmupCtx); err != nil {
			logger.Warnf("Face analysis service is not ready: %v", err)
			return nil
		}
		logger.Info("Face analysis service is ready")
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("Server started successfully")

	if err := g.Wait(); err != nil {
		logger.Errorf("Server stopped with error: %v", err)
		os.Exit(1)
	}
}
