package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`
	Env  string

	DeepFaceURL      string        `validate:"required,url"`
	DeepFaceDetector string        `validate:"required"`
	DeepFaceTimeout  time.Duration `validate:"gt=0"`

	LandmarkModelPath   string `validate:"required"`
	LandmarkCascadePath string
	LandmarkWorkerCmd   []string

	FontPath  string
	ReportDir string `validate:"required"`

	CameraBackend string `validate:"oneof=ffmpeg gocv"`
	CameraDevice  int    `validate:"gte=0"`
	CameraFPS     int    `validate:"gt=0,lte=120"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	SessionTTL    time.Duration `validate:"gt=0"`

	DatabaseURL string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSBucketName      string
}

// Load reads .env when present, then the environment. Unset keys take their defaults.
func Load(v *validator.Validate, files ...string) (*AppConfig, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &AppConfig{
		Port: env("APP_PORT", "3000"),
		Env:  env("APP_ENV", "development"),

		DeepFaceURL:      env("DEEPFACE_URL", "http://localhost:5005"),
		DeepFaceDetector: env("DEEPFACE_DETECTOR", "opencv"),

		LandmarkModelPath:   env("LANDMARK_MODEL_PATH", "shape_predictor_68_face_landmarks.dat"),
		LandmarkCascadePath: os.Getenv("LANDMARK_CASCADE_PATH"),
		LandmarkWorkerCmd:   strings.Fields(os.Getenv("LANDMARK_WORKER_CMD")),

		FontPath:  env("FONT_PATH", "arial.ttf"),
		ReportDir: env("REPORT_DIR", "."),

		CameraBackend: strings.ToLower(env("CAMERA_BACKEND", "ffmpeg")),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		AWSRegion:          os.Getenv("AWS_REGION"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSBucketName:      os.Getenv("AWS_BUCKET_NAME"),
	}

	var err error
	if cfg.DeepFaceTimeout, err = envDuration("DEEPFACE_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = envDuration("SESSION_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.CameraDevice, err = envInt("CAMERA_DEVICE", 0); err != nil {
		return nil, err
	}
	if cfg.CameraFPS, err = envInt("CAMERA_FPS", 15); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	if err := v.Struct(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) RedisEnabled() bool {
	return c.RedisAddress != ""
}

func (c *AppConfig) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

func (c *AppConfig) ArchiveEnabled() bool {
	return c.AWSBucketName != ""
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(key + " must be an integer")
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New(key + " must be a duration such as 60s")
	}
	return d, nil
}
