package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"FaceLens/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Actions requested from the service for every image.
var Actions = []string{"age", "gender", "race"}

type Config struct {
	BaseURL         string
	DetectorBackend string
	Timeout         time.Duration
}

// IDeepFace wraps a DeepFace REST service.
type IDeepFace interface {
	// Analyze never returns both faces and an error message.
	Analyze(ctx context.Context, jpeg []byte) entity.Analysis
	Warmup(ctx context.Context) error
}

type client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Logger
}

func New(cfg Config, log *logrus.Logger) IDeepFace {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.DetectorBackend == "" {
		cfg.DetectorBackend = "opencv"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type analyzeRequest struct {
	Img              string   `json:"img"`
	Actions          []string `json:"actions"`
	EnforceDetection bool     `json:"enforce_detection"`
	DetectorBackend  string   `json:"detector_backend"`
}

type analyzeResponse struct {
	Results []faceResult `json:"results"`
	Error   string       `json:"error"`
}

type faceResult struct {
	Region         *entity.Region     `json:"region"`
	Age            float64            `json:"age"`
	Gender         map[string]float64 `json:"gender"`
	DominantGender string             `json:"dominant_gender"`
	Race           map[string]float64 `json:"race"`
	DominantRace   string             `json:"dominant_race"`
	FaceConfidence float64            `json:"face_confidence"`
}

func (c *client) Analyze(ctx context.Context, jpeg []byte) entity.Analysis {
	faces, err := c.analyze(ctx, jpeg)
	if err != nil {
		c.log.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("DeepFace analysis failed")
		return entity.FailedAnalysis(err.Error())
	}

	c.log.WithFields(logrus.Fields{
		"faces": len(faces),
	}).Debug("DeepFace analysis finished")

	return entity.Analysis{Faces: faces}
}

func (c *client) analyze(ctx context.Context, jpeg []byte) ([]entity.FaceAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{
		Img:              "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg),
		Actions:          Actions,
		EnforceDetection: false,
		DetectorBackend:  c.cfg.DetectorBackend,
	})
	if err != nil {
		return nil, err
	}

	data, status, err := c.do(ctx, http.MethodPost, "/analyze", body)
	if err != nil {
		return nil, err
	}

	var resp analyzeResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("deepface returned status %d", status)
		}
		return nil, fmt.Errorf("decode deepface response: %w", err)
	}

	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("deepface returned status %d", status)
	}

	faces := make([]entity.FaceAnalysis, 0, len(resp.Results))
	for _, r := range resp.Results {
		faces = append(faces, entity.FaceAnalysis{
			Region:         r.Region,
			Age:            int(math.Round(r.Age)),
			Gender:         r.Gender,
			DominantGender: r.DominantGender,
			Race:           r.Race,
			DominantRace:   r.DominantRace,
			FaceConfidence: r.FaceConfidence,
		})
	}

	return faces, nil
}

// Warmup makes the service load its models before the first user request arrives.
func (c *client) Warmup(ctx context.Context) error {
	if _, _, err := c.do(ctx, http.MethodGet, "/", nil); err != nil {
		return fmt.Errorf("deepface unreachable at %s: %w", c.cfg.BaseURL, err)
	}

	// A blank frame forces the age/gender/race weights into memory.
	faces, err := c.analyze(ctx, blankJPEG)
	if err != nil {
		return fmt.Errorf("deepface warmup analysis failed: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"url":   c.cfg.BaseURL,
		"faces": len(faces),
	}).Info("DeepFace models loaded")

	return nil
}

func (c *client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if resp.StatusCode >= 500 {
		return nil, resp.StatusCode, errors.New("server returned error with status: " + resp.Status)
	}

	return data, resp.StatusCode, nil
}
