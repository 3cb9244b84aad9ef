package detection

import (
	"time"

	"FaceLens/internal/entity"
)

const (
	CommandStart = "start"
	CommandStop  = "stop"
)

type AnalyzeResponse struct {
	ReportID         string          `json:"report_id"`
	Analysis         entity.Analysis `json:"analysis"`
	AnnotatedImage   string          `json:"annotated_image"`
	LandmarksEnabled bool            `json:"landmarks_enabled"`
}

type FrameResponse struct {
	Analysis       entity.Analysis `json:"analysis"`
	AnnotatedImage string          `json:"annotated_image"`
}

type CameraStatusResponse struct {
	Running bool `json:"running"`
}

// CameraEvent is a control message pushed on the camera websocket.
type CameraEvent struct {
	Event   string `json:"event"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type ListReportsQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type ReportSummary struct {
	ID        string                 `json:"id"`
	Source    entity.DetectionSource `json:"source"`
	FaceCount int                    `json:"face_count"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type ListReportsResponse struct {
	Reports []ReportSummary `json:"reports"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type ReportDetailResponse struct {
	ReportSummary
	Analysis   entity.Analysis `json:"analysis"`
	ArchiveURL string          `json:"archive_url,omitempty"`
}
