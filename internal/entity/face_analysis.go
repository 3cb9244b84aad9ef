package entity

import (
	"image"
	"time"
)

// Region is the pixel rectangle a model reported for one face.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// FaceAnalysis is one record returned by the demographic model. Region is nil when the
// model did not report one; such records are exported but never drawn.
type FaceAnalysis struct {
	Region         *Region            `json:"region,omitempty"`
	Age            int                `json:"age"`
	Gender         map[string]float64 `json:"gender,omitempty"`
	DominantGender string             `json:"dominant_gender"`
	Race           map[string]float64 `json:"race,omitempty"`
	DominantRace   string             `json:"dominant_race"`
	FaceConfidence float64            `json:"face_confidence,omitempty"`
}

// Analysis carries either Faces or Error, never both.
type Analysis struct {
	Faces []FaceAnalysis `json:"faces"`
	Error string         `json:"error,omitempty"`
}

func (a Analysis) Failed() bool {
	return a.Error != ""
}

func FailedAnalysis(msg string) Analysis {
	if msg == "" {
		msg = "analysis failed"
	}
	return Analysis{Error: msg}
}

type DetectionSource string

// SourceUpload is the only source that produces a report; camera frames are display only.
const SourceUpload DetectionSource = "upload"

// DetectionReport is one exported report kept in the history table.
type DetectionReport struct {
	ID        string          `db:"id"`
	SessionID string          `db:"session_id"`
	Source    DetectionSource `db:"source"`
	FaceCount int             `db:"face_count"`
	Error     string          `db:"error"`
	Report    []byte          `db:"report"`
	CreatedAt time.Time       `db:"created_at"`
}
