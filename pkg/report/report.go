package report

import (
	"os"
	"path/filepath"

	"FaceLens/internal/entity"

	jsoniter "github.com/json-iterator/go"
)

const (
	FileName    = "detection_report.json"
	ContentType = "application/json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IExporter interface {
	// Save overwrites FileName in the report directory and returns its path.
	Save(analysis entity.Analysis) (string, error)
	// Bytes renders the same document for download without touching the disk.
	Bytes(analysis entity.Analysis) ([]byte, error)
}

type exporter struct {
	dir string
}

func New(dir string) IExporter {
	if dir == "" {
		dir = "."
	}
	return &exporter{dir: dir}
}

func (e *exporter) Save(analysis entity.Analysis) (string, error) {
	data, err := e.Bytes(analysis)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (e *exporter) Bytes(analysis entity.Analysis) ([]byte, error) {
	return json.MarshalIndent(document(analysis), "", "    ")
}

// document is the record list, or the bare error message when the analysis failed.
func document(analysis entity.Analysis) interface{} {
	if analysis.Failed() {
		return analysis.Error
	}
	if analysis.Faces == nil {
		return []entity.FaceAnalysis{}
	}
	return analysis.Faces
}

// Parse reads a document produced by Bytes back into an analysis.
func Parse(data []byte) (entity.Analysis, error) {
	var msg string
	if err := json.Unmarshal(data, &msg); err == nil {
		return entity.FailedAnalysis(msg), nil
	}

	var faces []entity.FaceAnalysis
	if err := json.Unmarshal(data, &faces); err != nil {
		return entity.Analysis{}, err
	}
	return entity.Analysis{Faces: faces}, nil
}
