package report

import (
	"os"
	"path/filepath"
	"testing"

	"FaceLens/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAnalysis() entity.Analysis {
	return entity.Analysis{Faces: []entity.FaceAnalysis{
		{
			Region:         &entity.Region{X: 4, Y: 60, W: 120, H: 130},
			Age:            33,
			Gender:         map[string]float64{"Man": 99.5, "Woman": 0.5},
			DominantGender: "Man",
			Race:           map[string]float64{"indian": 71.25, "asian": 28.75},
			DominantRace:   "indian",
			FaceConfidence: 0.91,
		},
		{Age: 7, DominantGender: "Woman", DominantRace: "black"},
	}}
}

func TestBytesRoundTrip(t *testing.T) {
	e := New(t.TempDir())
	analysis := sampleAnalysis()

	data, err := e.Bytes(analysis)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    {\n        \"region\"")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, analysis, parsed)
}

func TestSaveOverwritesAndMatchesDownload(t *testing.T) {
	dir := t.TempDir()
	e := New(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("stale content that is longer"), 0o644))

	path, err := e.Save(sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	download, err := e.Bytes(sampleAnalysis())
	require.NoError(t, err)
	assert.Equal(t, download, onDisk)
}

func TestFailedAnalysisIsExportedAsMessage(t *testing.T) {
	e := New(t.TempDir())

	data, err := e.Bytes(entity.FailedAnalysis("Face could not be detected"))
	require.NoError(t, err)
	assert.Equal(t, `"Face could not be detected"`, string(data))

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, parsed.Failed())
	assert.Equal(t, "Face could not be detected", parsed.Error)
}

func TestEmptyAnalysisIsAnEmptyList(t *testing.T) {
	data, err := New("").Bytes(entity.Analysis{})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
