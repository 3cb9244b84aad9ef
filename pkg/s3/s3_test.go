package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/01J9Z3R9V5M8.json", ReportKey("01J9Z3R9V5M8"))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{Region: "ap-southeast-1"})
	assert.Error(t, err)
}
