package detection

import (
	"net/http"

	"FaceLens/pkg/response"
)

var (
	ErrBadRequest       = response.NewError(http.StatusBadRequest, "bad request")
	ErrImageRequired    = response.NewError(http.StatusBadRequest, "an image file is required")
	ErrUnsupportedImage = response.NewError(http.StatusBadRequest, "only jpg, jpeg and png files are accepted")
	ErrNoReport         = response.NewError(http.StatusNotFound, "no analysis available yet, upload an image first")
	ErrReportNotFound   = response.NewError(http.StatusNotFound, "report not found")
	ErrHistoryDisabled  = response.NewError(http.StatusServiceUnavailable, "report history is not configured")
	ErrCameraRunning    = response.NewError(http.StatusConflict, "camera is already running")
)
