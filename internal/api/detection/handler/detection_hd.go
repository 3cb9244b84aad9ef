package detectionHandler

import (
	"context"
	"time"

	"FaceLens/internal/api/detection"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/handlerUtil"
	"FaceLens/pkg/log"
	"FaceLens/pkg/report"

	"github.com/gofiber/fiber/v2"
)

// analyzeTimeout covers a cold analysis service plus decoding and drawing.
const analyzeTimeout = 90 * time.Second

func (h *DetectionHandler) Analyze(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), analyzeTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing face analysis request")

	// a missing file is reported by the service
	file, _ := ctx.FormFile("image")
	if file != nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")
	}

	result, err := h.detectionService.AnalyzeUpload(c, file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_upload")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"report_id":  result.ReportID,
			"faces":      len(result.Analysis.Faces),
			"failed":     result.Analysis.Failed(),
		}).Info("Face analysis completed")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *DetectionHandler) DownloadReport(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	data, err := h.detectionService.ReportFile(c)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "download_report")
	}

	ctx.Attachment(report.FileName)
	ctx.Set(fiber.HeaderContentType, report.ContentType)
	return ctx.Status(fiber.StatusOK).Send(data)
}

func (h *DetectionHandler) ListReports(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query detection.ListReportsQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, detection.ErrBadRequest, ctx.Path(), "parse_query")
	}

	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	result, err := h.detectionService.ListReports(c, query)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_reports")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *DetectionHandler) GetReport(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	result, err := h.detectionService.GetReport(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_report")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}
