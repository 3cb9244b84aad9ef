package detectionService

import (
	"context"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	contextPkg "FaceLens/pkg/context"
	"FaceLens/pkg/report"

	"github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 20

func (s *detectionService) ListReports(ctx context.Context, query detection.ListReportsQuery) (*detection.ListReportsResponse, error) {
	if s.repo == nil {
		return nil, detection.ErrHistoryDisabled
	}
	if query.Limit == 0 {
		query.Limit = defaultHistoryLimit
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}

	reports, total, err := client.Reports.ListReports(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, err
	}

	summaries := make([]detection.ReportSummary, 0, len(reports))
	for _, r := range reports {
		summaries = append(summaries, summarize(r))
	}

	return &detection.ListReportsResponse{
		Reports: summaries,
		Total:   total,
		Limit:   query.Limit,
		Offset:  query.Offset,
	}, nil
}

func (s *detectionService) GetReport(ctx context.Context, id string) (*detection.ReportDetailResponse, error) {
	if s.repo == nil {
		return nil, detection.ErrHistoryDisabled
	}

	client, err := s.repo.NewClient(false)
	if err != nil {
		return nil, err
	}

	stored, err := client.Reports.GetReportByID(ctx, id)
	if err != nil {
		return nil, err
	}

	analysis, err := report.Parse(stored.Report)
	if err != nil {
		return nil, err
	}

	resp := &detection.ReportDetailResponse{
		ReportSummary: summarize(stored),
		Analysis:      analysis,
	}

	if s.archive != nil {
		url, err := s.archive.PresignUrl(id)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": contextPkg.GetRequestID(ctx),
				"report_id":  id,
				"error":      err.Error(),
			}).Warn("Archived report not available")
		} else {
			resp.ArchiveURL = url
		}
	}

	return resp, nil
}

func summarize(r entity.DetectionReport) detection.ReportSummary {
	return detection.ReportSummary{
		ID:        r.ID,
		Source:    r.Source,
		FaceCount: r.FaceCount,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
}
