package detectionRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"FaceLens/internal/api/detection"
	"FaceLens/internal/entity"
	contextPkg "FaceLens/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ReportDB struct {
	ID        string         `db:"id"`
	SessionID string         `db:"session_id"`
	Source    string         `db:"source"`
	FaceCount int            `db:"face_count"`
	Error     sql.NullString `db:"error"`
	Report    []byte         `db:"report"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r *reportsRepository) CreateReport(ctx context.Context, report entity.DetectionReport) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":         report.ID,
		"session_id": report.SessionID,
		"source":     string(report.Source),
		"face_count": report.FaceCount,
		"error":      report.Error,
		"report":     string(report.Report),
		"created_at": report.CreatedAt,
	}

	query, args, err := sqlx.Named(queryCreateReport, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateReport")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"report_id":  report.ID,
			"error":      err.Error(),
		}).Error("Database error when creating report")
		return err
	}

	return nil
}

func (r *reportsRepository) GetReportByID(ctx context.Context, id string) (entity.DetectionReport, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var report ReportDB

	query, args, err := sqlx.Named(queryGetReportByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetReportByID named query preparation err")
		return entity.DetectionReport{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"report_id":  id,
			}).Warn("GetReportByID no rows found")
			return entity.DetectionReport{}, detection.ErrReportNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetReportByID execution err")
		return entity.DetectionReport{}, err
	}

	return r.makeReport(report), nil
}

func (r *reportsRepository) ListReports(ctx context.Context, limit, offset int) ([]entity.DetectionReport, int, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var total int

	if err := r.q.QueryRowxContext(ctx, queryCountReports).Scan(&total); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CountReports execution err")
		return nil, 0, err
	}

	query, args, err := sqlx.Named(queryListReports, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListReports named query preparation err")
		return nil, 0, err
	}
	query = r.q.Rebind(query)

	var rows []ReportDB
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListReports execution err")
		return nil, 0, err
	}

	reports := make([]entity.DetectionReport, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, r.makeReport(row))
	}

	return reports, total, nil
}

func (r *reportsRepository) makeReport(row ReportDB) entity.DetectionReport {
	return entity.DetectionReport{
		ID:        row.ID,
		SessionID: row.SessionID,
		Source:    entity.DetectionSource(row.Source),
		FaceCount: row.FaceCount,
		Error:     row.Error.String,
		Report:    row.Report,
		CreatedAt: row.CreatedAt,
	}
}
