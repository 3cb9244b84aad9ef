package detectionRepository

const (
	queryCreateReport = `
		INSERT INTO detection_reports (
			id,
			session_id,
			source,
			face_count,
			error,
			report,
			created_at
		) VALUES (
			:id,
			:session_id,
			:source,
			:face_count,
			:error,
			:report,
			:created_at
		)
	`

	queryGetReportByID = `
		SELECT
			id,
			session_id,
			source,
			face_count,
			error,
			report,
			created_at
		FROM detection_reports
		WHERE id = :id
	`

	queryListReports = `
		SELECT
			id,
			session_id,
			source,
			face_count,
			error,
			report,
			created_at
		FROM detection_reports
		ORDER BY created_at DESC
		LIMIT :limit OFFSET :offset
	`

	queryCountReports = `
		SELECT COUNT(*)
		FROM detection_reports
	`
)
