package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

const reportColumns = `id, sequence, remote_id, batch_id, user_id, email, status, static_image, gif, created_at, cached_at`

// ReportRepository implements models.Repository[*models.Report] for the local report cache.
//
// Reports are keyed by (user_id, remote_id); [ReportRepository.Upsert] refreshes an existing row instead of duplicating it.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new ReportRepository with the given database connection
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report into the database with generated ID and sequence
func (r *ReportRepository) Create(report *models.Report) error {
	if err := report.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "reports")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	report.ID = shared.GenerateID()
	report.Sequence = sequence
	report.CachedAt = time.Now().UTC()

	query := `INSERT INTO reports (` + reportColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		report.ID,
		report.Sequence,
		report.RemoteID,
		report.BatchID,
		report.UserID,
		report.Email,
		report.Status,
		report.Result.StaticImage,
		report.Result.GIF,
		report.CreatedAt.UTC(),
		report.CachedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// Get retrieves a report by its local ID
func (r *ReportRepository) Get(id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByRemoteID retrieves the cached copy of a backend report for a user
func (r *ReportRepository) GetByRemoteID(userID string, remoteID int64) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE user_id = ? AND remote_id = ?`
	return r.scanOne(r.db.QueryRow(query, userID, remoteID), fmt.Sprintf("%s/%d", userID, remoteID))
}

// Upsert inserts report, or refreshes the row already cached for its (user_id, remote_id).
func (r *ReportRepository) Upsert(report *models.Report) error {
	existing, err := r.GetByRemoteID(report.UserID, report.RemoteID)
	if errors.Is(err, shared.ErrReportNotFound) {
		return r.Create(report)
	}
	if err != nil {
		return err
	}

	if err := report.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE reports
		SET batch_id = ?, email = ?, status = ?, static_image = ?, gif = ?, created_at = ?, cached_at = ?
		WHERE id = ?
	`
	_, err = r.db.Exec(query,
		report.BatchID,
		report.Email,
		report.Status,
		report.Result.StaticImage,
		report.Result.GIF,
		report.CreatedAt.UTC(),
		now,
		existing.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	report.ID = existing.ID
	report.Sequence = existing.Sequence
	report.CachedAt = now
	return nil
}

// Delete removes a cached report by ID
func (r *ReportRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrReportNotFound, id)
	}

	return nil
}

// DeleteByUser removes every cached report for userID and returns how many were removed.
func (r *ReportRepository) DeleteByUser(userID string) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM reports WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete reports: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves cached reports matching the given criteria, newest first.
//
// Supported criteria: user_id (string), status (string).
func (r *ReportRepository) List(criteria map[string]any) ([]*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1 = 1`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY created_at DESC, sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return reports, nil
}

// ListByUser returns userID's cached reports newest first.
func (r *ReportRepository) ListByUser(userID string) ([]models.Report, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	ptrs, err := r.List(map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}

	reports := make([]models.Report, len(ptrs))
	for i, p := range ptrs {
		reports[i] = *p
	}
	return reports, nil
}

func (r *ReportRepository) scanOne(row *sql.Row, ref string) (*models.Report, error) {
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrReportNotFound, ref)
	}
	return report, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanReport scans a single row into a [models.Report]
func scanReport(s scanner) (*models.Report, error) {
	var (
		report models.Report
		status string
	)

	err := s.Scan(
		&report.ID,
		&report.Sequence,
		&report.RemoteID,
		&report.BatchID,
		&report.UserID,
		&report.Email,
		&status,
		&report.Result.StaticImage,
		&report.Result.GIF,
		&report.CreatedAt,
		&report.CachedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	report.Status = models.JobStatus(status)
	return &report, nil
}
