package tasks

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/services"
	"github.com/desertthunder/segx/internal/shared"
)

// ReportLister fetches a user's upload history from the backend.
type ReportLister interface {
	Reports(ctx context.Context, userID string) ([]services.ReportItem, error)
}

// ReportCache stores fetched reports locally.
type ReportCache interface {
	Upsert(r *models.Report) error
	ListByUser(userID string) ([]models.Report, error)
}

// History loads completed reports for a user.
type History struct {
	lister  ReportLister
	cache   ReportCache
	baseURL string
	logger  *log.Logger
}

// NewHistory creates a [History]. cache may be nil.
func NewHistory(lister ReportLister, cache ReportCache, baseURL string, logger *log.Logger) *History {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &History{lister: lister, cache: cache, baseURL: baseURL, logger: logger}
}

// BuildReports keeps completed items that carry results, normalizes their artifact paths, sorts them
// newest first, and numbers them so the newest has the highest number.
func BuildReports(base string, items []services.ReportItem) []models.Report {
	reports := make([]models.Report, 0, len(items))
	for _, it := range items {
		if it.Status != models.StatusComplete || it.Results == nil {
			continue
		}
		reports = append(reports, models.Report{
			RemoteID:  it.ID,
			BatchID:   it.BatchID,
			UserID:    it.UserID,
			Email:     it.Email,
			Status:    it.Status,
			Result:    NormalizeResult(base, *it.Results),
			CreatedAt: it.CreatedAt,
		})
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	Number(reports)
	return reports
}

// Number assigns display numbers to reports sorted newest first.
func Number(reports []models.Report) {
	for i := range reports {
		reports[i].Number = len(reports) - i
	}
}

// Fetch lists the user's completed reports from the backend and refreshes the local cache.
// Cache failures are logged and do not fail the fetch.
func (h *History) Fetch(ctx context.Context, userID string, progress chan<- ProgressUpdate) ([]models.Report, error) {
	if h.lister == nil {
		return nil, fmt.Errorf("%w: report service not initialized", shared.ErrServiceUnavailable)
	}

	sendProgress(progress, fetchReportsUpdate(userID))
	items, err := h.lister.Reports(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	reports := BuildReports(h.baseURL, items)
	h.logger.Debug("fetched reports", "user_id", userID, "total", len(items), "complete", len(reports))

	if h.cache != nil {
		for i := range reports {
			if err := h.cache.Upsert(&reports[i]); err != nil {
				h.logger.Warn("failed to cache report", "remote_id", reports[i].RemoteID, "error", err)
			}
		}
	}
	return reports, nil
}

// Cached lists the user's reports from the local cache, newest first.
func (h *History) Cached(userID string) ([]models.Report, error) {
	if h.cache == nil {
		return nil, fmt.Errorf("%w: report cache not initialized", shared.ErrServiceUnavailable)
	}
	reports, err := h.cache.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	Number(reports)
	return reports, nil
}

// Find returns the report ref names. "#N" matches the display number N; a bare "N" matches the remote id N.
func Find(reports []models.Report, ref string) (*models.Report, error) {
	digits, byNumber := strings.CutPrefix(ref, "#")
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: report reference %q", shared.ErrInvalidArgument, ref)
	}
	for i := range reports {
		if byNumber && int64(reports[i].Number) == n || !byNumber && reports[i].RemoteID == n {
			return &reports[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrReportNotFound, ref)
}
