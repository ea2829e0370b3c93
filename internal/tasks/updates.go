package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/segx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Submit Phase = iota
	Poll
	Completed
	Failed
	Present
	FetchReports
	ExportReport
)

func (p Phase) String() string {
	switch p {
	case Submit:
		return "submit"
	case Poll:
		return "poll"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Present:
		return "present"
	case FetchReports:
		return "fetch_reports"
	case ExportReport:
		return "export_report"
	default:
		return ""
	}
}

// Terminal reports whether p ends a job.
func (p Phase) Terminal() bool {
	return p == Completed || p == Failed
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sendProgressWait sends update, blocking until the channel has room or ctx is done.
func sendProgressWait(ctx context.Context, progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	case <-ctx.Done():
	}
}

func submittingUpdate(files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Submit,
		Step:    0,
		Total:   100,
		Message: fmt.Sprintf("Uploading %d volumes...", files),
	}
}

func submittedUpdate(est models.ProcessingEstimate, statusURL string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Submit,
		Step:    est.Aggregate(),
		Total:   100,
		Message: fmt.Sprintf("Upload accepted, tracking %s", statusURL),
		Data:    est,
	}
}

func pollingUpdate(est models.ProcessingEstimate, status models.JobStatus) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Poll,
		Step:    est.Aggregate(),
		Total:   100,
		Message: fmt.Sprintf("%s (%s)", est.Current().Label(), status),
		Data:    est,
	}
}

func completedUpdate(est models.ProcessingEstimate, result models.JobResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    est.Aggregate(),
		Total:   100,
		Message: "Processing complete",
		Data:    result,
	}
}

func failedUpdate(est models.ProcessingEstimate, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    est.Aggregate(),
		Total:   100,
		Message: err.Error(),
		Data:    err,
	}
}

func presentedUpdate(result models.JobResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Present,
		Step:    1,
		Total:   1,
		Message: "Results ready",
		Data:    result,
	}
}

func fetchReportsUpdate(userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchReports,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching reports for %s...", userID),
	}
}

func exportingReportUpdate(step, total int, r *models.Report) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting report #%d...", step, total, r.Number),
	}
}

func exportCompletedUpdate(step, total int, r *models.Report, filesCount int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ report #%d (%d files)", step, total, r.Number, filesCount),
	}
}

func exportFailedUpdate(step, total int, r *models.Report, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportReport,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ report #%d: %v", step, total, r.Number, err),
	}
}
