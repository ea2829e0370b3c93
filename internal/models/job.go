package models

import (
	"fmt"
	"time"
)

// JobState is the client-side lifecycle of an [UploadJob].
type JobState int

const (
	Idle JobState = iota
	Submitting
	Polling
	Complete
	Failed
)

func (s JobState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Polling:
		return "polling"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// IsTerminal reports whether no further polling can happen.
func (s JobState) IsTerminal() bool {
	return s == Complete || s == Failed
}

// JobStatus is the coarse status the backend reports for a job.
type JobStatus string

const (
	StatusUploaded   JobStatus = "uploaded"
	StatusProcessing JobStatus = "processing"
	StatusAnalyzing  JobStatus = "analyzing"
	StatusComplete   JobStatus = "complete"
	StatusFailed     JobStatus = "failed"
)

// JobResult references the two artifacts a finished job produces.
type JobResult struct {
	StaticImage string `json:"static_image"`
	GIF         string `json:"gif"`
}

// IsZero reports whether the payload carries no artifact paths.
func (r JobResult) IsZero() bool {
	return r.StaticImage == "" && r.GIF == ""
}

// StatusResponse is the body returned by a job's status URL.
type StatusResponse struct {
	Status JobStatus  `json:"status"`
	Result *JobResult `json:"result"`
	Error  *string    `json:"error"`
}

// SubmitResponse is the body returned by the upload endpoint.
type SubmitResponse struct {
	Message   string `json:"message"`
	StatusURL string `json:"status_url"`
	Error     string `json:"error"`
}

// UploadJob represents one submitted batch of four volumes.
type UploadJob struct {
	ID          string
	Generation  uint64
	Owner       Identity
	Slots       FileSlots
	StatusURL   string
	State       JobState
	Estimate    ProcessingEstimate
	Cycles      int
	Result      *JobResult
	Err         error
	PresentErr  error
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Phase is one bucket of the synthetic processing estimate.
type Phase int

const (
	PhaseUpload Phase = iota
	PhaseModelLoad
	PhaseDataProcessing
	PhaseInference
	PhaseVisualization
)

// Phases lists the buckets in the order they fill.
var Phases = [5]Phase{PhaseUpload, PhaseModelLoad, PhaseDataProcessing, PhaseInference, PhaseVisualization}

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseModelLoad:
		return "model_load"
	case PhaseDataProcessing:
		return "data_processing"
	case PhaseInference:
		return "inference"
	case PhaseVisualization:
		return "visualization"
	default:
		return ""
	}
}

// Label returns display text for the phase.
func (p Phase) Label() string {
	switch p {
	case PhaseUpload:
		return "Uploading"
	case PhaseModelLoad:
		return "Loading model"
	case PhaseDataProcessing:
		return "Processing data"
	case PhaseInference:
		return "Running inference"
	case PhaseVisualization:
		return "Rendering visualization"
	default:
		return ""
	}
}

// ProcessingEstimate holds a 0-100 value per [Phase].
type ProcessingEstimate struct {
	Phases [5]int `json:"phases"`
}

// Aggregate is the arithmetic mean of the phase values.
func (e ProcessingEstimate) Aggregate() int {
	total := 0
	for _, v := range e.Phases {
		total += v
	}
	return total / len(e.Phases)
}

// Current returns the first phase that is not finished, or the last phase when all are.
func (e ProcessingEstimate) Current() Phase {
	for i, v := range e.Phases {
		if v < 100 {
			return Phases[i]
		}
	}
	return PhaseVisualization
}

// Report is a completed job kept for history and export.
//
// Number is the display position (#N, newest highest) within one listing. Sequence is the local cache's insertion order.
type Report struct {
	ID        string    `json:"id"`
	Sequence  int       `json:"-"`
	Number    int       `json:"number"`
	RemoteID  int64     `json:"remote_id"`
	BatchID   string    `json:"batch_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Status    JobStatus `json:"status"`
	Result    JobResult `json:"results"`
	CreatedAt time.Time `json:"created_at"`
	CachedAt  time.Time `json:"cached_at"`
}

// Validate checks the fields required for persistence.
func (r *Report) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("report user_id is required")
	}
	if r.Status != StatusComplete {
		return fmt.Errorf("report status must be %q, got %q", StatusComplete, r.Status)
	}
	if r.Result.StaticImage == "" || r.Result.GIF == "" {
		return fmt.Errorf("report is missing artifact paths")
	}
	return nil
}
