package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

// User-facing notification texts.
const (
	MsgAnalysisComplete = "Brain scan analysis complete!"
	MsgProcessingFailed = "Processing failed. Please try again."
	MsgPollError        = "Error checking processing status"
	MsgUploadFailed     = "Upload failed: %v"
	MsgNetworkError     = "Network error"
)

// NoticeLevel classifies a [Notice].
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeInfo:
		return "info"
	case NoticeSuccess:
		return "success"
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return ""
	}
}

// Notice is a one-shot, user-visible message.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Presenter displays a finished job's artifacts.
//
// isNewUpload is true when the result comes straight from a job this process drove, and false when
// it is re-opened from history.
type Presenter interface {
	Present(ctx context.Context, result models.JobResult, isNewUpload bool) error
}

// PresenterFunc adapts a function to [Presenter].
type PresenterFunc func(ctx context.Context, result models.JobResult, isNewUpload bool) error

func (f PresenterFunc) Present(ctx context.Context, result models.JobResult, isNewUpload bool) error {
	return f(ctx, result, isNewUpload)
}

// Handoff normalizes result against base and passes it to p.
//
// A completion notice is shown only when isNewUpload is set. A presenter error comes back wrapped in
// [shared.ErrPresentation]; it is cosmetic and never changes the job.
func Handoff(ctx context.Context, p Presenter, n Notifier, base string, result models.JobResult, isNewUpload bool) (models.JobResult, error) {
	normalized := NormalizeResult(base, result)

	var err error
	if p != nil {
		if perr := p.Present(ctx, normalized, isNewUpload); perr != nil {
			err = fmt.Errorf("%w: %v", shared.ErrPresentation, perr)
		}
	}

	if isNewUpload && n != nil {
		n.Notify(Notice{Level: NoticeSuccess, Message: MsgAnalysisComplete})
	}
	return normalized, err
}
