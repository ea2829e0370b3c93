package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/desertthunder/segx/internal/tasks"
	"github.com/desertthunder/segx/internal/ui"
	"github.com/urfave/cli/v3"
)

// uploadSummary is the --json output of an upload.
type uploadSummary struct {
	ID           string            `json:"id"`
	State        string            `json:"state"`
	StatusURL    string            `json:"status_url,omitempty"`
	Result       *models.JobResult `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	PresentError string            `json:"present_error,omitempty"`
	Polls        int               `json:"polls"`
	Elapsed      string            `json:"elapsed,omitempty"`
}

func summarize(job models.UploadJob, err error) uploadSummary {
	s := uploadSummary{
		ID:        job.ID,
		State:     job.State.String(),
		StatusURL: job.StatusURL,
		Result:    job.Result,
		Polls:     job.Cycles,
	}
	if err != nil {
		s.Error = err.Error()
	}
	if job.PresentErr != nil {
		s.PresentError = job.PresentErr.Error()
	}
	if !job.SubmittedAt.IsZero() && !job.FinishedAt.IsZero() {
		s.Elapsed = job.FinishedAt.Sub(job.SubmittedAt).Round(time.Second).String()
	}
	return s
}

// slotsFromFlags fills one slot per modality flag. Missing flags are left for validation to report.
func slotsFromFlags(cmd *cli.Command) (models.FileSlots, error) {
	var slots models.FileSlots
	for _, m := range models.Modalities {
		name := strings.ToLower(string(m))
		path := cmd.String(name)
		if path == "" {
			continue
		}
		ref, err := models.NewFileRef(path)
		if err != nil {
			return slots, fmt.Errorf("%w: --%s: %v", shared.ErrInvalidFlag, name, err)
		}
		if err := slots.Set(m, ref); err != nil {
			return slots, err
		}
	}
	return slots, nil
}

// Upload submits four MRI volumes and follows the job until it completes or fails.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireAPI(); err != nil {
		return err
	}

	owner, err := r.owner()
	if err != nil {
		return err
	}

	slots, err := slotsFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := tasks.ValidateSubmission(&slots, owner); err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.uploadTUI(ctx, slots, owner, cmd.Bool("open"))
	}

	useJSON := cmd.Bool("json")
	r.logger.Info("submitting upload", "user_id", owner.ID, "files", len(slots.Files()))

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		last := -1
		for update := range progressCh {
			if useJSON {
				continue
			}
			switch update.Phase {
			case tasks.Submit:
				r.writePlain("📤 %s\n", update.Message)
			case tasks.Poll:
				if update.Step != last {
					r.writePlain("   %3d%% %s\n", update.Step, update.Message)
					last = update.Step
				}
			case tasks.Completed:
				r.writePlain("✓ %s\n", update.Message)
			case tasks.Failed:
				r.writePlain("✗ %s\n", update.Message)
			}
		}
	}()

	var notifier tasks.Notifier = writerNotifier{out: r.output}
	var presenter tasks.Presenter = r.presenter(r.output, cmd.Bool("open"))
	if useJSON {
		notifier = nil
		presenter = r.presenter(nil, cmd.Bool("open"))
	}

	ctrl := r.newController(progressCh, notifier, presenter)
	stopWatch := r.watchSession(ctx, ctrl)
	defer stopWatch()

	job, err := ctrl.Submit(ctx, slots, owner)
	if err == nil {
		job, err = ctrl.Wait(ctx)
	}
	ctrl.Stop()
	close(progressCh)
	<-done

	if useJSON {
		if werr := r.writeJSON(summarize(job, err), true); werr != nil {
			return werr
		}
		return err
	}
	if err != nil {
		return err
	}

	if job.PresentErr != nil {
		r.writePlain("⚠ %v\n", job.PresentErr)
	}
	r.writePlain("\nLegend:\n%s", legendText())
	return nil
}

func (r *Runner) uploadTUI(ctx context.Context, slots models.FileSlots, owner models.Identity, open bool) error {
	fileLogger, err := shared.NewFileLogger("./tmp/segx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	noticeCh := make(chan tasks.Notice, 8)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl := r.newController(progressCh, ui.ChannelNotifier(noticeCh), r.presenter(nil, open))
	stopWatch := r.watchSession(ctx, ctrl)
	defer stopWatch()

	model := ui.NewUploadModel(ctx, ui.UploadOpts{
		Runner:   ctrl,
		Slots:    slots,
		Owner:    owner,
		Progress: progressCh,
		Notices:  noticeCh,
	})

	if _, err := tea.NewProgram(model).Run(); err != nil {
		ctrl.Stop()
		return fmt.Errorf("error running TUI: %w", err)
	}

	if !model.Finished() {
		ctrl.Stop()
		return shared.ErrCanceled
	}
	job, err := model.Job()
	if err != nil {
		return err
	}
	r.writePlain("✓ %s\n  Segmentation: %s\n  Slice sweep:  %s\n", tasks.MsgAnalysisComplete, job.Result.StaticImage, job.Result.GIF)
	return nil
}

// Status performs one status query against a job's status URL.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	statusURL := cmd.StringArg("url")
	if statusURL == "" {
		return fmt.Errorf("%w: status url is required", shared.ErrMissingArgument)
	}
	if err := r.requireAPI(); err != nil {
		return err
	}

	r.logger.Info("GET status", "url", statusURL)

	resp, err := r.api.Status(ctx, statusURL)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPoll, err)
	}
	if resp.Result != nil {
		normalized := tasks.NormalizeResult(r.api.BaseURL(), *resp.Result)
		resp.Result = &normalized
	}

	if cmd.Bool("json") {
		return r.writeJSON(resp, true)
	}

	r.writePlain("Status: %s\n", resp.Status)
	if resp.Result != nil {
		r.writePlain("Segmentation: %s\n", resp.Result.StaticImage)
		r.writePlain("Slice sweep:  %s\n", resp.Result.GIF)
	}
	if resp.Error != nil {
		r.writePlain("Error: %s\n", *resp.Error)
	}
	if resp.Status == models.StatusFailed {
		return fmt.Errorf("%w: %s", shared.ErrJobFailed, tasks.MsgProcessingFailed)
	}
	return nil
}
