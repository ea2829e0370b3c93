package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/services"
	"github.com/desertthunder/segx/internal/shared"
)

// StatusFetcher reads the current state of a job.
type StatusFetcher interface {
	Status(ctx context.Context, statusURL string) (*models.StatusResponse, error)
}

// JobBackend is what the [Controller] needs from the segmentation API.
type JobBackend interface {
	Uploader
	StatusFetcher
}

// Sleeper blocks for d or until ctx is done, returning ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real-clock [Sleeper].
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ControllerOpts configures a [Controller]. Backend is required.
type ControllerOpts struct {
	Backend         JobBackend
	Presenter       Presenter
	Notifier        Notifier
	BaseURL         string
	Logger          *log.Logger
	Progress        chan<- ProgressUpdate
	Sleep           Sleeper
	PollInterval    time.Duration
	CompletionPause time.Duration
}

// run is one submission and its poll loop.
type run struct {
	gen       uint64
	ctx       context.Context
	statusURL string
	job       models.UploadJob
	cancel    context.CancelFunc
	done      chan struct{}
	handoff   sync.Once
}

// Controller drives one upload job at a time from submission to result handoff.
//
// Every mutation of the job is gated by a generation counter: submitting again or calling [Controller.Stop]
// bumps the generation, and responses that arrive for an older generation are dropped.
type Controller struct {
	assembler *Assembler
	fetcher   StatusFetcher
	presenter Presenter
	notifier  Notifier
	baseURL   string
	logger    *log.Logger
	progress  chan<- ProgressUpdate
	sleep     Sleeper
	interval  time.Duration
	pause     time.Duration

	mu     sync.Mutex
	gen    uint64
	active *run

	// emitMu serializes progress sends against Stop so a stopped run never sends.
	emitMu sync.Mutex
}

// NewController creates a [Controller] from opts, filling unset timings with the package defaults.
func NewController(opts ControllerOpts) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = PollInterval
	}
	if opts.CompletionPause <= 0 {
		opts.CompletionPause = CompletionPause
	}

	var uploader Uploader
	if opts.Backend != nil {
		uploader = opts.Backend
	}

	return &Controller{
		assembler: NewAssembler(uploader, opts.Logger),
		fetcher:   opts.Backend,
		presenter: opts.Presenter,
		notifier:  opts.Notifier,
		baseURL:   opts.BaseURL,
		logger:    opts.Logger,
		progress:  opts.Progress,
		sleep:     opts.Sleep,
		interval:  opts.PollInterval,
		pause:     opts.CompletionPause,
	}
}

// Submit cancels any running job, uploads slots for owner, and starts polling in the background.
//
// ctx bounds the whole job: canceling it stops the poll loop at its next reschedule.
// The returned job is a snapshot taken when polling starts, or when the submission failed.
func (c *Controller) Submit(ctx context.Context, slots models.FileSlots, owner models.Identity) (models.UploadJob, error) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.gen++
	c.supersede(shared.ErrSuperseded)
	r := &run{
		gen:    c.gen,
		ctx:    runCtx,
		cancel: cancel,
		done:   make(chan struct{}),
		job: models.UploadJob{
			ID:          shared.GenerateID(),
			Generation:  c.gen,
			Owner:       owner,
			Slots:       slots,
			State:       models.Submitting,
			SubmittedAt: time.Now().UTC(),
		},
	}
	c.active = r
	c.mu.Unlock()

	logger := shared.WithLogger(c.logger, "job_id", r.job.ID, "generation", r.gen)
	c.emit(r, submittingUpdate(len(slots.Files())))

	statusURL, err := c.assembler.Submit(runCtx, slots, owner)

	c.mu.Lock()
	if !c.current(r) {
		snap := r.job
		c.mu.Unlock()
		close(r.done)
		cancel()
		logger.Debug("submission superseded")
		if snap.Err == nil {
			snap.Err = shared.ErrSuperseded
		}
		return snap, snap.Err
	}

	if err != nil {
		r.job.State = models.Idle
		r.job.Err = err
		snap := r.job
		c.mu.Unlock()
		close(r.done)
		cancel()

		logger.Error("submission failed", "error", err)
		if errors.Is(err, shared.ErrValidation) {
			c.notify(NoticeWarning, err.Error())
		} else {
			c.notify(NoticeError, uploadFailedMessage(err))
		}
		return snap, err
	}

	r.statusURL = statusURL
	r.job.StatusURL = statusURL
	r.job.State = models.Polling
	r.job.Estimate = Estimate(0)
	snap := r.job
	c.mu.Unlock()

	c.emit(r, submittedUpdate(snap.Estimate, statusURL))
	go c.pollLoop(runCtx, r, logger)
	return snap, nil
}

// Stop cancels the running job, if any, and resets the controller to idle.
// A status request already in flight finishes but its response is ignored.
//
// Once Stop returns, no run sends on the progress channel again, so the caller may close it.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.gen++
	c.supersede(shared.ErrCanceled)
	c.mu.Unlock()

	c.emitMu.Lock()
	c.emitMu.Unlock()
}

// Wait blocks until the current job's loop ends and returns its final state.
// The error is nil only when the job completed.
func (c *Controller) Wait(ctx context.Context) (models.UploadJob, error) {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()

	if r == nil {
		return models.UploadJob{State: models.Idle}, fmt.Errorf("%w: no job running", shared.ErrCanceled)
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return c.snapshot(r), ctx.Err()
	}

	job := c.snapshot(r)
	if job.State == models.Complete {
		return job, nil
	}
	if job.Err == nil {
		return job, shared.ErrCanceled
	}
	return job, job.Err
}

// Snapshot returns a copy of the current job, or an idle job when nothing is running.
func (c *Controller) Snapshot() models.UploadJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return models.UploadJob{State: models.Idle, Generation: c.gen}
	}
	return c.active.job
}

// Generation returns the current generation counter.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Show presents a historical result. No completion notice is shown.
func (c *Controller) Show(ctx context.Context, result models.JobResult) (models.JobResult, error) {
	return Handoff(ctx, c.presenter, c.notifier, c.baseURL, result, false)
}

// WatchSession stops the running job when the user signs out. It returns when ctx is done or events closes.
func (c *Controller) WatchSession(ctx context.Context, events <-chan services.SessionEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == services.SignedOut {
				c.logger.Info("session ended, stopping job", "user_id", ev.Identity.ID)
				c.Stop()
			}
		}
	}
}

// supersede cancels and detaches the active run. Callers hold c.mu.
func (c *Controller) supersede(reason error) {
	r := c.active
	if r == nil {
		return
	}
	r.cancel()
	if !r.job.State.IsTerminal() && r.job.Err == nil {
		r.job.Err = reason
	}
	c.active = nil
}

// current reports whether r still owns the job. Callers hold c.mu.
func (c *Controller) current(r *run) bool {
	return c.active == r && r.gen == c.gen
}

func (c *Controller) isCurrent(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(r)
}

func (c *Controller) snapshot(r *run) models.UploadJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.job
}

// emit sends u for r while r still owns the job. Terminal updates wait for room on the channel
// until r is canceled; all others are dropped when the channel is full.
func (c *Controller) emit(r *run, u ProgressUpdate) {
	if c.progress == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if !c.isCurrent(r) {
		return
	}
	if u.Phase.Terminal() {
		sendProgressWait(r.ctx, c.progress, u)
		return
	}
	sendProgress(c.progress, u)
}

// runNotifier forwards notices only while r owns the job.
func (c *Controller) runNotifier(r *run) Notifier {
	if c.notifier == nil {
		return nil
	}
	return NotifierFunc(func(n Notice) {
		if c.isCurrent(r) {
			c.notifier.Notify(n)
		}
	})
}

func (c *Controller) notify(level NoticeLevel, msg string) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(Notice{Level: level, Message: msg})
}

// uploadFailedMessage reports the server's own message for a rejected upload and a generic one for transport failures.
func uploadFailedMessage(err error) string {
	var se *services.StatusError
	if !errors.As(err, &se) {
		return MsgNetworkError
	}
	if se.Message != "" {
		return fmt.Sprintf(MsgUploadFailed, se.Message)
	}
	return fmt.Sprintf(MsgUploadFailed, fmt.Sprintf("status %d", se.StatusCode))
}
