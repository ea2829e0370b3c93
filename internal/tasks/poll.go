package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

// pollLoop queries r's status URL until the job reaches a terminal state, the request fails, or r is superseded.
//
// Requests run on a context detached from ctx so a cancel never aborts one mid-flight; cancellation is
// only observed before rescheduling. Cycles are strictly sequential.
func (c *Controller) pollLoop(ctx context.Context, r *run, logger *log.Logger) {
	defer close(r.done)
	defer r.cancel()

	for cycle := 1; ; cycle++ {
		resp, err := c.fetcher.Status(context.WithoutCancel(ctx), r.statusURL)
		if err != nil {
			c.fail(r, logger, fmt.Errorf("%w: %v", shared.ErrPoll, err), MsgPollError)
			return
		}

		switch {
		case resp.Status == models.StatusFailed:
			c.fail(r, logger, jobFailedError(resp), MsgProcessingFailed)
			return
		case resp.Status == models.StatusComplete && resp.Result != nil:
			c.complete(ctx, r, logger, *resp.Result)
			return
		}

		if !c.advance(r, logger, cycle, resp.Status) {
			return
		}
		if ctx.Err() != nil {
			logger.Debug("poll loop canceled")
			return
		}
		if err := c.sleep(ctx, c.interval); err != nil {
			logger.Debug("poll loop canceled during wait")
			return
		}
	}
}

func jobFailedError(resp *models.StatusResponse) error {
	if resp.Error != nil && *resp.Error != "" {
		return fmt.Errorf("%w: %s", shared.ErrJobFailed, *resp.Error)
	}
	return shared.ErrJobFailed
}

// advance moves the estimate forward for a running response. It returns false when r is stale.
func (c *Controller) advance(r *run, logger *log.Logger, cycle int, status models.JobStatus) bool {
	c.mu.Lock()
	if !c.current(r) {
		c.mu.Unlock()
		logger.Debug("ignoring stale status", "status", status)
		return false
	}
	if next := Estimate(cycle); next.Aggregate() > r.job.Estimate.Aggregate() {
		r.job.Estimate = next
	}
	r.job.Cycles = cycle
	est := r.job.Estimate
	c.mu.Unlock()

	logger.Debug("job running", "status", status, "progress", est.Aggregate())
	c.emit(r, pollingUpdate(est, status))
	return true
}

// fail moves r to Failed and emits exactly one notice. Stale runs are left untouched.
func (c *Controller) fail(r *run, logger *log.Logger, err error, msg string) {
	c.mu.Lock()
	if !c.current(r) {
		c.mu.Unlock()
		logger.Debug("ignoring stale failure", "error", err)
		return
	}
	r.job.State = models.Failed
	r.job.Err = err
	r.job.FinishedAt = time.Now().UTC()
	est := r.job.Estimate
	c.mu.Unlock()

	logger.Error("job failed", "error", err)
	c.emit(r, failedUpdate(est, err))
	if c.isCurrent(r) {
		c.notify(NoticeError, msg)
	}
}

// complete records the result, waits out the completion pause, then hands off once.
// A stop or supersede during the pause skips the handoff.
func (c *Controller) complete(ctx context.Context, r *run, logger *log.Logger, result models.JobResult) {
	normalized := NormalizeResult(c.baseURL, result)

	c.mu.Lock()
	if !c.current(r) {
		c.mu.Unlock()
		logger.Debug("ignoring stale completion")
		return
	}
	r.job.State = models.Complete
	r.job.Estimate = CompleteEstimate()
	r.job.Result = &normalized
	r.job.FinishedAt = time.Now().UTC()
	est := r.job.Estimate
	c.mu.Unlock()

	logger.Info("job complete", "static_image", normalized.StaticImage, "gif", normalized.GIF)
	c.emit(r, completedUpdate(est, normalized))

	if err := c.sleep(ctx, c.pause); err != nil {
		logger.Debug("handoff skipped", "reason", err)
		return
	}
	if !c.isCurrent(r) {
		logger.Debug("handoff skipped", "reason", "superseded")
		return
	}

	r.handoff.Do(func() {
		_, err := Handoff(ctx, c.presenter, c.runNotifier(r), c.baseURL, normalized, true)
		if err != nil {
			c.mu.Lock()
			r.job.PresentErr = err
			c.mu.Unlock()
			logger.Warn("failed to present results", "error", err)
		}
		c.emit(r, presentedUpdate(normalized))
	})
}
