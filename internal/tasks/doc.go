// Package tasks drives segmentation jobs from submission to result handoff, with real-time progress reporting.
//
// # Job Lifecycle
//
// [Controller] owns at most one [models.UploadJob] at a time:
//
//  1. [Controller.Submit] : validate and upload the four volumes
//     - Fewer than four slots, a non-NIfTI file name, or a missing owner fails with [shared.ErrValidation] and sends nothing
//     - Transport errors, non-2xx responses, and a missing status_url fail with [shared.ErrSubmission]; the job returns to Idle
//     - On success the job moves to Polling with an aggregate estimate of 10
//
//  2. The poll loop : one status request per cycle, strictly sequential
//     - failed : one failure notice, state Failed, loop ends
//     - complete with a result : estimate 100, completion pause, [Handoff], loop ends
//     - anything else : estimate advances by [ProgressStep], capped below [ProgressCeiling], then waits [PollInterval]
//     - a failed request ends the loop with [shared.ErrPoll]; there are no retries
//
//  3. [Handoff] : normalize both artifact paths with [Normalize] and pass them to the [Presenter] exactly once
//
// Submitting again or calling [Controller.Stop] bumps a generation counter. Responses that arrive for an older
// generation are dropped without touching the job and never reach the presenter.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # History and Export
//
// [History] fetches a user's reports, keeps completed ones, normalizes paths, and numbers them newest first.
// [Export] writes reports with a rate-limited worker pool and a JSON manifest.
package tasks
