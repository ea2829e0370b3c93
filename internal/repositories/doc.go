// Package repositories implements SQLite persistence for the local client state.
//
// Key Implementations:
//   - [ReportRepository] : cache of completed reports, keyed by (user_id, remote_id)
//   - [SessionRepository] : the single signed-in session
//   - [RememberedEmailRepository] : addresses offered at sign-in
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
