// Package services implements the HTTP clients segx depends on.
//
// # Segmentation Backend
//
// [APIService] implements [Backend] against the segmentation server:
//   - POST /api/upload/ : multipart upload of the four NIfTI volumes (field nifti_files, in T1, T1c, T2, FLAIR order) plus user_id and email
//   - GET <status_url> : job status; relative URLs resolve against the base URL
//   - GET /api/reports/{user_id}/ : the user's upload history
//
// Request bodies are streamed through an [io.Pipe] so volumes are never fully buffered in memory.
//
// # Identity
//
// [IdentityService] runs the OAuth2 authorization-code flow with [oauth2.Config] and resolves the
// signed-in [models.Identity] from the provider's userinfo endpoint.
//
// [SessionManager] persists the identity through a [SessionStore] and publishes [SessionEvent]s
// (SignedIn, SignedOut) to subscribers with non-blocking sends.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrAPIRequest] : transport failure or non-2xx response
//   - [shared.ErrServiceUnavailable] : health check failed
//   - [shared.ErrAuthFailed] : code exchange or userinfo failed
//   - [shared.ErrMissingCredentials] : no OAuth client configured
package services
