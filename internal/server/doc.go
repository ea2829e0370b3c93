// Package server provides HTTP routing, middleware, and the OAuth callback listener used by `segx auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [RequestLogger] is the only middleware shipped here.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// and sends the result through a channel. It only processes one callback.
//
// # Login Flow
//
// [Listen] binds the configured host:port, the CLI opens the provider's consent page, and [AwaitToken]
// blocks until the redirect arrives or the timeout passes. The server is shut down right after.
package server
