package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/segx/internal/server"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// AuthLogin signs the user in with the identity provider.
//
// Starts a local callback server, opens the browser for authorization, exchanges the code for a token,
// and stores the resolved identity as the current session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.identity == nil {
		return fmt.Errorf("%w: auth.client_id and auth.userinfo_url must be set in %s", shared.ErrMissingCredentials, r.configPathOrDefault())
	}
	if r.sessions == nil {
		return fmt.Errorf("%w: session store not initialized, run 'segx setup database'", shared.ErrServiceUnavailable)
	}

	state := server.NewState()
	handler := server.NewOAuthHandler(r.identity, state, r.config.Auth.RedirectURI)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	srv, err := server.Listen(r.config.Server.Addr(), router, r.logger)
	if err != nil {
		return err
	}
	defer srv.Shutdown()
	r.logger.Info("started OAuth callback server", "addr", srv.Addr())

	authURL := r.identity.AuthURL(state)
	r.writePlain("→ Opening browser for sign-in...\n")
	if err := r.browse(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", loginTimeout)

	result, err := server.AwaitToken(ctx, srv, handler, loginTimeout)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	id, err := r.identity.UserInfo(ctx, result.Token)
	if err != nil {
		return err
	}

	if err := r.sessions.SignIn(id, result.Token, cmd.Bool("remember")); err != nil {
		return err
	}

	r.writePlainln("✓ Signed in as %s", id.Email)
	return nil
}

// AuthLogout clears the stored session. A running job in this process is stopped by the signed-out event.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.sessions == nil {
		return fmt.Errorf("%w: session store not initialized", shared.ErrServiceUnavailable)
	}

	id, signedIn := r.sessions.Current()
	if err := r.sessions.SignOut(); err != nil {
		return err
	}

	if !signedIn {
		return r.writePlain("Not signed in\n")
	}
	return r.writePlain("✓ Signed out %s\n", id.Email)
}

// AuthStatus shows the current identity and whether the backend is reachable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	if r.sessions != nil {
		if s, ok := r.sessions.Session(); ok {
			r.writePlain("Signed in: ✓ %s (%s)\n", s.Identity.Email, s.Identity.ID)
			if s.Expired(time.Now()) {
				r.writePlain("Token: ✗ expired at %s\n", s.TokenExpiry.Local().Format(time.RFC1123))
			} else if !s.TokenExpiry.IsZero() {
				r.writePlain("Token: valid until %s\n", s.TokenExpiry.Local().Format(time.RFC1123))
			}
		} else {
			r.writePlain("Signed in: ✗ Not authenticated\n")
		}
	}

	if err := r.requireAPI(); err != nil {
		return err
	}
	if err := r.api.Health(ctx); err != nil {
		r.writePlain("Backend: ✗ %s unreachable\n", r.api.BaseURL())
		return err
	}
	return r.writePlain("Backend: ✓ %s\n", r.api.BaseURL())
}

// AuthEmails lists remembered sign-in addresses, most recent first.
func (r *Runner) AuthEmails(ctx context.Context, cmd *cli.Command) error {
	if r.sessions == nil {
		return fmt.Errorf("%w: session store not initialized", shared.ErrServiceUnavailable)
	}

	emails, err := r.sessions.RememberedEmails()
	if err != nil {
		return fmt.Errorf("failed to list remembered emails: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(emails, true)
	}
	if len(emails) == 0 {
		return r.writePlain("No remembered emails. Use 'segx auth login --remember'.\n")
	}
	for _, e := range emails {
		r.writePlain("%s  (last used %s)\n", e.Email, e.LastUsedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (r *Runner) configPathOrDefault() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}
