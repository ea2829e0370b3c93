package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/server"
	"github.com/desertthunder/segx/internal/services"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/desertthunder/segx/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// ReportStore is the local report cache: what history needs plus per-user cleanup.
type ReportStore interface {
	tasks.ReportCache
	DeleteByUser(userID string) (int64, error)
}

// Authenticator runs the identity provider's side of sign-in. [services.IdentityService] implements it.
type Authenticator interface {
	server.Exchanger
	AuthURL(state string) string
	UserInfo(ctx context.Context, token *oauth2.Token) (models.Identity, error)
}

var _ Authenticator = (*services.IdentityService)(nil)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        services.Backend
	identity   Authenticator
	sessions   *services.SessionManager
	reports    ReportStore
	history    *tasks.History
	logger     *log.Logger
	output     io.Writer
	browse     func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        services.Backend
	Identity   Authenticator
	Sessions   *services.SessionManager
	Reports    ReportStore
	Logger     *log.Logger
	Output     io.Writer
	Browse     func(url string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Browse == nil {
		opts.Browse = shared.OpenBrowser
	}

	var history *tasks.History
	if opts.API != nil {
		var cache tasks.ReportCache
		if opts.Reports != nil {
			cache = opts.Reports
		}
		history = tasks.NewHistory(opts.API, cache, opts.API.BaseURL(), opts.Logger)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		identity:   opts.Identity,
		sessions:   opts.Sessions,
		reports:    opts.Reports,
		history:    history,
		logger:     opts.Logger,
		output:     opts.Output,
		browse:     opts.Browse,
	}
}

// SetLogger replaces the runner's logger, e.g. with a file logger while a TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, uploadCommand, statusCommand, reportsCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// owner returns the signed-in identity or an error telling the user to log in.
func (r *Runner) owner() (models.Identity, error) {
	var s tasks.AuthSession
	if r.sessions != nil {
		s = r.sessions
	}
	id, err := tasks.Owner(s)
	if err != nil {
		return id, fmt.Errorf("%w: run 'segx auth login' first", err)
	}
	return id, nil
}

// requireAPI fails when no backend client was configured.
func (r *Runner) requireAPI() error {
	if r.api == nil {
		return fmt.Errorf("%w: segmentation API not initialized", shared.ErrServiceUnavailable)
	}
	return nil
}

// newController builds a job controller wired to the backend, this runner's presenter, and the given channels.
func (r *Runner) newController(progress chan<- tasks.ProgressUpdate, notifier tasks.Notifier, presenter tasks.Presenter) *tasks.Controller {
	return tasks.NewController(tasks.ControllerOpts{
		Backend:   r.api,
		Presenter: presenter,
		Notifier:  notifier,
		BaseURL:   r.api.BaseURL(),
		Logger:    r.logger,
		Progress:  progress,
	})
}

// watchSession stops ctrl's job when the user signs out while it runs. The returned func ends the watch.
func (r *Runner) watchSession(ctx context.Context, ctrl *tasks.Controller) func() {
	if r.sessions == nil {
		return func() {}
	}
	events, cancel := r.sessions.Subscribe(ctx)
	go ctrl.WatchSession(ctx, events)
	return cancel
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
