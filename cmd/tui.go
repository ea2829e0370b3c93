package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/desertthunder/segx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive report browser. Selecting a report opens its segmentation in the browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("%w: segmentation API not initialized", shared.ErrServiceUnavailable)
	}
	if _, err := r.owner(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/segx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	cached := cmd.Bool("cached")
	ctrl := r.newController(nil, nil, r.presenter(nil, true))

	model := ui.NewHistoryModel(ctx, ui.HistoryOpts{
		Load: func(ctx context.Context) ([]models.Report, error) {
			return r.loadReports(ctx, cached)
		},
		Open: func(ctx context.Context, rep models.Report) error {
			_, err := ctrl.Show(ctx, rep.Result)
			return err
		},
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
