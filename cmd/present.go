package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/tasks"
)

// Prober checks that an artifact URL resolves.
type Prober interface {
	Probe(ctx context.Context, path string) error
}

// terminalPresenter prints a result's artifact URLs, probes each one, and optionally opens the static image.
//
// Unreachable artifacts are reported as an error; the controller records it without failing the job.
type terminalPresenter struct {
	out    io.Writer
	prober Prober
	open   bool
	browse func(url string) error
}

var _ tasks.Presenter = (*terminalPresenter)(nil)

func (r *Runner) presenter(out io.Writer, open bool) *terminalPresenter {
	return &terminalPresenter{out: out, prober: r.api, open: open, browse: r.browse}
}

func (p *terminalPresenter) Present(ctx context.Context, result models.JobResult, isNewUpload bool) error {
	if p.out != nil {
		heading := "Report"
		if isNewUpload {
			heading = "New segmentation"
		}
		fmt.Fprintf(p.out, "\n%s\n", heading)
		fmt.Fprintf(p.out, "  Segmentation: %s\n", result.StaticImage)
		fmt.Fprintf(p.out, "  Slice sweep:  %s\n", result.GIF)
	}

	var errs []error
	if p.prober != nil {
		for _, u := range []string{result.StaticImage, result.GIF} {
			if err := p.prober.Probe(ctx, u); err != nil {
				errs = append(errs, fmt.Errorf("%s unreachable: %w", u, err))
			}
		}
	}

	if p.open && p.browse != nil {
		if err := p.browse(result.StaticImage); err != nil {
			errs = append(errs, fmt.Errorf("failed to open browser: %w", err))
		}
	}
	return errors.Join(errs...)
}

// writerNotifier prints notices as single lines.
type writerNotifier struct {
	out io.Writer
}

func (n writerNotifier) Notify(notice tasks.Notice) {
	switch notice.Level {
	case tasks.NoticeSuccess:
		fmt.Fprintf(n.out, "✓ %s\n", notice.Message)
	case tasks.NoticeWarning:
		fmt.Fprintf(n.out, "⚠ %s\n", notice.Message)
	case tasks.NoticeError:
		fmt.Fprintf(n.out, "✗ %s\n", notice.Message)
	default:
		fmt.Fprintf(n.out, "%s\n", notice.Message)
	}
}
