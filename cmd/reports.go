package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/segx/internal/formatter"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"github.com/desertthunder/segx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// loadReports returns the signed-in user's completed reports, newest first, from the backend or the local cache.
func (r *Runner) loadReports(ctx context.Context, cached bool) ([]models.Report, error) {
	if r.history == nil {
		return nil, fmt.Errorf("%w: segmentation API not initialized", shared.ErrServiceUnavailable)
	}

	owner, err := r.owner()
	if err != nil {
		return nil, err
	}

	if cached {
		return r.history.Cached(owner.ID)
	}
	return r.history.Fetch(ctx, owner.ID, nil)
}

// ReportsList prints the user's completed reports.
func (r *Runner) ReportsList(ctx context.Context, cmd *cli.Command) error {
	reports, err := r.loadReports(ctx, cmd.Bool("cached"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(reports, true)
	}

	if len(reports) == 0 {
		return r.writePlain("No completed reports yet.\n")
	}

	r.writePlainHeader(fmt.Sprintf("Reports (%d)", len(reports)))
	for _, rep := range reports {
		r.writePlain("#%-4d %s  %s\n", rep.Number, rep.CreatedAt.Local().Format("2006-01-02 15:04"), rep.BatchID)
	}
	return nil
}

// ReportsView presents one historical report. No completion notice is shown for history.
func (r *Runner) ReportsView(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("ref")
	if ref == "" {
		return fmt.Errorf("%w: report number or id is required", shared.ErrMissingArgument)
	}

	reports, err := r.loadReports(ctx, cmd.Bool("cached"))
	if err != nil {
		return err
	}

	report, err := tasks.Find(reports, ref)
	if err != nil {
		return err
	}

	ctrl := r.newController(nil, writerNotifier{out: r.output}, r.presenter(r.output, cmd.Bool("open")))
	if _, err := ctrl.Show(ctx, report.Result); err != nil {
		r.writePlain("⚠ %v\n", err)
	}

	r.writePlain("\nReport #%d  (id %d, batch %s)\n", report.Number, report.RemoteID, report.BatchID)
	r.writePlain("Created: %s\n", report.CreatedAt.Local().Format("2006-01-02 15:04 MST"))
	r.writePlain("\nLegend:\n%s", legendText())
	return nil
}

// ReportsExport writes reports to disk, optionally downloading artifacts with a rate-limited worker pool.
func (r *Runner) ReportsExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	switch format {
	case "md", "markdown", "txt", "json", "csv":
	default:
		return fmt.Errorf("%w: --format must be md, txt, json or csv, got %q", shared.ErrInvalidFlag, format)
	}

	reports, err := r.loadReports(ctx, cmd.Bool("cached"))
	if err != nil {
		return err
	}

	if ids := cmd.StringSlice("ids"); len(ids) > 0 {
		selected := make([]models.Report, 0, len(ids))
		for _, ref := range ids {
			rep, err := tasks.Find(reports, ref)
			if err != nil {
				return err
			}
			selected = append(selected, *rep)
		}
		reports = selected
	}

	if len(reports) == 0 {
		return r.writePlain("No reports to export.\n")
	}

	outputDir := cmd.String("output")
	if outputDir == "" {
		outputDir = r.config.Export.OutputDir
	}

	opts := tasks.ExportOpts{
		Format:     format,
		OutputDir:  outputDir,
		NumWorkers: r.config.Export.NumWorkers,
		RateLimit:  r.config.Export.RateLimit,
		Download:   cmd.Bool("download"),
	}
	if opts.Download {
		opts.Downloader = r.api
	}

	r.logger.Info("exporting reports", "count", len(reports), "format", format, "download", opts.Download)
	r.writePlain("Exporting %d reports...\n\n", len(reports))

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := tasks.Export(ctx, reports, opts, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Total: %d\n", result.TotalReports)
	r.writePlain("Successful: %d\n", result.SuccessfulExports)
	r.writePlain("Failed: %d\n", result.FailedExports)
	r.writePlain("Output: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed exports:\n")
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  ✗ #%d: %v\n", res.Number, res.Error)
			}
		}
	}
	return nil
}

// ReportsClear removes the signed-in user's reports from the local cache.
func (r *Runner) ReportsClear(ctx context.Context, cmd *cli.Command) error {
	if r.reports == nil {
		return fmt.Errorf("%w: report cache not initialized", shared.ErrServiceUnavailable)
	}

	owner, err := r.owner()
	if err != nil {
		return err
	}

	n, err := r.reports.DeleteByUser(owner.ID)
	if err != nil {
		return fmt.Errorf("failed to clear cached reports: %w", err)
	}
	r.logger.Info("cleared cached reports", "user_id", owner.ID, "count", n)
	return r.writePlain("✓ Removed %d cached reports\n", n)
}

func legendText() string {
	var b strings.Builder
	for _, e := range formatter.Legend {
		line := fmt.Sprintf("  %-20s %s", e.Label, e.Color)
		if e.Description != "" {
			line += "  " + e.Description
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
