package tasks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/segx/internal/formatter"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"golang.org/x/time/rate"
)

// Downloader fetches artifacts from the backend.
type Downloader interface {
	Download(ctx context.Context, path string, w io.Writer) (int64, error)
}

// ExportOpts contains configuration for report exports.
type ExportOpts struct {
	Format     string     // Export format: markdown, txt, json, csv
	OutputDir  string     // Base output directory (default: segx_export_{epoch})
	NumWorkers int        // Concurrent workers (default: 4)
	RateLimit  float64    // Artifact downloads per second (default: 5)
	Download   bool       // Download artifacts next to Markdown reports
	Downloader Downloader // Falls back to plain GETs of absolute artifact URLs
}

// ReportExportResult is the outcome of exporting one report.
type ReportExportResult struct {
	Number   int      `json:"number"`
	RemoteID int64    `json:"remote_id"`
	Success  bool     `json:"success"`
	Files    []string `json:"files"`
	Error    error    `json:"-"`
	Message  string   `json:"error,omitempty"`
}

// ExportResult summarizes an export run.
type ExportResult struct {
	TotalReports      int                  `json:"total_reports"`
	SuccessfulExports int                  `json:"successful_exports"`
	FailedExports     int                  `json:"failed_exports"`
	OutputDirectory   string               `json:"output_directory"`
	ManifestPath      string               `json:"-"`
	Results           []ReportExportResult `json:"results"`
}

// Export writes reports concurrently with a worker pool, rate-limiting artifact downloads, and
// finishes with an export_manifest.json in the output directory. Individual failures do not stop the run.
func Export(ctx context.Context, reports []models.Report, opts ExportOpts, prog chan<- ProgressUpdate) (*ExportResult, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("segx_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Format == "" {
		opts.Format = "markdown"
	}
	switch opts.Format {
	case "markdown", "md", "txt", "json", "csv":
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidFlag, opts.Format)
	}
	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &ExportResult{
		TotalReports:    len(reports),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ReportExportResult, 0, len(reports)),
	}

	if opts.Format == "csv" {
		file, err := formatter.WriteCSVExport(reports, filepath.Join(opts.OutputDir, "reports.csv"))
		if err != nil {
			return nil, err
		}
		for _, r := range reports {
			result.Results = append(result.Results, ReportExportResult{Number: r.Number, RemoteID: r.RemoteID, Success: true, Files: []string{file}})
		}
		result.SuccessfulExports = len(reports)
		return result, writeManifest(result)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan *models.Report, len(reports))
	results := make(chan ReportExportResult, len(reports))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go exportWorker(ctx, &wg, limiter, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i := range reports {
			select {
			case <-ctx.Done():
				return
			case jobs <- &reports[i]:
				sendProgress(prog, exportingReportUpdate(i+1, len(reports), &reports[i]))
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		if res.Error != nil {
			res.Message = res.Error.Error()
		}
		result.Results = append(result.Results, res)

		r := &models.Report{Number: res.Number}
		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(reports), r, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(reports), r, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, writeManifest(result)
}

func writeManifest(result *ExportResult) error {
	manifestPath := filepath.Join(result.OutputDirectory, "export_manifest.json")
	if err := formatter.WriteExportManifest(result, manifestPath); err != nil {
		return fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return nil
}

// exportWorker exports reports from the jobs channel until it closes or ctx is done.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan *models.Report,
	results chan<- ReportExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for r := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- exportSingleReport(ctx, limiter, r, opts)
	}
}

// exportSingleReport writes one report in the requested format.
func exportSingleReport(ctx context.Context, limiter *rate.Limiter, r *models.Report, opts ExportOpts) ReportExportResult {
	result := ReportExportResult{
		Number:   r.Number,
		RemoteID: r.RemoteID,
		Files:    []string{},
	}
	base := fmt.Sprintf("report-%d", r.Number)

	switch opts.Format {
	case "markdown", "md":
		var fetch formatter.Fetcher
		if opts.Download {
			fetch = func(url string) ([]byte, error) {
				if err := limiter.Wait(ctx); err != nil {
					return nil, err
				}
				if opts.Downloader == nil {
					return formatter.DownloadImage(url)
				}
				var buf bytes.Buffer
				if _, err := opts.Downloader.Download(ctx, url, &buf); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			}
		}
		mdRes, err := formatter.WriteMarkdownExport(r, filepath.Join(opts.OutputDir, base), fetch)
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case "txt":
		file, err := formatter.WriteTextExport(r, filepath.Join(opts.OutputDir, base+".txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{file}

	case "json":
		file, err := formatter.WriteJSONExport(r, filepath.Join(opts.OutputDir, base+".json"))
		if err != nil {
			result.Error = err
			return result
		}
		result.Files = []string{file}

	default:
		result.Error = fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidFlag, opts.Format)
		return result
	}

	result.Success = true
	return result
}
