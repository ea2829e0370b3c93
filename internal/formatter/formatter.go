// package formatter provides functions to export segmentation reports to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

// LegendEntry describes one label class of the segmentation overlay.
type LegendEntry struct {
	Label       string
	Color       string // hex, as rendered in the composite image
	Description string
}

// Legend lists the overlay classes in label order.
var Legend = []LegendEntry{
	{Label: "Background", Color: "#000000"},
	{Label: "Necrotic core", Color: "#DC2626", Description: "Dead tissue within the tumor region"},
	{Label: "Peritumoral edema", Color: "#EAB308", Description: "Swelling around the tumor area"},
	{Label: "GD-enhancing tumor", Color: "#16A34A", Description: "Active tumor regions"},
}

const dateLayout = "2006-01-02 15:04 MST"

// Fetcher retrieves an artifact's bytes by URL.
type Fetcher func(url string) ([]byte, error)

// ExportToCSV converts a report listing to CSV with columns: Number, RemoteID, BatchID, Email, CreatedAt, StaticImage, GIF
func ExportToCSV(reports []models.Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Number", "RemoteID", "BatchID", "Email", "CreatedAt", "StaticImage", "GIF"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range reports {
		record := []string{
			strconv.Itoa(r.Number),
			strconv.FormatInt(r.RemoteID, 10),
			r.BatchID,
			r.Email,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Result.StaticImage,
			r.Result.GIF,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a report with its legend. Local artifact filenames replace the remote URLs when set.
func ExportToMarkdown(r *models.Report, staticFile, gifFile string) ([]byte, error) {
	var buf bytes.Buffer

	staticRef := r.Result.StaticImage
	if staticFile != "" {
		staticRef = staticFile
	}
	gifRef := r.Result.GIF
	if gifFile != "" {
		gifRef = gifFile
	}

	buf.WriteString(fmt.Sprintf("# Brain Segmentation Report #%d\n\n", r.Number))
	buf.WriteString(fmt.Sprintf("**Date**: %s\n", r.CreatedAt.Format(dateLayout)))
	if r.Email != "" {
		buf.WriteString(fmt.Sprintf("**Patient account**: %s\n", r.Email))
	}
	if r.BatchID != "" {
		buf.WriteString(fmt.Sprintf("**Batch**: %s\n", r.BatchID))
	}
	buf.WriteString("\n## Segmentation Result\n\n")
	buf.WriteString(fmt.Sprintf("![Segmentation](%s)\n\n", staticRef))
	buf.WriteString("## Dynamic View\n\n")
	buf.WriteString(fmt.Sprintf("![Slice sweep](%s)\n\n", gifRef))
	buf.WriteString("This animation shows the segmentation results across different slices of the brain scan.\n\n")

	buf.WriteString("## Legend\n\n")
	buf.WriteString("| Class | Color | Meaning |\n|---|---|---|\n")
	for _, e := range Legend {
		buf.WriteString(fmt.Sprintf("| %s | `%s` | %s |\n", e.Label, e.Color, e.Description))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a report to plain text format
func ExportToText(r *models.Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Report #%d\n", r.Number))
	buf.WriteString(fmt.Sprintf("Date: %s\n", r.CreatedAt.Format(dateLayout)))
	if r.Email != "" {
		buf.WriteString(fmt.Sprintf("Email: %s\n", r.Email))
	}
	buf.WriteString(fmt.Sprintf("Static image: %s\n", r.Result.StaticImage))
	buf.WriteString(fmt.Sprintf("Slice sweep: %s\n\n", r.Result.GIF))

	buf.WriteString("Legend:\n")
	for _, e := range Legend {
		buf.WriteString(fmt.Sprintf("  %-20s %s\n", e.Label, e.Color))
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates an indented JSON representation of a report
func ToMetadataJSON(r *models.Report) ([]byte, error) {
	return shared.MarshalJSON(r, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// WriteCSVExport writes a report listing to file. Defaults to reports.csv.
func WriteCSVExport(reports []models.Report, file string) (string, error) {
	if file == "" {
		file = "reports.csv"
	}

	data, err := ExportToCSV(reports)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return file, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory   string
	Files       []string
	StaticImage string
	GIF         string
}

// WriteMarkdownExport exports a report to Markdown format in a dedicated directory.
//
// Directory name defaults to report-{number}.
// When fetch is non-nil both artifacts are downloaded next to the README; a failed download falls back to the remote URL.
// Creates a directory structure: {dir}/README.md and optionally {dir}/segmentation.png, {dir}/sweep.gif
func WriteMarkdownExport(r *models.Report, outputDir string, fetch Fetcher) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = fmt.Sprintf("report-%d", r.Number)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var staticFile, gifFile string
	if fetch != nil {
		staticFile = saveArtifact(fetch, r.Result.StaticImage, outputDir, "segmentation")
		gifFile = saveArtifact(fetch, r.Result.GIF, outputDir, "sweep")
		if staticFile != "" {
			result.StaticImage = filepath.Join(outputDir, staticFile)
			result.Files = append(result.Files, result.StaticImage)
		}
		if gifFile != "" {
			result.GIF = filepath.Join(outputDir, gifFile)
			result.Files = append(result.Files, result.GIF)
		}
	}

	mdData, err := ExportToMarkdown(r, staticFile, gifFile)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// saveArtifact downloads url into dir as name plus the URL's extension and returns the file name, or "" on failure.
func saveArtifact(fetch Fetcher, url, dir, name string) string {
	if url == "" {
		return ""
	}
	data, err := fetch(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to download %s: %v\n", url, err)
		return ""
	}

	filename := name + path.Ext(url)
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to save %s: %v\n", filename, err)
		return ""
	}
	return filename
}

// WriteTextExport exports a report to plain text format.
//
// Defaults to report-{number}.txt as the filename.
func WriteTextExport(r *models.Report, file string) (string, error) {
	if file == "" {
		file = fmt.Sprintf("report-%d.txt", r.Number)
	}

	textData, err := ExportToText(r)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(file, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return file, nil
}

// WriteJSONExport writes a report's metadata as indented JSON.
func WriteJSONExport(r *models.Report, file string) (string, error) {
	if file == "" {
		file = fmt.Sprintf("report-%d.json", r.Number)
	}

	data, err := ToMetadataJSON(r)
	if err != nil {
		return "", fmt.Errorf("JSON marshal failed: %w", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", fmt.Errorf("JSON write failed: %w", err)
	}
	return file, nil
}

// WriteExportManifest writes v as indented JSON to file.
func WriteExportManifest(v any, file string) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
