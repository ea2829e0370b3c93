// package services defines clients for the segmentation backend and the identity provider
package services

import (
	"context"
	"io"

	"github.com/desertthunder/segx/internal/models"
)

// Backend is the set of segmentation API operations the CLI depends on.
type Backend interface {
	// BaseURL returns the canonical origin used to normalize artifact paths.
	BaseURL() string

	// Upload submits four volumes as one job and returns the server's status handle.
	Upload(ctx context.Context, slots models.FileSlots, owner models.Identity) (*models.SubmitResponse, error)

	// Status fetches the current state of a job.
	Status(ctx context.Context, statusURL string) (*models.StatusResponse, error)

	// Reports lists a user's uploads, completed or not.
	Reports(ctx context.Context, userID string) ([]ReportItem, error)

	// Download streams an artifact into w.
	Download(ctx context.Context, path string, w io.Writer) (int64, error)

	// Probe checks that an artifact is reachable without fetching it.
	Probe(ctx context.Context, path string) error

	// Health reports whether the backend answers at all.
	Health(ctx context.Context) error
}

var _ Backend = (*APIService)(nil)
