package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

// Uploader sends a complete submission to the backend.
type Uploader interface {
	Upload(ctx context.Context, slots models.FileSlots, owner models.Identity) (*models.SubmitResponse, error)
}

// AuthSession exposes the signed-in identity.
type AuthSession interface {
	Current() (models.Identity, bool)
}

// Owner returns the signed-in identity or [shared.ErrNotAuthenticated].
func Owner(s AuthSession) (models.Identity, error) {
	if s == nil {
		return models.Identity{}, shared.ErrNotAuthenticated
	}
	id, ok := s.Current()
	if !ok {
		return models.Identity{}, shared.ErrNotAuthenticated
	}
	return id, nil
}

// ValidateSubmission checks every precondition of a submit without touching the network.
func ValidateSubmission(slots *models.FileSlots, owner models.Identity) error {
	if missing := slots.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, m := range missing {
			names[i] = string(m)
		}
		return fmt.Errorf("%w: missing %s", shared.ErrValidation, strings.Join(names, ", "))
	}

	for _, m := range models.Modalities {
		f, _ := slots.Get(m)
		if !models.HasNIfTIExtension(f.Name) {
			return fmt.Errorf("%w: %s file %q is not .nii or .nii.gz", shared.ErrValidation, m, f.Name)
		}
	}

	if owner.ID == "" {
		return fmt.Errorf("%w: owner id is required", shared.ErrValidation)
	}
	return nil
}

// Assembler validates and sends one submission.
type Assembler struct {
	uploader Uploader
	logger   *log.Logger
}

// NewAssembler creates an [Assembler] that sends through u.
func NewAssembler(u Uploader, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Assembler{uploader: u, logger: logger}
}

// Submit validates slots and owner, uploads them, and returns the job's status URL.
//
// A validation failure sends nothing. Transport errors, non-2xx responses, and a response without
// status_url all wrap [shared.ErrSubmission].
func (a *Assembler) Submit(ctx context.Context, slots models.FileSlots, owner models.Identity) (string, error) {
	if err := ValidateSubmission(&slots, owner); err != nil {
		return "", err
	}
	if a.uploader == nil {
		return "", fmt.Errorf("%w: uploader not initialized", shared.ErrServiceUnavailable)
	}

	a.logger.Debug("submitting volumes", "user_id", owner.ID, "files", len(slots.Files()))

	resp, err := a.uploader.Upload(ctx, slots, owner)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrSubmission, err)
	}
	if resp == nil || resp.StatusURL == "" {
		return "", fmt.Errorf("%w: response has no status_url", shared.ErrSubmission)
	}

	a.logger.Info("upload accepted", "status_url", resp.StatusURL)
	return resp.StatusURL, nil
}
