package models

import "time"

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T any] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Identity is the authenticated owner of a submission.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// IsZero reports whether no user is present.
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Session is the persisted sign-in state for the local user.
type Session struct {
	Identity     Identity
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
}

// Expired reports whether the access token has a known expiry in the past.
func (s Session) Expired(now time.Time) bool {
	return !s.TokenExpiry.IsZero() && now.After(s.TokenExpiry)
}

// RememberedEmail is an address saved for quick re-entry at sign-in.
type RememberedEmail struct {
	Email      string
	CreatedAt  time.Time
	LastUsedAt time.Time
}
