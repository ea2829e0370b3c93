package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
)

// currentSessionID keys the single sessions row.
const currentSessionID = "current"

// SessionRepository persists the signed-in session so it survives restarts.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Save replaces the stored session with s.
func (r *SessionRepository) Save(s models.Session) error {
	if s.Identity.IsZero() {
		return fmt.Errorf("%w: session has no user", shared.ErrInvalidInput)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	var expiry any
	if !s.TokenExpiry.IsZero() {
		expiry = s.TokenExpiry.UTC()
	}

	query := `
		INSERT OR REPLACE INTO sessions (id, user_id, email, display_name, access_token, refresh_token, token_expiry, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		currentSessionID,
		s.Identity.ID,
		s.Identity.Email,
		s.Identity.DisplayName,
		s.AccessToken,
		s.RefreshToken,
		expiry,
		s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load returns the stored session, or nil when nobody is signed in.
func (r *SessionRepository) Load() (*models.Session, error) {
	query := `
		SELECT user_id, email, display_name, access_token, refresh_token, token_expiry, created_at
		FROM sessions
		WHERE id = ?
	`

	var (
		s      models.Session
		expiry sql.NullTime
	)
	err := r.db.QueryRow(query, currentSessionID).Scan(
		&s.Identity.ID,
		&s.Identity.Email,
		&s.Identity.DisplayName,
		&s.AccessToken,
		&s.RefreshToken,
		&expiry,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if expiry.Valid {
		s.TokenExpiry = expiry.Time
	}
	return &s, nil
}

// Clear removes the stored session. Clearing when nobody is signed in is not an error.
func (r *SessionRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, currentSessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// RememberedEmailRepository stores addresses offered at sign-in.
type RememberedEmailRepository struct {
	db *sql.DB
}

// NewRememberedEmailRepository creates a new [RememberedEmailRepository] with the given database connection
func NewRememberedEmailRepository(db *sql.DB) *RememberedEmailRepository {
	return &RememberedEmailRepository{db: db}
}

// Remember saves email, or bumps its last-used time when it is already known.
func (r *RememberedEmailRepository) Remember(email string) error {
	email = shared.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: empty email", shared.ErrInvalidInput)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO remembered_emails (email, created_at, last_used_at) VALUES (?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET last_used_at = excluded.last_used_at
	`
	if _, err := r.db.Exec(query, email, now, now); err != nil {
		return fmt.Errorf("failed to remember email: %w", err)
	}
	return nil
}

// List returns remembered addresses, most recently used first.
func (r *RememberedEmailRepository) List() ([]models.RememberedEmail, error) {
	rows, err := r.db.Query(`SELECT email, created_at, last_used_at FROM remembered_emails ORDER BY last_used_at DESC, email ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query remembered emails: %w", err)
	}
	defer rows.Close()

	var emails []models.RememberedEmail
	for rows.Next() {
		var e models.RememberedEmail
		if err := rows.Scan(&e.Email, &e.CreatedAt, &e.LastUsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan remembered email: %w", err)
		}
		emails = append(emails, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return emails, nil
}

// Forget removes email from the list.
func (r *RememberedEmailRepository) Forget(email string) error {
	email = shared.NormalizeEmail(email)

	result, err := r.db.Exec(`DELETE FROM remembered_emails WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("failed to forget email: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s is not remembered", shared.ErrInvalidArgument, email)
	}
	return nil
}
