package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"golang.org/x/oauth2"
)

// SessionEventKind distinguishes sign-in from sign-out.
type SessionEventKind int

const (
	SignedIn SessionEventKind = iota
	SignedOut
)

func (k SessionEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return ""
	}
}

// SessionEvent is published whenever the current identity changes.
type SessionEvent struct {
	Kind     SessionEventKind
	Identity models.Identity
}

// SessionStore persists at most one session.
type SessionStore interface {
	Save(s models.Session) error
	Load() (*models.Session, error)
	Clear() error
}

// EmailStore is the key-value store behind remembered sign-in addresses.
type EmailStore interface {
	Remember(email string) error
	List() ([]models.RememberedEmail, error)
	Forget(email string) error
}

// SessionManager owns the signed-in identity and fans out [SessionEvent]s to subscribers.
type SessionManager struct {
	store  SessionStore
	emails EmailStore
	logger *log.Logger

	mu      sync.RWMutex
	current *models.Session
	subs    map[int]chan SessionEvent
	nextSub int
}

// NewSessionManager loads any stored session. emails may be nil.
func NewSessionManager(store SessionStore, emails EmailStore, logger *log.Logger) (*SessionManager, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	m := &SessionManager{
		store:  store,
		emails: emails,
		logger: logger,
		subs:   make(map[int]chan SessionEvent),
	}

	if store != nil {
		s, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		m.current = s
	}
	return m, nil
}

// Current returns the signed-in identity, if any.
func (m *SessionManager) Current() (models.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.current.Identity.IsZero() {
		return models.Identity{}, false
	}
	return m.current.Identity, true
}

// Session returns a copy of the stored session, if any.
func (m *SessionManager) Session() (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.Session{}, false
	}
	return *m.current, true
}

// SignIn stores id with its token, remembers the email when asked, and publishes [SignedIn].
func (m *SessionManager) SignIn(id models.Identity, token *oauth2.Token, remember bool) error {
	if id.IsZero() {
		return fmt.Errorf("%w: identity has no id", shared.ErrInvalidInput)
	}

	s := models.Session{Identity: id, CreatedAt: time.Now().UTC()}
	if token != nil {
		s.AccessToken = token.AccessToken
		s.RefreshToken = token.RefreshToken
		s.TokenExpiry = token.Expiry
	}

	if m.store != nil {
		if err := m.store.Save(s); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
	}

	if remember && m.emails != nil && id.Email != "" {
		if err := m.emails.Remember(id.Email); err != nil {
			m.logger.Warn("failed to remember email", "email", id.Email, "error", err)
		}
	}

	m.mu.Lock()
	m.current = &s
	m.mu.Unlock()

	m.logger.Info("signed in", "user_id", id.ID, "email", id.Email)
	m.publish(SessionEvent{Kind: SignedIn, Identity: id})
	return nil
}

// SignOut clears the stored session and publishes [SignedOut]. Signing out twice is not an error.
func (m *SessionManager) SignOut() error {
	m.mu.Lock()
	prev := m.current
	m.current = nil
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Clear(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}

	if prev == nil {
		return nil
	}
	m.logger.Info("signed out", "user_id", prev.Identity.ID)
	m.publish(SessionEvent{Kind: SignedOut, Identity: prev.Identity})
	return nil
}

// RememberedEmails lists saved sign-in addresses.
func (m *SessionManager) RememberedEmails() ([]models.RememberedEmail, error) {
	if m.emails == nil {
		return nil, nil
	}
	return m.emails.List()
}

// Subscribe returns a buffered event stream and a func that closes it.
//
// The stream is also closed when ctx is done. Slow subscribers miss events rather than block the manager.
func (m *SessionManager) Subscribe(ctx context.Context) (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			close(ch)
			m.mu.Unlock()
			close(done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return ch, cancel
}

func (m *SessionManager) publish(ev SessionEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
