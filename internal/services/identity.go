package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/shared"
	"golang.org/x/oauth2"
)

// userInfo is the OpenID Connect userinfo payload. Providers that predate OIDC send id instead of sub.
type userInfo struct {
	Sub   string `json:"sub"`
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// IdentityService signs a user in with the OAuth2 authorization-code flow and resolves their [models.Identity].
type IdentityService struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewIdentityService builds the OAuth2 client from the [auth] config section.
func NewIdentityService(cfg shared.AuthConfig) (*IdentityService, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("%w: missing userinfo_url", shared.ErrInvalidConfig)
	}

	return &IdentityService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}, nil
}

// AuthURL returns the provider URL the user visits to grant access.
func (s *IdentityService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token.
func (s *IdentityService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", shared.ErrAuthFailed)
	}
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// UserInfo resolves the identity behind token.
func (s *IdentityService) UserInfo(ctx context.Context, token *oauth2.Token) (models.Identity, error) {
	if token == nil {
		return models.Identity{}, shared.ErrNotAuthenticated
	}

	client := s.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return models.Identity{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Identity{}, fmt.Errorf("%w: userinfo status %d", shared.ErrAuthFailed, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.Identity{}, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	id := info.Sub
	if id == "" {
		id = info.ID
	}
	if id == "" {
		return models.Identity{}, fmt.Errorf("%w: userinfo has no subject", shared.ErrAuthFailed)
	}

	return models.Identity{
		ID:          id,
		Email:       shared.NormalizeEmail(info.Email),
		DisplayName: info.Name,
	}, nil
}
