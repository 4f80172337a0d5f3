package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/config"
	"github.com/teamz-workspace/apiserver/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// ErrProviderNotConfigured is returned for providers without credentials.
var ErrProviderNotConfigured = errors.New("oauth provider not configured")

// ErrExchangeTimeout is returned when the code exchange exceeds its bounded
// wait. A timeout is always a failure: the callback never assumes a session
// exists just because the provider was slow.
var ErrExchangeTimeout = errors.New("oauth exchange timed out")

var appleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://appleid.apple.com/auth/authorize",
	TokenURL: "https://appleid.apple.com/auth/token",
}

type emailFetcher func(ctx context.Context, client *http.Client, token *oauth2.Token) (string, error)

type oauthProvider struct {
	config     *oauth2.Config
	fetchEmail emailFetcher
}

// OAuthService owns the redirect handoff to the configured providers and
// resolves callbacks into verified email addresses.
type OAuthService struct {
	providers       map[types.AuthProvider]oauthProvider
	exchangeTimeout time.Duration
	logger          zerolog.Logger
}

func NewOAuthService(cfg config.OAuthConfig, logger zerolog.Logger) *OAuthService {
	timeout := cfg.ExchangeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	providers := make(map[types.AuthProvider]oauthProvider)
	redirect := func(provider string) string {
		return strings.TrimRight(cfg.RedirectBase, "/") + "/auth/oauth/" + provider + "/callback"
	}

	if cfg.Google.Enabled() {
		providers[types.ProviderGoogle] = oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Endpoint:     google.Endpoint,
				RedirectURL:  redirect("google"),
				Scopes:       []string{"openid", "email", "profile"},
			},
			fetchEmail: fetchGoogleEmail,
		}
	}
	if cfg.GitHub.Enabled() {
		providers[types.ProviderGitHub] = oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.GitHub.ClientID,
				ClientSecret: cfg.GitHub.ClientSecret,
				Endpoint:     github.Endpoint,
				RedirectURL:  redirect("github"),
				Scopes:       []string{"user:email"},
			},
			fetchEmail: fetchGitHubEmail,
		}
	}
	if cfg.Apple.Enabled() {
		providers[types.ProviderApple] = oauthProvider{
			config: &oauth2.Config{
				ClientID:     cfg.Apple.ClientID,
				ClientSecret: cfg.Apple.ClientSecret,
				Endpoint:     appleEndpoint,
				RedirectURL:  redirect("apple"),
				Scopes:       []string{"email"},
			},
			fetchEmail: fetchAppleEmail,
		}
	}

	return &OAuthService{
		providers:       providers,
		exchangeTimeout: timeout,
		logger:          logger,
	}
}

// Enabled reports whether the provider has credentials configured.
func (s *OAuthService) Enabled(provider types.AuthProvider) bool {
	_, ok := s.providers[provider]
	return ok
}

// AuthURL returns the provider's consent page URL for the redirect handoff.
func (s *OAuthService) AuthURL(provider types.AuthProvider, state string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrProviderNotConfigured
	}
	return p.config.AuthCodeURL(state), nil
}

// Exchange resolves the callback code into the account's email address. The
// whole exchange runs under a bounded deadline and fails explicitly when it
// is exceeded.
func (s *OAuthService) Exchange(ctx context.Context, provider types.AuthProvider, code string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", ErrProviderNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.exchangeTimeout)
	defer cancel()

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrExchangeTimeout
		}
		return "", fmt.Errorf("exchange code: %w", err)
	}

	email, err := p.fetchEmail(ctx, p.config.Client(ctx, token), token)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrExchangeTimeout
		}
		return "", err
	}
	return email, nil
}

func fetchGoogleEmail(ctx context.Context, client *http.Client, _ *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://openidconnect.googleapis.com/v1/userinfo", nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var info struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	return info.Email, nil
}

func fetchGitHubEmail(ctx context.Context, client *http.Client, _ *oauth2.Token) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/user/emails", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("emails endpoint returned %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", errors.New("no verified primary email")
}

// Apple returns the email inside the id_token. The token arrived over TLS
// directly from Apple's token endpoint, so the claims are read without a
// second signature check.
func fetchAppleEmail(_ context.Context, _ *http.Client, token *oauth2.Token) (string, error) {
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", errors.New("apple response missing id_token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", err
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return "", errors.New("apple id_token missing email")
	}
	return email, nil
}
