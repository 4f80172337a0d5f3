package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/notify"
	"github.com/teamz-workspace/apiserver/internal/services"
	"github.com/teamz-workspace/apiserver/types"
)

const oauthStateCookie = "teamz_oauth_state"

// AuthHandler provides the session lifecycle endpoints.
type AuthHandler struct {
	sessions *services.SessionService
	oauth    *services.OAuthService
	hub      *notify.Hub
	logger   zerolog.Logger
}

func NewAuthHandler(sessions *services.SessionService, oauth *services.OAuthService, hub *notify.Hub, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, oauth: oauth, hub: hub, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, guard *Guard) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/oauth/{provider}", handler.OAuthBegin)
	r.Get("/oauth/{provider}/callback", handler.OAuthCallback)

	// Pre-verification routes: the shell needs these to work for any
	// authenticated principal.
	r.With(guard.RequireAuth()).Post("/logout", handler.Logout)
	r.With(guard.RequireAuth()).Get("/session", handler.Session)
	r.With(guard.RequireAuth()).Get("/events", handler.Events)
}

type RegisterRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=8"`
	FullName   string   `json:"full_name" validate:"required"`
	Department string   `json:"department"`
	Bio        string   `json:"bio"`
	Skills     []string `json:"skills"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the token, the signed-in identity and the SPA path
// to land on next.
type AuthResponse struct {
	Token     string          `json:"token"`
	User      types.Principal `json:"user"`
	Profile   *types.Profile  `json:"profile,omitempty"`
	ExpiresAt time.Time       `json:"expires_at"`
	Redirect  string          `json:"redirect"`
}

// Register creates a new account. The account starts unverified, so the
// response routes the client to the verification-pending view.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.sessions.Signup(r.Context(), services.SignupParams{
		Email:      req.Email,
		Password:   req.Password,
		FullName:   req.FullName,
		Department: req.Department,
		Bio:        req.Bio,
		Skills:     req.Skills,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("signup failed")
		writeError(w, http.StatusConflict, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token:     result.Token,
		User:      result.Principal,
		Profile:   result.Profile,
		ExpiresAt: result.Session.ExpiresAt,
		Redirect:  verificationPath,
	})
}

// Login verifies credentials and opens a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error().Err(err).Msg("login failed")
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token:     result.Token,
		User:      result.Principal,
		Profile:   result.Profile,
		ExpiresAt: result.Session.ExpiresAt,
		Redirect:  postLoginRedirect(result.Profile),
	})
}

// OAuthBegin hands the browser off to the provider's consent page.
func (h *AuthHandler) OAuthBegin(w http.ResponseWriter, r *http.Request) {
	provider := types.AuthProvider(chi.URLParam(r, "provider"))
	if !h.oauth.Enabled(provider) {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state := uuid.NewString()
	authURL, err := h.oauth.AuthURL(provider, state)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/oauth",
		MaxAge:   int((5 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// OAuthCallback resolves the provider redirect into a session. The code
// exchange runs under a bounded wait; a timeout is an explicit failure and
// never assumed success.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := types.AuthProvider(chi.URLParam(r, "provider"))
	if !h.oauth.Enabled(provider) {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		writeError(w, http.StatusBadRequest, "state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		// The provider denied or the user cancelled.
		http.Redirect(w, r, loginPath+"?error=oauth_denied", http.StatusFound)
		return
	}

	email, err := h.oauth.Exchange(r.Context(), provider, code)
	if err != nil {
		h.logger.Warn().Err(err).Str("provider", string(provider)).Msg("oauth exchange failed")
		http.Redirect(w, r, loginPath+"?error=oauth_failed", http.StatusFound)
		return
	}

	result, err := h.sessions.LoginWithProvider(r.Context(), provider, email)
	if err != nil {
		h.logger.Error().Err(err).Str("provider", string(provider)).Msg("oauth login failed")
		http.Redirect(w, r, loginPath+"?error=oauth_failed", http.StatusFound)
		return
	}

	http.Redirect(w, r, postLoginRedirect(result.Profile)+"#token="+result.Token, http.StatusFound)
}

// Logout revokes the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.Logout(r.Context(), session); err != nil {
		h.logger.Error().Err(err).Msg("logout failed")
		writeError(w, http.StatusInternalServerError, "failed to sign out")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"redirect": loginPath})
}

// Session is the restore-session step of a returning client.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	session, _ := sessionFromContext(r.Context())

	writeJSON(w, http.StatusOK, AuthResponse{
		User:      principal,
		Profile:   profileFromContext(r.Context()),
		ExpiresAt: session.ExpiresAt,
		Redirect:  postLoginRedirect(profileFromContext(r.Context())),
	})
}

// Events streams the principal's auth-state changes over SSE, covering
// cross-tab sign-out and OAuth completion in other windows.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	streamSSE(w, r, h.hub, mq.AuthEventsChannel, principal.ID, h.logger)
}

// postLoginRedirect applies the post-login routing policy: unverified
// non-admin accounts land on the verification-pending view.
func postLoginRedirect(profile *types.Profile) string {
	if profile != nil && !profile.Verified && profile.Role != types.RoleAdmin {
		return verificationPath
	}
	return dashboardPath
}
