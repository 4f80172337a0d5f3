package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teamz-workspace/apiserver/config"
	"github.com/teamz-workspace/apiserver/internal/mq"
	"github.com/teamz-workspace/apiserver/internal/store"
	"github.com/teamz-workspace/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when an email/password pair does not
// match a principal.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionExpired is returned when a presented session is revoked or past
// its expiry.
var ErrSessionExpired = errors.New("session expired")

// Rank points granted to a new account at signup.
const signupRankPoints = 10

// PrincipalRepository defines persistence operations for principals.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.Principal, error)
	GetByEmail(ctx context.Context, email string) (types.Principal, error)
	Create(ctx context.Context, p types.Principal) (types.Principal, error)
}

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, userID uuid.UUID, ttl time.Duration) (types.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (types.Session, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// EventPublisher pushes messages to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, msg mq.Message) (string, error)
}

// SessionService is the single source of truth for who is signed in and
// what their profile is. Profiles are cached in memory per principal; the
// cache is generation-guarded so a fetch that resolves after a logout or a
// principal change can never overwrite newer state.
type SessionService struct {
	principals PrincipalRepository
	sessions   SessionRepository
	profiles   *ProfileService
	publisher  EventPublisher
	logger     zerolog.Logger

	secret   []byte
	tokenTTL time.Duration

	waitAttempts int
	waitInterval time.Duration

	cache profileCache
}

// SignupParams is the profile seed supplied at account creation.
type SignupParams struct {
	Email      string
	Password   string
	FullName   string
	Department string
	Bio        string
	Skills     []string
}

// AuthResult is the outcome of a successful login or signup.
type AuthResult struct {
	Token     string
	Session   types.Session
	Principal types.Principal
	Profile   *types.Profile
}

func NewSessionService(
	principals PrincipalRepository,
	sessions SessionRepository,
	profiles *ProfileService,
	publisher EventPublisher,
	jwtCfg config.JWTConfig,
	guardCfg config.GuardConfig,
	logger zerolog.Logger,
) *SessionService {
	attempts := guardCfg.ProfileWaitAttempts
	if attempts < 1 {
		attempts = 1
	}
	interval := guardCfg.ProfileWaitInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &SessionService{
		principals:   principals,
		sessions:     sessions,
		profiles:     profiles,
		publisher:    publisher,
		logger:       logger,
		secret:       []byte(jwtCfg.Secret),
		tokenTTL:     jwtCfg.TokenTTL,
		waitAttempts: attempts,
		waitInterval: interval,
		cache:        newProfileCache(),
	}
}

// Login exchanges credentials for a session. On failure no state changes.
func (s *SessionService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if principal.PasswordHash == "" {
		// OAuth-only account, password login not possible.
		return AuthResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, principal)
}

// LoginWithProvider resolves an OAuth callback into a session, creating the
// principal on first sign-in.
func (s *SessionService) LoginWithProvider(ctx context.Context, provider types.AuthProvider, email string) (AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return AuthResult{}, errors.New("provider returned no email")
	}

	principal, err := s.principals.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		principal, err = s.principals.Create(ctx, types.Principal{
			Email:    email,
			Provider: provider,
		})
	}
	if err != nil {
		return AuthResult{}, err
	}

	return s.openSession(ctx, principal)
}

// Signup creates a new principal plus profile seed. The account starts
// unverified with the employee role; an admin unlocks it later.
func (s *SessionService) Signup(ctx context.Context, params SignupParams) (AuthResult, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResult{}, err
	}

	principal, err := s.principals.Create(ctx, types.Principal{
		Email:        params.Email,
		Provider:     types.ProviderPassword,
		PasswordHash: string(hashed),
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.seedProfile(ctx, principal.ID, params)

	return s.openSession(ctx, principal)
}

// seedProfile applies the signup seed to the trigger-created profile row.
// The row can lag the principal insert, so a miss is retried once after the
// wait interval; a persistent miss is logged and tolerated, the member just
// starts with a default profile.
func (s *SessionService) seedProfile(ctx context.Context, id uuid.UUID, params SignupParams) {
	patch := types.ProfilePatch{
		FullName:   &params.FullName,
		Department: &params.Department,
		Bio:        &params.Bio,
		Skills:     params.Skills,
	}

	_, err := s.profiles.Update(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.waitInterval):
		}
		_, err = s.profiles.Update(ctx, id, patch)
	}
	if err != nil {
		s.logger.Warn().Err(err).Stringer("user_id", id).Msg("profile seed not applied")
		return
	}

	if _, err := s.profiles.AddRankPoints(ctx, id, signupRankPoints); err != nil {
		s.logger.Warn().Err(err).Stringer("user_id", id).Msg("signup rank points not applied")
	}
}

func (s *SessionService) openSession(ctx context.Context, principal types.Principal) (AuthResult, error) {
	session, err := s.sessions.Create(ctx, principal.ID, s.tokenTTL)
	if err != nil {
		return AuthResult{}, err
	}

	token, err := s.issueToken(principal.ID, session.ID)
	if err != nil {
		return AuthResult{}, err
	}

	profile := s.RefreshProfile(ctx, principal.ID)

	s.publishAuthEvent(ctx, types.AuthEvent{
		Kind:      types.AuthSignedIn,
		UserID:    principal.ID,
		SessionID: session.ID,
		At:        time.Now(),
	})

	return AuthResult{
		Token:     token,
		Session:   session,
		Principal: principal,
		Profile:   profile,
	}, nil
}

// Logout revokes the session and drops the cached profile. A protected
// navigation after logout must redirect to login even though the profile
// was cached moments before.
func (s *SessionService) Logout(ctx context.Context, session types.Session) error {
	if err := s.sessions.Revoke(ctx, session.ID); err != nil {
		return err
	}

	s.cache.invalidate(session.UserID)

	s.publishAuthEvent(ctx, types.AuthEvent{
		Kind:      types.AuthSignedOut,
		UserID:    session.UserID,
		SessionID: session.ID,
		At:        time.Now(),
	})
	return nil
}

// Resolve validates a bearer token and returns the live principal/session
// pair, the "restore session" step of a returning client.
func (s *SessionService) Resolve(ctx context.Context, token string) (types.Principal, types.Session, error) {
	userID, sessionID, err := s.parseToken(token)
	if err != nil {
		return types.Principal{}, types.Session{}, err
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Principal{}, types.Session{}, ErrSessionExpired
		}
		return types.Principal{}, types.Session{}, err
	}
	if session.UserID != userID || !session.Active(time.Now()) {
		return types.Principal{}, types.Session{}, ErrSessionExpired
	}

	principal, err := s.principals.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Principal{}, types.Session{}, ErrSessionExpired
		}
		return types.Principal{}, types.Session{}, err
	}

	return principal, session, nil
}

// Profile returns the cached profile for a principal, fetching on a miss.
func (s *SessionService) Profile(ctx context.Context, userID uuid.UUID) *types.Profile {
	if cached := s.cache.get(userID); cached != nil {
		return cached
	}
	return s.RefreshProfile(ctx, userID)
}

// RefreshProfile re-fetches the profile for a principal. No-op without one.
// The write back into the cache is generation-guarded: if the cache was
// invalidated while the fetch was in flight (logout, re-login), the stale
// result is discarded.
func (s *SessionService) RefreshProfile(ctx context.Context, userID uuid.UUID) *types.Profile {
	if userID == uuid.Nil {
		return nil
	}

	gen := s.cache.generation(userID)
	profile := s.profiles.Fetch(ctx, userID)
	if profile == nil {
		return nil
	}
	s.cache.put(userID, gen, *profile)
	return profile
}

// WaitForProfile polls for a profile with a bounded number of attempts.
// This covers the known race where the profile row is created slightly
// after the principal; it is a fixed-budget wait, not a resilience retry.
func (s *SessionService) WaitForProfile(ctx context.Context, userID uuid.UUID) *types.Profile {
	for attempt := 0; ; attempt++ {
		if profile := s.Profile(ctx, userID); profile != nil {
			return profile
		}
		if attempt+1 >= s.waitAttempts {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.waitInterval):
		}
	}
}

// UpdateProfile persists the patch and re-reads the row, replacing the
// cached copy with the server's version.
func (s *SessionService) UpdateProfile(ctx context.Context, userID uuid.UUID, patch types.ProfilePatch) (types.Profile, error) {
	gen := s.cache.generation(userID)
	profile, err := s.profiles.Update(ctx, userID, patch)
	if err != nil {
		return types.Profile{}, err
	}
	s.cache.put(userID, gen, profile)
	return profile, nil
}

// InvalidateProfile drops a principal's cached profile so the next read
// refetches. Used after admin-side mutations (verify, role, rank points).
func (s *SessionService) InvalidateProfile(userID uuid.UUID) {
	s.cache.invalidate(userID)
}

func (s *SessionService) publishAuthEvent(ctx context.Context, event types.AuthEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal auth event")
		return
	}
	_, err = s.publisher.Publish(ctx, mq.AuthEventsChannel, mq.Message{
		Data:       payload,
		Attributes: map[string]string{"user_id": event.UserID.String()},
	})
	if err != nil {
		// Fan-out is best effort: a broker outage must not fail auth.
		s.logger.Warn().Err(err).Str("kind", string(event.Kind)).Msg("publish auth event")
	}
}

func (s *SessionService) issueToken(userID, sessionID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        sessionID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *SessionService) parseToken(tokenString string) (userID, sessionID uuid.UUID, err error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if !token.Valid {
		return uuid.Nil, uuid.Nil, errors.New("invalid token")
	}

	userID, err = uuid.Parse(strings.TrimSpace(claims.Subject))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid subject")
	}
	sessionID, err = uuid.Parse(strings.TrimSpace(claims.ID))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid session id")
	}
	return userID, sessionID, nil
}

// profileCache is a generation-guarded in-memory profile map.
type profileCache struct {
	mu      sync.Mutex
	gens    map[uuid.UUID]uint64
	entries map[uuid.UUID]types.Profile
}

func newProfileCache() profileCache {
	return profileCache{
		gens:    make(map[uuid.UUID]uint64),
		entries: make(map[uuid.UUID]types.Profile),
	}
}

func (c *profileCache) generation(id uuid.UUID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id]
}

func (c *profileCache) get(id uuid.UUID) *types.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[id]; ok {
		return &entry
	}
	return nil
}

// put stores a profile only if the generation observed before the fetch is
// still current, so a late-resolving fetch never clobbers newer state.
func (c *profileCache) put(id uuid.UUID, gen uint64, profile types.Profile) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[id] != gen {
		return false
	}
	c.entries[id] = profile
	return true
}

func (c *profileCache) invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[id]++
	delete(c.entries, id)
}
