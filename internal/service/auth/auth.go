package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/karsaz_backend/internal/repo"
	"github.com/Alijeyrad/karsaz_backend/pkg/authorize"
	"github.com/Alijeyrad/karsaz_backend/pkg/constants"
	pasetotoken "github.com/Alijeyrad/karsaz_backend/pkg/paseto"
	"github.com/Alijeyrad/karsaz_backend/pkg/util/password"
)

const (
	maxLoginAttempts = 5
	accountLockMins  = 15
	minPasswordLen   = 8

	// DefaultRegion is used to parse phone numbers given without a country code.
	DefaultRegion = "US"
)

// redisKeySession returns the Redis key for a session.
func redisKeySession(sessionID string) string { return constants.RedisSessionPrefix + sessionID }

func redisKeyLoginFailures(email string) string { return "login:failures:" + email }

// SessionKey is exported for the bearer middleware.
func SessionKey(sessionID uuid.UUID) string { return redisKeySession(sessionID.String()) }

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

type Store interface {
	CreateUser(ctx context.Context, u *repo.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*repo.User, error)
	GetUserByEmail(ctx context.Context, email string) (*repo.User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// Sessions is the subset of the redis client used for sessions and lockout.
type Sessions interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
}

type Tokens interface {
	IssueAccess(userID uuid.UUID, role string, sessionID *uuid.UUID) (string, error)
	IssueRefresh(userID uuid.UUID, role string, sessionID *uuid.UUID) (string, error)
	Verify(token string) (*pasetotoken.Claims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string // optional
	Role      repo.Role
}

type LoginRequest struct {
	Email    string
	Password string
}

type AdminRequest struct {
	Email     string
	Password  string
	FirstName string
	Super     bool
}

type AuthTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds until access token expires
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*repo.User, error)
	Login(ctx context.Context, req LoginRequest) (*AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error

	// CreateAdmin provisions an Admin or SuperAdmin account from the CLI.
	CreateAdmin(ctx context.Context, req AdminRequest) (*repo.User, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type authService struct {
	store    Store
	sessions Sessions
	tokens   Tokens
	authz    authorize.IAuthorization
	params   password.Params
}

func New(
	store Store,
	sessions Sessions,
	tokens Tokens,
	authz authorize.IAuthorization,
	params password.Params,
) Service {
	return &authService{
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		authz:    authz,
		params:   params,
	}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*repo.User, error) {
	if req.Role != repo.RoleClient && req.Role != repo.RoleProfessional {
		return nil, ErrInvalidRole
	}
	return s.createUser(ctx, req)
}

func (s *authService) CreateAdmin(ctx context.Context, req AdminRequest) (*repo.User, error) {
	role := repo.RoleAdmin
	if req.Super {
		role = repo.RoleSuperAdmin
	}
	name := req.FirstName
	if name == "" {
		name = "Admin"
	}
	return s.createUser(ctx, RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: name,
		Role:      role,
	})
}

func (s *authService) createUser(ctx context.Context, req RegisterRequest) (*repo.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	if req.FirstName == "" {
		return nil, ErrNameRequired
	}
	if len(req.Password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	var phone *string
	if strings.TrimSpace(req.Phone) != "" {
		p, err := NormalizePhone(req.Phone)
		if err != nil {
			return nil, err
		}
		phone = &p
	}

	passHash, err := password.Hash(req.Password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &repo.User{
		Email:        email,
		PasswordHash: passHash,
		FirstName:    req.FirstName,
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        phone,
		Role:         req.Role,
		PayoutStatus: repo.PayoutPending,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := authorize.AssignAccountRole(ctx, s.authz, u.ID.String(), string(u.Role)); err != nil {
		return nil, fmt.Errorf("assign role: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthTokens, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	failures, _ := s.sessions.Get(ctx, redisKeyLoginFailures(email)).Int()
	if failures >= maxLoginAttempts {
		return nil, ErrAccountLocked
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := password.Verify(u.PasswordHash, req.Password); err != nil {
		s.recordFailedLogin(ctx, email)
		return nil, ErrInvalidCredentials
	}

	s.sessions.Del(ctx, redisKeyLoginFailures(email))
	s.upgradeHash(ctx, u, req.Password)
	return s.createSession(ctx, u)
}

// upgradeHash re-hashes a verified password whose stored hash predates the
// configured parameters. Failures only cost the upgrade.
func (s *authService) upgradeHash(ctx context.Context, u *repo.User, plain string) {
	if !password.NeedsRehash(u.PasswordHash, s.params) {
		return
	}
	h, err := password.Hash(plain, s.params)
	if err == nil {
		err = s.store.UpdatePasswordHash(ctx, u.ID, h)
	}
	if err != nil {
		slog.WarnContext(ctx, "password rehash failed", "user_id", u.ID, "err", err)
		return
	}
	u.PasswordHash = h
}

// ---------------------------------------------------------------------------
// RefreshTokens
// ---------------------------------------------------------------------------

func (s *authService) RefreshTokens(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.tokens.Verify(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Type != pasetotoken.TokenTypeRefresh || claims.SessionID == nil {
		return nil, ErrInvalidToken
	}

	sessionKey := SessionKey(*claims.SessionID)
	if err := s.sessions.Get(ctx, sessionKey).Err(); errors.Is(err, goredis.Nil) {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	// The role may have changed since login; re-read it.
	u, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	s.sessions.Expire(ctx, sessionKey, s.tokens.RefreshTTL())

	access, err := s.tokens.IssueAccess(u.ID, string(u.Role), claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refreshToken, // unchanged
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// ---------------------------------------------------------------------------
// Logout
// ---------------------------------------------------------------------------

func (s *authService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	deleted, err := s.sessions.Del(ctx, SessionKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if deleted == 0 {
		slog.DebugContext(ctx, "logout: session already expired", "session_id", sessionID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *authService) createSession(ctx context.Context, u *repo.User) (*AuthTokens, error) {
	sessionID := uuid.Must(uuid.NewV7())

	if err := s.sessions.Set(ctx, SessionKey(sessionID), u.ID.String(), s.tokens.RefreshTTL()).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	access, err := s.tokens.IssueAccess(u.ID, string(u.Role), &sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(u.ID, string(u.Role), &sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *authService) recordFailedLogin(ctx context.Context, email string) {
	key := redisKeyLoginFailures(email)
	n, err := s.sessions.Incr(ctx, key).Result()
	if err != nil {
		slog.WarnContext(ctx, "record failed login", "error", err)
		return
	}
	if n == 1 {
		s.sessions.Expire(ctx, key, accountLockMins*time.Minute)
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// NormalizePhone parses raw and formats it as E.164. Numbers without a
// country code are read in DefaultRegion.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
