package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the role claim.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessExp    time.Time `json:"access_expires_at"`
	RefreshExp   time.Time `json:"refresh_expires_at"`
}

// Claims represents JWT payload. Subject is the user id.
type Claims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id.
func (c Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// Manager issues and validates tokens. Refresh token ids are recorded in a
// TokenStore so a refresh token can be used once and revoked on logout.
type Manager struct {
	issuer     string
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      TokenStore
	now        func() time.Time
}

// NewManager builds a Manager signing with HS256.
func NewManager(issuer, key string, accessTTL, refreshTTL time.Duration, store TokenStore) *Manager {
	return &Manager{
		issuer:     issuer,
		key:        []byte(key),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        time.Now,
	}
}

// Issue issues signed access and refresh tokens for a user.
func (m *Manager) Issue(ctx context.Context, userID int64, role string) (TokenPair, error) {
	now := m.now()
	subject := strconv.FormatInt(userID, 10)
	accessExp := now.Add(m.accessTTL)
	refreshExp := now.Add(m.refreshTTL)

	accessToken, err := m.sign(Claims{
		Role: role,
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshID := uuid.NewString()
	refreshToken, err := m.sign(Claims{
		Role: role,
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}
	if err := m.store.Save(ctx, refreshID, subject, m.refreshTTL); err != nil {
		return TokenPair{}, fmt.Errorf("auth: store refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token of the given type and returns its claims.
func (m *Manager) Parse(tokenStr, typ string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	var claims Claims
	parsed, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.Type != typ {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed, so replaying it fails with ErrTokenRevoked.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (TokenPair, Claims, error) {
	claims, err := m.Parse(refreshToken, TypeRefresh)
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	if err := m.consume(ctx, claims); err != nil {
		return TokenPair{}, Claims{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return TokenPair{}, Claims{}, err
	}
	pair, err := m.Issue(ctx, userID, claims.Role)
	return pair, claims, err
}

// Revoke invalidates a refresh token. Revoking an already revoked token is
// not an error.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := m.Parse(refreshToken, TypeRefresh)
	if err != nil {
		return err
	}
	if err := m.consume(ctx, claims); err != nil && !errors.Is(err, ErrTokenRevoked) {
		return err
	}
	return nil
}

func (m *Manager) consume(ctx context.Context, claims Claims) error {
	subject, err := m.store.Consume(ctx, claims.ID)
	if err != nil {
		return err
	}
	if subject != claims.Subject {
		return ErrTokenRevoked
	}
	return nil
}

func (m *Manager) sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.key)
}
