package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/clipstream/backend/internal/models"
)

var (
	// ErrInvalidRefreshToken covers unknown, expired and revoked refresh tokens alike so
	// callers cannot probe which of the three applies.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrTokenNotFound is returned by stores when no usable token matches.
	ErrTokenNotFound = errors.New("refresh token not found")
)

const (
	// DefaultAccessTTL is the lifetime of issued access tokens.
	DefaultAccessTTL = time.Hour
	// DefaultRefreshTTL is the lifetime of issued refresh tokens.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
	tokenType         = "Bearer"
)

// RefreshTokenStore persists refresh tokens.
type RefreshTokenStore interface {
	Save(ctx context.Context, token models.RefreshToken) error
	// Consume atomically revokes the token if it is usable at now and returns it.
	// It returns ErrTokenNotFound when no usable token matches.
	Consume(ctx context.Context, token string, now time.Time) (models.RefreshToken, error)
	// RevokeOwned revokes the token only if it is usable at now and belongs to userID.
	// It returns ErrTokenNotFound otherwise.
	RevokeOwned(ctx context.Context, userID, token string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AccessTokenIssuer signs short-lived access tokens. The manager treats the result as opaque.
type AccessTokenIssuer interface {
	Issue(userID string) (string, error)
}

// TokenManager issues, rotates and revokes access/refresh token pairs.
type TokenManager struct {
	issuer     AccessTokenIssuer
	store      RefreshTokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager constructs a TokenManager. Non-positive TTLs fall back to the defaults.
func NewTokenManager(issuer AccessTokenIssuer, store RefreshTokenStore, accessTTL, refreshTTL time.Duration) *TokenManager {
	if issuer == nil {
		panic("auth: access token issuer must not be nil")
	}
	if store == nil {
		panic("auth: refresh token store must not be nil")
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{
		issuer:     issuer,
		store:      store,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// CreateTokenPair issues a fresh access token and a new persisted refresh token.
func (m *TokenManager) CreateTokenPair(ctx context.Context, userID string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	accessToken, err := m.issuer.Issue(userID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := m.newRefreshToken(ctx, userID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return m.pair(accessToken, refresh), nil
}

// RefreshAccessToken exchanges a usable refresh token for a new pair. The presented
// token is revoked in the same step, so each refresh token works exactly once.
func (m *TokenManager) RefreshAccessToken(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, ErrInvalidRefreshToken
	}

	consumed, err := m.store.Consume(ctx, refreshToken, m.now().UTC())
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return models.TokenPair{}, ErrInvalidRefreshToken
		}
		return models.TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}

	accessToken, err := m.issuer.Issue(consumed.UserID)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	rotated, err := m.newRefreshToken(ctx, consumed.UserID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return m.pair(accessToken, rotated), nil
}

// RevokeRefreshToken revokes a single usable token owned by userID. It reports false
// when nothing matched, including tokens that belong to another user.
func (m *TokenManager) RevokeRefreshToken(ctx context.Context, userID, refreshToken string) (bool, error) {
	if userID == "" || refreshToken == "" {
		return false, nil
	}
	if err := m.store.RevokeOwned(ctx, userID, refreshToken, m.now().UTC()); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return true, nil
}

// RevokeAllUserTokens revokes every refresh token of the user, expired ones included.
func (m *TokenManager) RevokeAllUserTokens(ctx context.Context, userID string) error {
	if _, err := m.store.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// DeleteExpiredTokens removes every token whose expiry has passed, revoked or not,
// and returns how many were removed.
func (m *TokenManager) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return n, nil
}

func (m *TokenManager) newRefreshToken(ctx context.Context, userID string) (models.RefreshToken, error) {
	value, err := randomToken()
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := m.now().UTC()
	token := models.RefreshToken{
		UserID:    userID,
		Token:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	}
	if err := m.store.Save(ctx, token); err != nil {
		return models.RefreshToken{}, fmt.Errorf("save refresh token: %w", err)
	}
	return token, nil
}

func (m *TokenManager) pair(accessToken string, refresh models.RefreshToken) models.TokenPair {
	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		TokenType:    tokenType,
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}
}

func randomToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
