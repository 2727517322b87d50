// Package auth provides the authentication primitives used by the HTTP layer:
// HS256 session tokens carrying the user's id and role, and bcrypt password hashing.
// See internal/middleware/auth.go for the request-time checks built on them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SecretEnvVar names the environment variable holding the signing secret
	SecretEnvVar = "ELITARTE_JWT_SECRET"

	tokenIssuer     = "elitarte"
	defaultTokenTTL = time.Hour
	minSecretLength = 32
)

// ErrMissingSecret is returned by SecretFromEnv outside development mode
var ErrMissingSecret = errors.New(SecretEnvVar + " environment variable is required in production; " +
	"generate one with: openssl rand -hex 32")

// Claims represents the JWT claims structure
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// isDevMode reports whether the process runs in a development environment
func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1" ||
		os.Getenv("APP_ENV") == "development" ||
		os.Getenv("GIN_MODE") == "debug"
}

// SecretFromEnv reads the signing secret. In development mode a missing secret
// is replaced by a random one (sessions then do not survive restarts); otherwise
// it is an error.
func SecretFromEnv() (string, error) {
	secret := os.Getenv(SecretEnvVar)
	if secret == "" {
		if !isDevMode() {
			return "", ErrMissingSecret
		}
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate development secret: %w", err)
		}
		slog.Warn(SecretEnvVar + " not set, using a generated secret; sessions will not persist across restarts")
		return hex.EncodeToString(b), nil
	}
	if len(secret) < minSecretLength {
		slog.Warn(SecretEnvVar+" is shorter than recommended", "min_length", minSecretLength)
	}
	return secret, nil
}

// TokenManager issues and validates session tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a TokenManager. A zero ttl means one hour.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the given identity and returns it with its expiry.
func (m *TokenManager) Issue(userID, email, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses a token, checks its signature, expiry and issuer, and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}
