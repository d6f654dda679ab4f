package stubserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/uniquiz/quiz-client/internal/config"
	"github.com/uniquiz/quiz-client/internal/model"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims extends JWT registered claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
}

// TokenIssuer signs and validates the stub's HS256 token pairs.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates an issuer from config.
func NewTokenIssuer(cfg *config.Config) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}
}

// IssuePair creates a fresh access/refresh credential pair for a student.
func (t *TokenIssuer) IssuePair(student *Student) (model.Credentials, error) {
	access, err := t.sign(student, TokenTypeAccess, t.accessTTL)
	if err != nil {
		return model.Credentials{}, err
	}
	refresh, err := t.sign(student, TokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (t *TokenIssuer) sign(student *Student, typ TokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   student.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType: typ,
		Email:     student.Email,
		FullName:  student.FullName,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and checks its signature and type.
// jwt.ErrTokenExpired is preserved in the error chain so callers can map
// expiry to a distinct wire code.
func (t *TokenIssuer) Validate(tokenStr string, wantType TokenType) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("wrong token type %q", claims.TokenType)
	}
	return claims, nil
}
