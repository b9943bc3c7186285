package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/survey-management/internal"
	"github.com/frahmantamala/survey-management/internal/account"
	"github.com/frahmantamala/survey-management/internal/core/identity"
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT token claims. Role is informational; the middleware
// reloads the account and trusts the stored role.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenGenerator issues and verifies session tokens.
type TokenGenerator interface {
	GenerateAccessToken(actor identity.Actor) (token string, expiresAt time.Time, err error)
	ValidateToken(tokenString string) (*Claims, error)
}

type JWTTokenGenerator struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewJWTTokenGenerator(secret string, ttl time.Duration, now func() time.Time) *JWTTokenGenerator {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenGenerator{Secret: []byte(secret), TTL: ttl, Now: now}
}

func (j *JWTTokenGenerator) GenerateAccessToken(actor identity.Actor) (string, time.Time, error) {
	issuedAt := j.Now()
	expiresAt := issuedAt.Add(j.TTL)

	claims := &Claims{
		UserID:   actor.ID,
		Username: actor.Username,
		Role:     string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Subject:   strconv.FormatInt(actor.ID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth.GenerateAccessToken: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.Now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}
	return nil, internal.ErrInvalidToken
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *account.Account
}
