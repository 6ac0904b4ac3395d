// Package jwtauth выпускает и проверяет токены доступа HS256
package jwtauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/asquebay/leadbase-service/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims - утверждения токена: sub - идентификатор пользователя, role - его роль
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal - проверенный пользователь запроса
type Principal struct {
	UserID uuid.UUID
	Role   model.Role
}

// Issue подписывает токен для пользователя
func Issue(secret, issuer string, p Principal, ttl time.Duration, now time.Time) (string, error) {
	if !p.Role.Valid() {
		return "", fmt.Errorf("jwtauth: issue: %w: %q", ErrUnknownRole, p.Role)
	}
	claims := Claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("jwtauth: issue: %w", err)
	}
	return token, nil
}

// Verifier проверяет токены
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier создаёт проверяющего; пустой issuer не проверяется
func NewVerifier(secret, issuer string, now func() time.Time) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: now}
}

// Verify разбирает токен и возвращает пользователя
func (v *Verifier) Verify(token string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: subject: %w", ErrInvalidToken, err)
	}
	if !claims.Role.Valid() {
		return Principal{}, fmt.Errorf("%w: %w: %q", ErrInvalidToken, ErrUnknownRole, claims.Role)
	}
	return Principal{UserID: userID, Role: claims.Role}, nil
}
