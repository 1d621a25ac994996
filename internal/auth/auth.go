package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/docflow/internal"
	"github.com/frahmantamala/docflow/internal/permission"
)

// Account is the slice of a user row authentication needs.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Type         permission.PrincipalType
	IsActive     bool
}

func (a *Account) Principal() permission.Principal {
	t := a.Type
	if t == "" {
		t = permission.PrincipalUser
	}
	return permission.Principal{ID: a.ID, Type: t}
}

type Repository interface {
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccount(ctx context.Context, userID int64) (*Account, error)
}

type TokenUse string

const (
	TokenAccess  TokenUse = "access"
	TokenRefresh TokenUse = "refresh"
)

// Claims represents JWT token claims
type Claims struct {
	UserID int64                    `json:"user_id"`
	Type   permission.PrincipalType `json:"type"`
	Use    TokenUse                 `json:"use"`
	jwt.RegisteredClaims
}

type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type TokenGenerator interface {
	Generate(account *Account, use TokenUse) (token string, expiresAt time.Time, err error)
	Validate(tokenString string, use TokenUse) (*Claims, error)
}

type JWTTokenGenerator struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	now                func() time.Time
}

func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		now:                time.Now,
	}
}

func (j *JWTTokenGenerator) secret(use TokenUse) ([]byte, time.Duration) {
	if use == TokenRefresh {
		return j.RefreshTokenSecret, j.RefreshTokenTTL
	}
	return j.AccessTokenSecret, j.AccessTokenTTL
}

func (j *JWTTokenGenerator) Generate(account *Account, use TokenUse) (string, time.Time, error) {
	secret, ttl := j.secret(use)
	now := j.now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		UserID: account.ID,
		Type:   account.Principal().Type,
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", account.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks signature, expiry and that the token was minted for use.
func (j *JWTTokenGenerator) Validate(tokenString string, use TokenUse) (*Claims, error) {
	secret, _ := j.secret(use)
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Use != use || claims.UserID == 0 {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
