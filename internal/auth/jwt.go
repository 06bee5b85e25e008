package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "planning"

var (
	ErrInvalidToken      = errors.New("invalid or expired token")
	ErrFederatedDisabled = errors.New("federated sign-in is not configured")
)

// Claims are carried by session tokens. Subject is the user id and ID (jti)
// is what sign-out revokes.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type JWT struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (j *JWT) Sign(u User) (string, error) {
	now := j.now()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(j.secret)
}

func (j *JWT) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FederatedClaims are the identity claims a trusted sign-in broker asserts.
// Issuer names the provider (e.g. "google").
type FederatedClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// FederatedVerifier checks HS256 identity tokens minted by the broker that
// fronts the external providers.
type FederatedVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewFederatedVerifier(secret string) *FederatedVerifier {
	return &FederatedVerifier{secret: []byte(secret), now: time.Now}
}

func (v *FederatedVerifier) Verify(tokenStr string) (*FederatedClaims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, ErrFederatedDisabled
	}
	claims := &FederatedClaims{}
	t, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	claims.Issuer = strings.ToLower(strings.TrimSpace(claims.Issuer))
	claims.Email = strings.ToLower(strings.TrimSpace(claims.Email))
	if claims.Issuer == "" || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
