package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// IssuedToken is returned to the client after a successful login.
type IssuedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ID          string    `json:"-"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for the actor.
func (i *TokenIssuer) Issue(a Actor) (*IssuedToken, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	jti := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    i.issuer,
			Subject:   a.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: a.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &IssuedToken{AccessToken: signed, TokenType: "Bearer", ExpiresAt: exp.UTC(), ID: jti}, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (i *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Actor converts verified claims into the request actor.
func (c *Claims) Actor() Actor {
	id, _ := uuid.Parse(c.Subject)
	return Actor{ID: id, Role: c.Role}
}
