package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the identity, organization scope and role set issued by the
// upstream identity provider.
type Claims struct {
	UserID         string   `json:"user_id"`
	OrganizationID string   `json:"org_id"`
	Roles          []string `json:"roles"`
	CreatorType    string   `json:"creator_type,omitempty"`
	jwt.RegisteredClaims
}

type Identity struct {
	UserID         string
	OrganizationID string
	Roles          []string
	CreatorType    string
}

func GenerateToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         identity.UserID,
		OrganizationID: identity.OrganizationID,
		Roles:          identity.Roles,
		CreatorType:    identity.CreatorType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.OrganizationID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
