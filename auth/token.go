// Package auth resolves connection attempts into an identity tuple.
// Credential issuance and password handling live in the account service;
// the relay only verifies tokens it is handed and trusts their claims.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"styx-chat/domain/chat"
	"styx-chat/errors"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	Restricted bool   `json:"restricted_account"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the signature and expiration of a token and
// returns the identity the rest of the relay operates on. Every failure
// collapses to ErrAuthentication; callers must not leak the cause.
func (v *Verifier) Verify(tokenString string) (chat.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrAuthentication
		}
		return v.secret, nil
	})
	if err != nil {
		return chat.Identity{}, errors.ErrAuthentication
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return chat.Identity{}, errors.ErrAuthentication
	}

	role := chat.Role(claims.Role)
	if role != chat.RoleAdmin {
		role = chat.RoleUser
	}
	return chat.Identity{
		UserID:     claims.Subject,
		Username:   claims.Username,
		Role:       role,
		Restricted: claims.Restricted,
	}, nil
}

// Mint creates a signed token for an identity. Used by chatctl and tests;
// production tokens come from the account service sharing the secret.
func (v *Verifier) Mint(id chat.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		Username:   id.Username,
		Role:       string(id.Role),
		Restricted: id.Restricted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "styx-chat",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
