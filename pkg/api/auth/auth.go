// Package auth authenticates operators of the archive API with bearer tokens.
//
// Tokens are JWS signed with HS256 by a shared secret.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	apierr "github.com/opst/fieldarchive/pkg/api/types/errors"
)

const Issuer = "fieldarchive"

var ErrInvalidToken = errors.New("invalid token")

// OperatorClaims are claims of operator tokens.
type OperatorClaims struct {
	jwt.RegisteredClaims
}

// Sign issues a token for subject, expiring after ttl from now.
func Sign(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify parses token and checks its signature and expiration.
//
// # Returns
//
// - *OperatorClaims: claims in the token
//
// - error: wraps ErrInvalidToken when the token is not acceptable.
func Verify(secret []byte, token string) (*OperatorClaims, error) {
	claims := new(OperatorClaims)
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(Issuer),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token with 401.
//
// Claims of accepted requests are set to the context as "operator".
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authz := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(authz, "Bearer ")
			if !ok || token == "" {
				return apierr.Unauthorized(`set header "Authorization: Bearer <token>"`, nil)
			}

			claims, err := Verify(secret, token)
			if err != nil {
				return apierr.Unauthorized("token is not acceptable", err)
			}
			c.Set("operator", claims)
			return next(c)
		}
	}
}
