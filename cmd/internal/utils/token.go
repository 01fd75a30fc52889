package utils

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TokenContextKey is where the auth middleware stores the verified claims.
const TokenContextKey = "token_data"

var ErrNoTokenData = errors.New("no token data in request context")

// TokenClaims mirrors the Cognito id/access token claims we read.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email    string   `json:"email,omitempty"`
	Username string   `json:"cognito:username,omitempty"`
	Groups   []string `json:"cognito:groups,omitempty"`
	TokenUse string   `json:"token_use,omitempty"`
}

type TokenData struct {
	Sub    string
	Email  string
	Groups []string
}

func ParseTokenDataCtx(c echo.Context) (*TokenData, error) {
	claims, ok := c.Get(TokenContextKey).(*TokenClaims)
	if !ok || claims == nil || claims.Subject == "" {
		return nil, ErrNoTokenData
	}
	return &TokenData{
		Sub:    claims.Subject,
		Email:  claims.Email,
		Groups: claims.Groups,
	}, nil
}
