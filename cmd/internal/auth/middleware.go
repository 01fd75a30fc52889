// Package auth verifies bearer tokens and puts their claims on the echo
// context for routes to read with utils.ParseTokenDataCtx.
package auth

import (
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Config selects how tokens are checked. With a Secret, tokens are HS256
// (local setups and tests); otherwise they are RS256 tokens from the
// Cognito user pool, checked against its JWKS.
type Config struct {
	Secret   []byte
	JWKS     *JWKSCache
	Issuer   string
	Audience string
	Skipper  func(c echo.Context) bool
}

// publicRoutes are reachable without a token.
var publicRoutes = map[string]bool{
	"POST /api/auth/register/patient": true,
	"POST /api/auth/register/doctor":  true,
	"POST /api/auth/login":            true,
	"POST /api/auth/verify":           true,
	"GET /api/clinics":                true,
	"GET /api/clinics/:id":            true,
	"GET /health":                     true,
	"GET /metrics":                    true,
}

// PublicSkipper lets the routes of publicRoutes through.
func PublicSkipper(c echo.Context) bool {
	return publicRoutes[c.Request().Method+" "+c.Path()]
}

func Middleware(cfg Config) echo.MiddlewareFunc {
	keyfunc := func(t *jwt.Token) (any, error) {
		if len(cfg.Secret) > 0 {
			return cfg.Secret, nil
		}
		if cfg.JWKS == nil {
			return nil, errors.New("no token verification key configured")
		}
		return cfg.JWKS.Keyfunc(t)
	}

	methods := []string{"RS256"}
	if len(cfg.Secret) > 0 {
		methods = []string{"HS256"}
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}

			raw, ok := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
			}

			claims := &utils.TokenClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyfunc, opts...)
			if err != nil || !token.Valid || claims.Subject == "" {
				c.Logger().Debugf("rejected token: %v", err)
				return c.JSON(http.StatusUnauthorized, apierror.InvalidAuthTokenError)
			}

			c.Set(utils.TokenContextKey, claims)
			return next(c)
		}
	}
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
