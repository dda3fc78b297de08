package daemon

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"tipflow/internal/api"
)

const claimsContextKey = "tipflow.claims"

// jwtMiddleware validates HS256 bearer tokens signed with secret. When issuer
// is non-empty the iss claim must match it. Tokens without exp are refused.
// An empty secret disables authentication.
func jwtMiddleware(secret, issuer string) echo.MiddlewareFunc {
	key := []byte(secret)
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if secret == "" {
			return next
		}
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			}
			claims := &jwt.RegisteredClaims{}
			token, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
				return key, nil
			})
			if err != nil || !token.Valid {
				return c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
			}
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}
