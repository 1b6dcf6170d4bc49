package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/promptvault/internal/apperr"
	"github.com/iliyamo/promptvault/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject (the caller's email) into the request context
// under ContextUserEmail.  The codec pins the signing algorithm, so a token
// signed with anything but HS256 is rejected here.  Only signature and expiry
// are checked; whether the credential still exists is the handler's concern.
func JWTAuth(codec *utils.TokenCodec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header should start with "Bearer " followed by the JWT.
			raw, ok := BearerToken(c)
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing_bearer_token"})
			}

			sub, err := codec.Verify(raw)
			if err != nil {
				// The kind distinguishes an expired token from a bad one so
				// clients know whether a refresh is worth trying.
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": apperr.KindOf(err)})
			}

			c.Set(ContextUserEmail, sub)
			return next(c)
		}
	}
}
