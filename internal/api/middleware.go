package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// requireAPIKey guards the /commands group: every shell-to-host command
// call must present the configured key, since a bare HTTP port otherwise
// gives any local process the run of the Isolate Manager and the network
// fabric. An empty configured key disables the check (local development).
func requireAPIKey(apiKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			provided := c.Request().Header.Get("X-API-Key")
			if provided == "" {
				provided = c.QueryParam("api_key")
			}
			if provided == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing API key"})
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "invalid API key"})
			}
			return next(c)
		}
	}
}
