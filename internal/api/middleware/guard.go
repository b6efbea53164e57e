package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
	"github.com/vitatrack/auth-lifecycle/internal/core/service"
)

// sidCookie mirrors handler.SIDCookie; the guard only ever reads it.
const sidCookie = "htk_sid"

// Guard gates authenticated-only views.
//
// No identity present is decided synchronously — an immediate redirect to
// the public entry point, no network call. When an identity is present,
// exactly one token validation runs before the protected handler does, so
// protected content never renders on an unconfirmed session. Validation
// failure of any kind — the token disowned or the answer unobtainable —
// fails closed: forced logout, then redirect.
func Guard(sessions *service.Sessions, gateway ports.IdentityGateway, entryPoint string, log zerolog.Logger) echo.MiddlewareFunc {
	guardLog := log.With().Str("component", "route_guard").Logger()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(sidCookie)
			if err != nil || cookie.Value == "" {
				return c.Redirect(http.StatusFound, entryPoint)
			}

			client := sessions.Get(c.Request().Context(), cookie.Value)
			sess, ok := client.Store.Session()
			if !ok {
				return c.Redirect(http.StatusFound, entryPoint)
			}

			status, err := gateway.ValidateToken(c.Request().Context(), sess.Token)
			if err != nil || !status.Valid {
				if err != nil {
					guardLog.Warn().Err(err).Msg("validation unreachable, failing closed")
				}
				client.Store.Logout(c.Request().Context())
				return c.Redirect(http.StatusFound, entryPoint)
			}

			// A confirmed visit to a protected view is qualifying activity.
			client.Watchdog.Activity()

			c.Set("identity", sess.Identity)
			return next(c)
		}
	}
}
