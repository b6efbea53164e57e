package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SIDCookie names the cookie carrying the client session id that keys the
// per-client lifecycle (store, watchdog, flows).
const SIDCookie = "htk_sid"

// CookieConfig controls the cookies the auth surface sets.
type CookieConfig struct {
	Domain string
	Secure bool
}

// resolveSID returns the client session id, minting a new one (and setting
// the cookie) when the request carries none.
func resolveSID(c echo.Context, cfg CookieConfig) string {
	if cookie, err := c.Cookie(SIDCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	sid := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     SIDCookie,
		Value:    sid,
		Path:     "/",
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// expireAuthCookies clears every authentication-related cookie by setting
// it to an already-expired date, so no stale fragment survives a logout.
func expireAuthCookies(c echo.Context, cfg CookieConfig) {
	expired := time.Unix(0, 0)
	for _, name := range []string{SIDCookie, "auth_token", "auth_user"} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   cfg.Domain,
			Expires:  expired,
			MaxAge:   -1,
			Secure:   cfg.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
