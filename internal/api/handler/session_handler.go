package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
	"github.com/vitatrack/auth-lifecycle/internal/core/service"
)

// SessionHandler exposes the lifecycle endpoints of an established
// session: the current identity, the activity signals feeding the
// watchdog, and logout.
type SessionHandler struct {
	sessions *service.Sessions
	gateway  ports.IdentityGateway
	cookies  CookieConfig
}

func NewSessionHandler(sessions *service.Sessions, gateway ports.IdentityGateway, cookies CookieConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, gateway: gateway, cookies: cookies}
}

type sessionResponse struct {
	User                   domain.Identity `json:"user"`
	ProfilePromptDismissed bool            `json:"profile_prompt_dismissed"`
}

// Current returns the authenticated identity.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Failure      401  {object}  map[string]string
// @Router       /session [get]
func (h *SessionHandler) Current(c echo.Context) error {
	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	sess, ok := client.Store.Session()
	if !ok {
		return domain.ErrNotAuthenticated
	}
	return c.JSON(http.StatusOK, sessionResponse{
		User:                   sess.Identity,
		ProfilePromptDismissed: client.Store.ProfilePromptDismissed(c.Request().Context()),
	})
}

// Heartbeat records a qualifying user-activity signal, restarting the
// inactivity budget.
//
// @Summary      Report user activity
// @Tags         session
// @Success      204
// @Router       /session/heartbeat [post]
func (h *SessionHandler) Heartbeat(c echo.Context) error {
	if client, ok := h.sessions.Peek(resolveSID(c, h.cookies)); ok {
		client.Watchdog.Activity()
	}
	return c.NoContent(http.StatusNoContent)
}

// Acknowledge confirms the expiry warning, restoring the full inactivity
// budget.
//
// @Summary      Acknowledge the expiry warning
// @Tags         session
// @Success      204
// @Router       /session/acknowledge [post]
func (h *SessionHandler) Acknowledge(c echo.Context) error {
	if client, ok := h.sessions.Peek(resolveSID(c, h.cookies)); ok {
		client.Watchdog.Acknowledge()
	}
	return c.NoContent(http.StatusNoContent)
}

// Visibility reports that the page regained foreground visibility. The
// watchdog decides from wall-clock elapsed time whether the session
// survived being backgrounded.
//
// @Summary      Report foreground visibility
// @Tags         session
// @Success      204
// @Router       /session/visibility [post]
func (h *SessionHandler) Visibility(c echo.Context) error {
	if client, ok := h.sessions.Peek(resolveSID(c, h.cookies)); ok {
		client.Watchdog.VisibilityRecovered()
	}
	return c.NoContent(http.StatusNoContent)
}

// DismissProfilePrompt records the one-time profile-completion prompt as
// dismissed.
//
// @Summary      Dismiss the profile prompt
// @Tags         session
// @Success      204
// @Failure      401  {object}  map[string]string
// @Router       /session/profile-prompt [post]
func (h *SessionHandler) DismissProfilePrompt(c echo.Context) error {
	client := h.sessions.Get(c.Request().Context(), resolveSID(c, h.cookies))
	if !client.Store.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := client.Store.DismissProfilePrompt(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Logout ends the session: best-effort remote revocation, unconditional
// local purge, lifecycle teardown, and expired auth cookies.
//
// @Summary      Log out
// @Tags         session
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /session/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	client.Logout(c.Request().Context(), h.gateway)
	h.sessions.Remove(sid)
	expireAuthCookies(c, h.cookies)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}
