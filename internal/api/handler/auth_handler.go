package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/service"
)

// AuthHandler exposes the OTP flows to the SPA. Each flow endpoint is
// addressed by purpose ("login" or "registration"); starting one purpose
// resets the other so no challenge state leaks across tabs.
type AuthHandler struct {
	sessions *service.Sessions
	cookies  CookieConfig
}

func NewAuthHandler(sessions *service.Sessions, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{sessions: sessions, cookies: cookies}
}

type verifyRequest struct {
	OTP string `json:"otp"`
}

type otpIssuedResponse struct {
	Message  string `json:"message"`
	DebugOTP string `json:"debug_otp,omitempty"`
}

type verifiedResponse struct {
	Message        string           `json:"message"`
	User           *domain.Identity `json:"user,omitempty"`
	RedirectTo     string           `json:"redirect_to,omitempty"`
	DismissAfterMS int64            `json:"dismiss_after_ms,omitempty"`
	ProfilePrompt  bool             `json:"profile_prompt,omitempty"`
}

// RequestOTP starts a flow by validating the collected fields and issuing
// a challenge.
//
// @Summary      Request a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        purpose  path      string  true  "login or registration"
// @Success      200      {object}  otpIssuedResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /auth/{purpose}/request-otp [post]
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	purpose := domain.FlowPurpose(c.Param("purpose"))
	if !purpose.Valid() {
		return domain.ErrUnknownPurpose
	}

	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	flow, err := client.SwitchTo(purpose)
	if err != nil {
		return err
	}

	var issued otpIssuedResponse
	switch purpose {
	case domain.PurposeLogin:
		var in domain.LoginInput
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		res, err := flow.BeginLogin(c.Request().Context(), in)
		if err != nil {
			return err
		}
		issued = otpIssuedResponse{Message: "OTP sent successfully", DebugOTP: res.DebugOTP}
	default:
		var in domain.RegistrationInput
		if err := c.Bind(&in); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
		}
		res, err := flow.BeginRegistration(c.Request().Context(), in)
		if err != nil {
			return err
		}
		issued = otpIssuedResponse{Message: "OTP sent successfully", DebugOTP: res.DebugOTP}
	}

	return c.JSON(http.StatusOK, issued)
}

// VerifyOTP submits the entered code. A successful login responds with the
// session identity, the dashboard redirect, and how long the welcome
// message stays up; a successful registration asks for profile completion.
//
// @Summary      Verify a one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        purpose  path      string         true  "login or registration"
// @Param        body     body      verifyRequest  true  "The 6-digit code"
// @Success      200      {object}  verifiedResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Router       /auth/{purpose}/verify-otp [post]
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	purpose := domain.FlowPurpose(c.Param("purpose"))
	if !purpose.Valid() {
		return domain.ErrUnknownPurpose
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	flow, err := client.Flow(purpose)
	if err != nil {
		return err
	}

	outcome, err := flow.Verify(c.Request().Context(), req.OTP)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, verifiedResponse{
		Message:        outcome.Message,
		User:           &outcome.Session.Identity,
		RedirectTo:     outcome.RedirectTo,
		DismissAfterMS: outcome.DismissAfter.Milliseconds(),
		ProfilePrompt:  outcome.ProfilePrompt,
	})
}

// ResendOTP re-issues the challenge once the cooldown has elapsed.
//
// @Summary      Resend the one-time code
// @Tags         auth
// @Produce      json
// @Param        purpose  path      string  true  "login or registration"
// @Success      200      {object}  otpIssuedResponse
// @Failure      400      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      429      {object}  map[string]string
// @Router       /auth/{purpose}/resend-otp [post]
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	purpose := domain.FlowPurpose(c.Param("purpose"))
	if !purpose.Valid() {
		return domain.ErrUnknownPurpose
	}

	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	flow, err := client.Flow(purpose)
	if err != nil {
		return err
	}

	res, err := flow.Resend(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, otpIssuedResponse{Message: "OTP resent successfully", DebugOTP: res.DebugOTP})
}

// FlowState returns the snapshot the UI renders a flow from: phase,
// cooldown, lockout countdown and any transient notice.
//
// @Summary      Current flow state
// @Tags         auth
// @Produce      json
// @Param        purpose  path      string  true  "login or registration"
// @Success      200      {object}  ports.FlowSnapshot
// @Router       /auth/flow/{purpose} [get]
func (h *AuthHandler) FlowState(c echo.Context) error {
	purpose := domain.FlowPurpose(c.Param("purpose"))
	if !purpose.Valid() {
		return domain.ErrUnknownPurpose
	}

	sid := resolveSID(c, h.cookies)
	client := h.sessions.Get(c.Request().Context(), sid)
	flow, err := client.Flow(purpose)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, flow.Snapshot())
}
