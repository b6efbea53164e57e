// Package gateway implements the HTTP client for the remote identity
// service: challenge issuing, code verification, token validation, and
// session revocation.
//
// Errors are classified by response status, never by matching on the
// human-readable message — the message is carried for display only. The
// one thing read out of a message is the lockout duration embedded in 403
// responses, after the classification has already happened.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

// Client is the HTTP implementation of ports.IdentityGateway.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Client for the identity service at baseURL.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "identity_gateway").Logger(),
	}
}

type otpResponse struct {
	Message  string `json:"message"`
	DebugOTP string `json:"debug_otp,omitempty"`
}

type verifyResponse struct {
	Message string          `json:"message"`
	User    domain.Identity `json:"user"`
	Token   string          `json:"token"`
}

type errorResponse struct {
	Error    string `json:"error"`
	Attempts int    `json:"attempts,omitempty"`
}

// RequestOTP asks the identity service to issue a challenge for email.
func (c *Client) RequestOTP(ctx context.Context, email string, purpose domain.FlowPurpose, captchaProof string) (ports.OTPIssued, error) {
	path := "/login-request-otp"
	if purpose == domain.PurposeRegistration {
		path = "/register"
	}
	payload := map[string]string{"email": email, "captcha_proof": captchaProof}

	var out otpResponse
	if err := c.post(ctx, "request-otp", path, payload, &out); err != nil {
		return ports.OTPIssued{}, err
	}
	return ports.OTPIssued{Issued: true, DebugOTP: out.DebugOTP}, nil
}

// VerifyOTP submits the entered code. Registration verifications carry the
// collected profile fields.
func (c *Client) VerifyOTP(ctx context.Context, email, code string, purpose domain.FlowPurpose, profile domain.ProfileFields) (domain.Session, error) {
	path := "/login-verify-otp"
	payload := map[string]any{"email": email, "otp": code}
	if purpose == domain.PurposeRegistration {
		path = "/verify-otp"
		payload["first_name"] = profile.FirstName
		payload["last_name"] = profile.LastName
		payload["gender"] = profile.Gender
		payload["phone"] = profile.Phone
	}

	var out verifyResponse
	if err := c.post(ctx, "verify-otp", path, payload, &out); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Identity: out.User, Token: out.Token}, nil
}

// ResendOTP re-issues the outstanding challenge. The cooldown window is
// enforced by the caller before this is invoked.
func (c *Client) ResendOTP(ctx context.Context, email string, purpose domain.FlowPurpose) (ports.OTPIssued, error) {
	path := "/resend-login-otp"
	if purpose == domain.PurposeRegistration {
		path = "/resend-registration-otp"
	}

	var out otpResponse
	if err := c.post(ctx, "resend-otp", path, map[string]string{"email": email}, &out); err != nil {
		return ports.OTPIssued{}, err
	}
	return ports.OTPIssued{Issued: true, DebugOTP: out.DebugOTP}, nil
}

// ValidateToken asks whether token is still accepted. Any non-200 answer
// means invalid — it is not an error. Errors are returned only for
// transport failures, which callers treat as "unknown, assume invalid".
func (c *Client) ValidateToken(ctx context.Context, token string) (ports.TokenStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/validate-token", nil)
	if err != nil {
		return ports.TokenStatus{}, &domain.TransportError{Op: "validate-token", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.TokenStatus{}, &domain.TransportError{Op: "validate-token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.TokenStatus{Valid: false}, nil
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.TokenStatus{}, &domain.TransportError{Op: "validate-token", Err: err}
	}
	return ports.TokenStatus{Valid: true, Identity: out.User}, nil
}

// RevokeSession tells the identity service to record the logout. Failures
// surface to the caller but never block a local logout.
func (c *Client) RevokeSession(ctx context.Context, identityID string) error {
	var out otpResponse
	return c.post(ctx, "logout", "/logout", map[string]string{"identity_id": identityID}, &out)
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.classify(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	return nil
}

// classify maps a non-200 response onto the domain error taxonomy by
// status code.
func (c *Client) classify(op string, resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusForbidden:
		return &domain.LockedError{
			Duration: domain.ParseLockoutDuration(body.Error),
			Message:  body.Error,
		}
	case http.StatusTooManyRequests:
		return &domain.RateLimitedError{Attempts: body.Attempts, Message: body.Error}
	case http.StatusBadRequest:
		if op == "verify-otp" {
			return &domain.InvalidCodeError{Message: body.Error}
		}
		return &domain.ValidationError{Field: "request", Reason: body.Error}
	default:
		c.log.Warn().Int("status", resp.StatusCode).Str("op", op).Msg("unexpected identity service status")
		return &domain.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}
