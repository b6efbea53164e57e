package ports

import (
	"context"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

// OTPIssued is the gateway's answer to a challenge request. DebugOTP is
// only populated by non-production identity services.
type OTPIssued struct {
	Issued   bool
	DebugOTP string
}

// TokenStatus is the gateway's answer to a token validation. Identity is
// populated only when Valid.
type TokenStatus struct {
	Valid    bool
	Identity domain.Identity
}

// IdentityGateway is the outbound port to the remote identity service that
// issues and verifies one-time codes and session tokens.
//
// Errors follow the domain taxonomy: *domain.LockedError for 403,
// *domain.RateLimitedError for 429, *domain.InvalidCodeError for a rejected
// code, *domain.TransportError for network/decode failures. ValidateToken
// never returns an error for an invalid or expired token — it reports
// {Valid: false}; an error from it always means transport failure and
// callers must fail closed.
type IdentityGateway interface {
	RequestOTP(ctx context.Context, email string, purpose domain.FlowPurpose, captchaProof string) (OTPIssued, error)
	VerifyOTP(ctx context.Context, email, code string, purpose domain.FlowPurpose, profile domain.ProfileFields) (domain.Session, error)
	ResendOTP(ctx context.Context, email string, purpose domain.FlowPurpose) (OTPIssued, error)
	ValidateToken(ctx context.Context, token string) (TokenStatus, error)
	// RevokeSession is best-effort: callers proceed with local logout
	// regardless of its outcome.
	RevokeSession(ctx context.Context, identityID string) error
}
