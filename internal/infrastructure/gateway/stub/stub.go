// Package stub is an in-process identity service used in development mode
// and in tests. It mirrors the remote contract faithfully — bcrypt-hashed
// one-time codes, per-email rate limiting, failed-attempt lockouts with
// the same "try again in N minutes" message shape, and HS256 session
// tokens — while returning the issued code in DebugOTP so flows can be
// exercised without email delivery.
package stub

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

const (
	otpTTL         = 10 * time.Minute
	tokenTTL       = 24 * time.Hour
	maxFailures    = 5
	lockoutWindow  = 30 * time.Minute
	requestsPerMin = 5
)

type account struct {
	identity     domain.Identity
	tokenVersion int

	otpHash    []byte
	otpExpiry  time.Time
	otpPurpose domain.FlowPurpose
	profile    domain.ProfileFields

	failures    int
	lockedUntil time.Time
}

// Stub implements ports.IdentityGateway entirely in memory.
type Stub struct {
	secret []byte
	log    zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	accounts map[string]*account
	limiters map[string]*rate.Limiter
	attempts map[string]int
}

// New creates a Stub signing tokens with secret.
func New(secret string, log zerolog.Logger) *Stub {
	return &Stub{
		secret:   []byte(secret),
		log:      log.With().Str("component", "identity_stub").Logger(),
		now:      time.Now,
		accounts: make(map[string]*account),
		limiters: make(map[string]*rate.Limiter),
		attempts: make(map[string]int),
	}
}

// RequestOTP issues a fresh challenge for email, subject to the same
// lockout and throttling rules as the real service.
func (s *Stub) RequestOTP(ctx context.Context, email string, purpose domain.FlowPurpose, captchaProof string) (ports.OTPIssued, error) {
	if captchaProof == "" {
		return ports.OTPIssued{}, &domain.ValidationError{Field: "captcha_proof", Reason: "is required"}
	}
	return s.issue(email, purpose)
}

// ResendOTP re-issues the challenge without a captcha check, matching the
// remote resend endpoints.
func (s *Stub) ResendOTP(ctx context.Context, email string, purpose domain.FlowPurpose) (ports.OTPIssued, error) {
	return s.issue(email, purpose)
}

func (s *Stub) issue(email string, purpose domain.FlowPurpose) (ports.OTPIssued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.account(email)
	if err := s.checkLocked(acct); err != nil {
		return ports.OTPIssued{}, err
	}
	if !s.limiter(email).Allow() {
		s.attempts[email]++
		return ports.OTPIssued{}, &domain.RateLimitedError{
			Attempts: s.attempts[email],
			Message:  "Too many attempts. Please try again later.",
		}
	}

	code, err := randomCode()
	if err != nil {
		return ports.OTPIssued{}, &domain.TransportError{Op: "request-otp", Err: err}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	if err != nil {
		return ports.OTPIssued{}, &domain.TransportError{Op: "request-otp", Err: err}
	}

	acct.otpHash = hash
	acct.otpExpiry = s.now().Add(otpTTL)
	acct.otpPurpose = purpose
	s.log.Debug().Str("email", email).Str("purpose", string(purpose)).Msg("challenge issued")
	return ports.OTPIssued{Issued: true, DebugOTP: code}, nil
}

// VerifyOTP checks the code, applying the failed-attempt lockout policy.
func (s *Stub) VerifyOTP(ctx context.Context, email, code string, purpose domain.FlowPurpose, profile domain.ProfileFields) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.account(email)
	if err := s.checkLocked(acct); err != nil {
		return domain.Session{}, err
	}
	if acct.otpHash == nil || acct.otpPurpose != purpose || s.now().After(acct.otpExpiry) {
		return domain.Session{}, &domain.InvalidCodeError{Message: "Invalid OTP. Please request a new code."}
	}

	if bcrypt.CompareHashAndPassword(acct.otpHash, []byte(code)) != nil {
		acct.failures++
		if acct.failures >= maxFailures {
			acct.lockedUntil = s.now().Add(lockoutWindow)
			acct.failures = 0
			return domain.Session{}, s.lockedError(acct)
		}
		return domain.Session{}, &domain.InvalidCodeError{
			Message: fmt.Sprintf("Invalid OTP. %d attempts remaining.", maxFailures-acct.failures),
		}
	}

	// Code accepted: burn it and clear the failure history.
	acct.otpHash = nil
	acct.failures = 0
	delete(s.attempts, email)

	if purpose == domain.PurposeRegistration {
		acct.identity.FirstName = profile.FirstName
		acct.identity.LastName = profile.LastName
		acct.identity.Gender = profile.Gender
		acct.identity.Phone = profile.Phone
	}

	token, err := s.mintToken(acct)
	if err != nil {
		return domain.Session{}, &domain.TransportError{Op: "verify-otp", Err: err}
	}
	return domain.Session{Identity: acct.identity, Token: token}, nil
}

// ValidateToken reports whether token is still accepted. Invalid or
// revoked tokens are not errors.
func (s *Stub) ValidateToken(ctx context.Context, token string) (ports.TokenStatus, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return ports.TokenStatus{Valid: false}, nil
	}

	email, _ := claims["email"].(string)
	version, _ := claims["ver"].(float64)

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[email]
	if !ok || int(version) != acct.tokenVersion {
		return ports.TokenStatus{Valid: false}, nil
	}
	return ports.TokenStatus{Valid: true, Identity: acct.identity}, nil
}

// RevokeSession invalidates every outstanding token for the identity.
func (s *Stub) RevokeSession(ctx context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.identity.ID == identityID {
			acct.tokenVersion++
			return nil
		}
	}
	return nil
}

// Lock places email in a lockout for the standard window. Test hook for
// exercising locked-response handling.
func (s *Stub) Lock(email string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account(email).lockedUntil = s.now().Add(d)
}

// account returns the record for email, creating it on first sight.
// Callers hold s.mu.
func (s *Stub) account(email string) *account {
	acct, ok := s.accounts[email]
	if !ok {
		acct = &account{identity: domain.Identity{ID: uuid.NewString(), Email: email}}
		s.accounts[email] = acct
	}
	return acct
}

func (s *Stub) limiter(email string) *rate.Limiter {
	lim, ok := s.limiters[email]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/requestsPerMin), requestsPerMin)
		s.limiters[email] = lim
	}
	return lim
}

func (s *Stub) checkLocked(acct *account) error {
	if s.now().Before(acct.lockedUntil) {
		return s.lockedError(acct)
	}
	return nil
}

func (s *Stub) lockedError(acct *account) *domain.LockedError {
	remaining := acct.lockedUntil.Sub(s.now())
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return &domain.LockedError{
		Duration: remaining,
		Message:  fmt.Sprintf("Account temporarily locked due to too many failed attempts. Try again in %d minutes.", minutes),
	}
}

func (s *Stub) mintToken(acct *account) (string, error) {
	claims := jwt.MapClaims{
		"sub":   acct.identity.ID,
		"email": acct.identity.Email,
		"ver":   acct.tokenVersion,
		"jti":   uuid.NewString(),
		"exp":   s.now().Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
