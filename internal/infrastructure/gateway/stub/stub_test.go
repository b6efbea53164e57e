package stub

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

func newTestStub() *Stub {
	return New("test-secret", zerolog.Nop())
}

func TestStub_IssueAndVerify(t *testing.T) {
	s := newTestStub()

	issued, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	if len(issued.DebugOTP) != 6 {
		t.Fatalf("debug otp = %q", issued.DebugOTP)
	}

	sess, err := s.VerifyOTP(context.Background(), "a@b.com", issued.DebugOTP, domain.PurposeLogin, domain.ProfileFields{})
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if sess.Token == "" || sess.Identity.Email != "a@b.com" {
		t.Fatalf("session = %+v", sess)
	}

	// The code is burned after acceptance.
	if _, err := s.VerifyOTP(context.Background(), "a@b.com", issued.DebugOTP, domain.PurposeLogin, domain.ProfileFields{}); err == nil {
		t.Fatalf("expected rejection of a reused code")
	}
}

func TestStub_RegistrationStoresProfile(t *testing.T) {
	s := newTestStub()

	issued, err := s.RequestOTP(context.Background(), "new@b.com", domain.PurposeRegistration, "proof")
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}

	profile := domain.ProfileFields{FirstName: "Maria", LastName: "Lopez", Gender: "F", Phone: "5512345678"}
	sess, err := s.VerifyOTP(context.Background(), "new@b.com", issued.DebugOTP, domain.PurposeRegistration, profile)
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if sess.Identity.FirstName != "Maria" || sess.Identity.Phone != "5512345678" {
		t.Fatalf("profile not stored: %+v", sess.Identity)
	}
}

func TestStub_PurposeMismatchRejected(t *testing.T) {
	s := newTestStub()

	issued, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}

	_, err = s.VerifyOTP(context.Background(), "a@b.com", issued.DebugOTP, domain.PurposeRegistration, domain.ProfileFields{})
	var invalid *domain.InvalidCodeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCodeError for purpose mismatch, got %v", err)
	}
}

func TestStub_FailedAttemptsLockAccount(t *testing.T) {
	s := newTestStub()

	issued, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	wrong := "000000"
	if wrong == issued.DebugOTP {
		wrong = "000001"
	}

	var lastErr error
	for i := 0; i < maxFailures; i++ {
		_, lastErr = s.VerifyOTP(context.Background(), "a@b.com", wrong, domain.PurposeLogin, domain.ProfileFields{})
	}

	var locked *domain.LockedError
	if !errors.As(lastErr, &locked) {
		t.Fatalf("expected LockedError after %d failures, got %v", maxFailures, lastErr)
	}
	if !strings.Contains(locked.Message, "Try again in 30 minutes") {
		t.Fatalf("lockout message = %q", locked.Message)
	}

	// Everything is refused while locked, including fresh challenges.
	if _, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof"); !errors.As(err, &locked) {
		t.Fatalf("expected LockedError on request while locked, got %v", err)
	}
	if _, err := s.VerifyOTP(context.Background(), "a@b.com", issued.DebugOTP, domain.PurposeLogin, domain.ProfileFields{}); !errors.As(err, &locked) {
		t.Fatalf("expected LockedError on verify while locked, got %v", err)
	}
}

func TestStub_RateLimitsRequests(t *testing.T) {
	s := newTestStub()

	var err error
	for i := 0; i <= requestsPerMin; i++ {
		_, err = s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	}

	var limited *domain.RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError after burst, got %v", err)
	}
	if limited.Attempts == 0 {
		t.Fatalf("expected attempt count in throttle response")
	}
}

func TestStub_TokenLifecycle(t *testing.T) {
	s := newTestStub()

	issued, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	if err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	sess, err := s.VerifyOTP(context.Background(), "a@b.com", issued.DebugOTP, domain.PurposeLogin, domain.ProfileFields{})
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}

	status, err := s.ValidateToken(context.Background(), sess.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !status.Valid || status.Identity.Email != "a@b.com" {
		t.Fatalf("status = %+v", status)
	}

	// Garbage is invalid, not an error.
	status, err = s.ValidateToken(context.Background(), "not-a-token")
	if err != nil || status.Valid {
		t.Fatalf("garbage token: status=%+v err=%v", status, err)
	}

	// Revocation invalidates every outstanding token.
	if err := s.RevokeSession(context.Background(), sess.Identity.ID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	status, err = s.ValidateToken(context.Background(), sess.Token)
	if err != nil || status.Valid {
		t.Fatalf("revoked token: status=%+v err=%v", status, err)
	}
}

func TestStub_MissingCaptchaRejected(t *testing.T) {
	s := newTestStub()
	_, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStub_LockExpires(t *testing.T) {
	s := newTestStub()
	s.Lock("a@b.com", 10*time.Minute)

	_, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	var locked *domain.LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}

	// Move past the deadline.
	s.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	if _, err := s.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof"); err != nil {
		t.Fatalf("expected lock to expire, got %v", err)
	}
}
