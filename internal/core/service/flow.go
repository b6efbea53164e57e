package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/metrics"
	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

const (
	dashboardPath  = "/dashboard"
	welcomeDismiss = 2 * time.Second
)

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// Flow drives one OTP flow (login or registration) through its phases:
// Collecting, ChallengeSent, Verifying, Done. The only way back is a
// reset: explicit via Reset, or implicit when a fresh challenge request
// reopens the flow from any later phase.
//
// Lockout handling is cross-cutting: a locked response at any step starts
// a countdown that suppresses every submission until it expires. A
// generation counter guards against stale gateway responses being applied
// after the flow has been reset, and an in-flight flag prevents duplicate
// submission of the same logical action.
type Flow struct {
	purpose  domain.FlowPurpose
	gateway  ports.IdentityGateway
	store    *Store
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time

	mu           sync.Mutex
	phase        domain.FlowPhase
	challenge    *domain.OTPChallenge
	registration *domain.RegistrationInput
	lockout      domain.Lockout
	notice       string
	gen          uint64
	inFlight     bool
}

// NewFlow creates a Flow in the Collecting phase. The store is only used
// by the login terminal action; the registration flow may pass the same
// store (it never writes it).
func NewFlow(purpose domain.FlowPurpose, gateway ports.IdentityGateway, store *Store, log zerolog.Logger) *Flow {
	return &Flow{
		purpose:  purpose,
		gateway:  gateway,
		store:    store,
		validate: newFlowValidator(),
		log:      log.With().Str("component", "otp_flow").Str("purpose", string(purpose)).Logger(),
		now:      time.Now,
		phase:    domain.PhaseCollecting,
	}
}

// Purpose identifies which of the two flows this is.
func (f *Flow) Purpose() domain.FlowPurpose { return f.purpose }

// BeginLogin validates the collected login fields and requests a challenge.
// On success the flow moves to ChallengeSent with a full resend cooldown.
func (f *Flow) BeginLogin(ctx context.Context, in domain.LoginInput) (ports.OTPIssued, error) {
	if f.purpose != domain.PurposeLogin {
		return ports.OTPIssued{}, domain.ErrUnknownPurpose
	}
	if err := checkInput(f.validate, in); err != nil {
		return ports.OTPIssued{}, err
	}
	return f.begin(ctx, in.Email, in.CaptchaProof, nil)
}

// BeginRegistration validates the collected registration fields and
// requests a challenge. The profile fields are held for the verification
// call.
func (f *Flow) BeginRegistration(ctx context.Context, in domain.RegistrationInput) (ports.OTPIssued, error) {
	if f.purpose != domain.PurposeRegistration {
		return ports.OTPIssued{}, domain.ErrUnknownPurpose
	}
	if err := checkInput(f.validate, in); err != nil {
		return ports.OTPIssued{}, err
	}
	return f.begin(ctx, in.Email, in.CaptchaProof, &in)
}

func (f *Flow) begin(ctx context.Context, email, captchaProof string, reg *domain.RegistrationInput) (ports.OTPIssued, error) {
	f.mu.Lock()
	if err := f.submittable(); err != nil {
		f.mu.Unlock()
		return ports.OTPIssued{}, err
	}
	if f.phase != domain.PhaseCollecting {
		// A fresh request while a challenge is outstanding (or after the
		// flow completed) reopens the flow: challenge state is discarded,
		// the lockout stays.
		f.resetLocked()
	}
	gen := f.gen
	f.inFlight = true
	f.mu.Unlock()

	issued, err := f.gateway.RequestOTP(ctx, email, f.purpose, captchaProof)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if f.gen != gen {
		// Flow was reset while the request was outstanding; the response
		// is stale and must not be applied.
		return ports.OTPIssued{}, domain.ErrFlowPhase
	}
	if err != nil {
		f.absorbGatewayError(err)
		metrics.OTPRequestsTotal.WithLabelValues(string(f.purpose), "error").Inc()
		return ports.OTPIssued{}, err
	}

	now := f.now()
	f.phase = domain.PhaseChallengeSent
	f.challenge = &domain.OTPChallenge{
		Email:    email,
		Purpose:  f.purpose,
		IssuedAt: now,
		ResendAt: now.Add(domain.ResendCooldown),
	}
	f.registration = reg
	f.clearTransient()
	metrics.OTPRequestsTotal.WithLabelValues(string(f.purpose), "ok").Inc()
	f.log.Info().Str("email", email).Msg("challenge issued")
	return issued, nil
}

// Verify submits the entered code against the outstanding challenge. The
// code must be exactly six numeric digits before any call is attempted.
// On success the flow's terminal action fires: login installs the session
// in the state store and reports the dashboard redirect; registration
// marks the flow done and asks for profile completion.
func (f *Flow) Verify(ctx context.Context, code string) (ports.FlowOutcome, error) {
	if !otpPattern.MatchString(code) {
		return ports.FlowOutcome{}, &domain.ValidationError{Field: "otp", Reason: "must be 6 digits"}
	}

	f.mu.Lock()
	if err := f.submittable(); err != nil {
		f.mu.Unlock()
		return ports.FlowOutcome{}, err
	}
	if f.phase != domain.PhaseChallengeSent && f.phase != domain.PhaseVerifying {
		f.mu.Unlock()
		return ports.FlowOutcome{}, domain.ErrFlowPhase
	}
	f.phase = domain.PhaseVerifying
	gen := f.gen
	email := f.challenge.Email
	var profile domain.ProfileFields
	if f.registration != nil {
		profile = f.registration.Profile()
	}
	f.inFlight = true
	f.mu.Unlock()

	sess, err := f.gateway.VerifyOTP(ctx, email, code, f.purpose, profile)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if f.gen != gen {
		return ports.FlowOutcome{}, domain.ErrFlowPhase
	}
	if err != nil {
		f.challenge.Attempts++
		f.absorbGatewayError(err)
		metrics.OTPVerificationsTotal.WithLabelValues(string(f.purpose), "error").Inc()
		return ports.FlowOutcome{}, err
	}

	if f.purpose == domain.PurposeLogin {
		// Install the session before the flow turns terminal, so a store
		// rejection leaves the flow in Verifying and retryable.
		if err := f.store.LoginSuccess(ctx, sess); err != nil {
			return ports.FlowOutcome{}, err
		}
	}

	f.phase = domain.PhaseDone
	f.clearTransient()
	f.lockout = domain.Lockout{}
	metrics.OTPVerificationsTotal.WithLabelValues(string(f.purpose), "ok").Inc()

	if f.purpose == domain.PurposeLogin {
		return ports.FlowOutcome{
			Session:      sess,
			Message:      "Welcome back, " + sess.Identity.DisplayName() + "!",
			RedirectTo:   dashboardPath,
			DismissAfter: welcomeDismiss,
		}, nil
	}

	f.log.Info().Str("identity", sess.Identity.ID).Msg("registration verified")
	return ports.FlowOutcome{
		Session:       sess,
		Message:       "Your account is verified.",
		ProfilePrompt: true,
	}, nil
}

// Resend re-issues the outstanding challenge. It is only permitted once
// the cooldown has reached zero; success rearms the full cooldown.
func (f *Flow) Resend(ctx context.Context) (ports.OTPIssued, error) {
	f.mu.Lock()
	if err := f.submittable(); err != nil {
		f.mu.Unlock()
		return ports.OTPIssued{}, err
	}
	if f.phase != domain.PhaseChallengeSent && f.phase != domain.PhaseVerifying {
		f.mu.Unlock()
		return ports.OTPIssued{}, domain.ErrFlowPhase
	}
	if f.challenge.ResendRemaining(f.now()) > 0 {
		f.mu.Unlock()
		return ports.OTPIssued{}, domain.ErrCooldownActive
	}
	gen := f.gen
	email := f.challenge.Email
	f.inFlight = true
	f.mu.Unlock()

	issued, err := f.gateway.ResendOTP(ctx, email, f.purpose)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if f.gen != gen {
		return ports.OTPIssued{}, domain.ErrFlowPhase
	}
	if err != nil {
		f.absorbGatewayError(err)
		return ports.OTPIssued{}, err
	}

	f.challenge.ResendAt = f.now().Add(domain.ResendCooldown)
	f.clearTransient()
	f.log.Info().Str("email", email).Msg("challenge re-issued")
	return issued, nil
}

// Reset discards all flow-local state: entered values, the challenge and
// its cooldown, proof tokens and error text. The lockout stays — it is an
// account-level condition, not form state. Responses still in flight for
// the old generation are ignored when they land.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked()
}

// resetLocked discards all flow-local state. Callers hold f.mu.
func (f *Flow) resetLocked() {
	f.gen++
	f.phase = domain.PhaseCollecting
	f.challenge = nil
	f.registration = nil
	f.clearTransient()
}

// Snapshot returns a point-in-time view for rendering.
func (f *Flow) Snapshot() ports.FlowSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	snap := ports.FlowSnapshot{
		Purpose:          f.purpose,
		Phase:            f.phase,
		Locked:           f.lockout.Active(now),
		LockoutRemaining: f.lockout.Remaining(now),
		Notice:           f.notice,
	}
	if snap.Locked {
		snap.LockoutReason = f.lockout.Reason
	}
	if f.challenge != nil {
		snap.Email = f.challenge.Email
		snap.ResendCooldown = f.challenge.ResendRemaining(now)
	}
	return snap
}

// submittable is the cross-cutting gate every action passes: no concurrent
// submission of the same logical action, and nothing at all while locked
// out. Callers hold f.mu.
func (f *Flow) submittable() error {
	if f.inFlight {
		return domain.ErrRequestInFlight
	}
	if f.lockout.Active(f.now()) {
		return domain.ErrFlowLocked
	}
	return nil
}

// absorbGatewayError turns gateway failures into local flow state: a
// locked response starts the lockout countdown, a throttled response is a
// transient notice. Everything else passes through untouched. Callers
// hold f.mu.
func (f *Flow) absorbGatewayError(err error) {
	var locked *domain.LockedError
	if errors.As(err, &locked) {
		f.lockout = domain.NewLockout(f.now(), locked.Duration, "Account locked due to too many failed attempts.")
		metrics.LockoutsTotal.WithLabelValues(string(f.purpose)).Inc()
		f.log.Warn().Int("minutes", locked.RemainingMinutes()).Msg("account locked")
		return
	}
	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		f.notice = limited.Error()
		f.log.Warn().Int("attempts", limited.Attempts).Msg("rate limited")
	}
}

func (f *Flow) clearTransient() {
	f.notice = ""
}
