package domain

import "time"

// FlowPurpose distinguishes the two OTP flows. They share the same phase
// shape but have different terminal actions.
type FlowPurpose string

const (
	PurposeLogin        FlowPurpose = "login"
	PurposeRegistration FlowPurpose = "registration"
)

// Valid reports whether p is one of the two known purposes.
func (p FlowPurpose) Valid() bool {
	return p == PurposeLogin || p == PurposeRegistration
}

// FlowPhase is the tagged state of an OTP flow. Phases advance linearly;
// the only way back is an explicit reset to Collecting.
type FlowPhase string

const (
	PhaseCollecting    FlowPhase = "collecting"
	PhaseChallengeSent FlowPhase = "challenge_sent"
	PhaseVerifying     FlowPhase = "verifying"
	PhaseDone          FlowPhase = "done"
)

// phaseTransitions defines the allowed forward transitions.
var phaseTransitions = map[FlowPhase][]FlowPhase{
	PhaseCollecting:    {PhaseChallengeSent},
	PhaseChallengeSent: {PhaseVerifying},
	PhaseVerifying:     {PhaseVerifying, PhaseDone},
}

// CanTransitionTo reports whether moving from the current phase to next is a
// valid forward transition. Resetting to Collecting is handled separately.
func (p FlowPhase) CanTransitionTo(next FlowPhase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ResendCooldown is how long after a challenge is issued (or re-issued)
// before the resend action becomes available again.
const ResendCooldown = 120 * time.Second

// OTPChallenge tracks a single outstanding one-time-code challenge. It is
// created when a challenge is requested and discarded whenever the owning
// flow resets.
type OTPChallenge struct {
	Email    string
	Purpose  FlowPurpose
	IssuedAt time.Time
	// ResendAt is the instant the resend action becomes permitted.
	ResendAt time.Time
	// Attempts counts verification attempts made against this challenge.
	Attempts int
}

// ResendRemaining returns the whole seconds left on the resend cooldown at
// the given instant, floored at zero.
func (c OTPChallenge) ResendRemaining(now time.Time) int {
	return remainingSeconds(c.ResendAt, now)
}

// LoginInput is what the login flow collects before requesting a challenge.
type LoginInput struct {
	Email        string `json:"email" validate:"required,email"`
	CaptchaProof string `json:"captcha_proof" validate:"required"`
}

// RegistrationInput is what the registration flow collects before
// requesting a challenge. Phone must be exactly ten digits and names may
// contain letters and spaces only.
type RegistrationInput struct {
	FirstName    string `json:"first_name" validate:"required,personname"`
	LastName     string `json:"last_name" validate:"required,personname"`
	Gender       string `json:"gender" validate:"omitempty,oneof=M F O"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,phone10"`
	CaptchaProof string `json:"captcha_proof" validate:"required"`
}

// Profile returns the profile fields forwarded to the identity service on
// verification.
func (in RegistrationInput) Profile() ProfileFields {
	return ProfileFields{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Gender:    in.Gender,
		Phone:     in.Phone,
	}
}

// ProfileFields are the optional profile attributes sent alongside a
// registration verification.
type ProfileFields struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Gender    string `json:"gender,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func remainingSeconds(deadline, now time.Time) int {
	if !now.Before(deadline) {
		return 0
	}
	// Round up so a freshly armed 120s cooldown reads as 120, not 119.
	return int((deadline.Sub(now) + time.Second - 1) / time.Second)
}
