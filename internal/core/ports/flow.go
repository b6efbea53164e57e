package ports

import (
	"time"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

// FlowSnapshot is a point-in-time view of one OTP flow, sufficient for a UI
// to render the right form without reaching into flow internals.
type FlowSnapshot struct {
	Purpose domain.FlowPurpose `json:"purpose"`
	Phase   domain.FlowPhase   `json:"phase"`
	Email   string             `json:"email,omitempty"`
	// ResendCooldown is the whole seconds before resend is permitted.
	ResendCooldown int  `json:"resend_cooldown"`
	Locked         bool `json:"locked"`
	// LockoutRemaining is the whole seconds before submissions re-enable.
	LockoutRemaining int    `json:"lockout_remaining"`
	LockoutReason    string `json:"lockout_reason,omitempty"`
	// Notice carries a transient warning (rate limiting) distinct from the
	// prominent lockout surface.
	Notice string `json:"notice,omitempty"`
}

// FlowOutcome is the terminal result of a successful verification.
type FlowOutcome struct {
	Session domain.Session
	// Message is the success text shown to the user ("Welcome back, …").
	Message string
	// RedirectTo is where the UI should navigate after DismissAfter.
	RedirectTo string
	// DismissAfter is how long the success message stays up.
	DismissAfter time.Duration
	// ProfilePrompt asks the UI to offer profile completion (registration).
	ProfilePrompt bool
}
