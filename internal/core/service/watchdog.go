package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/metrics"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

// Termination reasons reported by the watchdog.
const (
	ReasonInactivity   = "inactivity"
	ReasonInvalidToken = "invalid_token"
	ReasonTransport    = "transport_failure"
)

// WatchdogConfig holds the timer thresholds.
type WatchdogConfig struct {
	// RevalidateInterval is how often the session token is re-confirmed
	// against the identity service.
	RevalidateInterval time.Duration
	// InactivityTimeout is how long without qualifying activity before the
	// session is terminated.
	InactivityTimeout time.Duration
	// WarningWindow is how long before expiry the warning fires, when the
	// timeout is long enough to allow it.
	WarningWindow time.Duration
}

func (c *WatchdogConfig) applyDefaults() {
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = 15 * time.Minute
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = 45 * time.Minute
	}
	if c.WarningWindow <= 0 {
		c.WarningWindow = 5 * time.Minute
	}
}

// Watchdog owns the two background timer concerns of an authenticated
// session: periodic token revalidation and the inactivity timeout. It is
// armed only while an identity is present and torn down the moment it is
// not, so no orphaned timer ever fires logout logic against an
// already-anonymous state.
//
// Every timer handle is singular: re-arming always stops the previous one
// first. That is a correctness requirement — two concurrent inactivity
// timeouts would fire independently.
type Watchdog struct {
	cfg     WatchdogConfig
	gateway ports.IdentityGateway
	store   *Store
	log     zerolog.Logger
	now     func() time.Time

	// OnWarning is invoked when the session is about to expire. Assign
	// before Run.
	OnWarning func()
	// OnExpired is invoked after the watchdog terminates the session,
	// with one of the Reason constants. Assign before Run.
	OnExpired func(reason string)

	mu           sync.Mutex
	armed        bool
	lastActivity time.Time
	inactivity   *time.Timer
	warning      *time.Timer
	revalStop    chan struct{}
}

// NewWatchdog creates a disarmed watchdog. Zero config fields take the
// production defaults (15 min revalidation, 45 min inactivity, 5 min
// warning).
func NewWatchdog(cfg WatchdogConfig, gateway ports.IdentityGateway, store *Store, log zerolog.Logger) *Watchdog {
	cfg.applyDefaults()
	return &Watchdog{
		cfg:     cfg,
		gateway: gateway,
		store:   store,
		log:     log.With().Str("component", "watchdog").Logger(),
		now:     time.Now,
	}
}

// Run observes the state store and arms/disarms accordingly until ctx is
// cancelled. Timer startup on login is this component's responsibility,
// not the store's.
func (w *Watchdog) Run(ctx context.Context) {
	changes := w.store.Subscribe()
	if w.store.Authenticated() {
		w.Arm()
	}
	for {
		select {
		case <-ctx.Done():
			w.Disarm()
			return
		case change := <-changes:
			if change.Authenticated {
				w.Arm()
			} else {
				w.Disarm()
			}
		}
	}
}

// Arm starts both timer concerns, replacing any previous handles.
func (w *Watchdog) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
	w.lastActivity = w.now()
	w.armTimersLocked(w.cfg.InactivityTimeout)
	w.startRevalidationLocked()
	w.log.Debug().Msg("armed")
}

// Disarm stops every timer. Safe to call repeatedly and while disarmed.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
	w.stopTimersLocked()
	w.stopRevalidationLocked()
}

// Activity records a qualifying user-activity signal and restarts the full
// inactivity budget.
func (w *Watchdog) Activity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	w.lastActivity = w.now()
	w.armTimersLocked(w.cfg.InactivityTimeout)
}

// Acknowledge handles the user confirming the expiry warning: the full
// timeout is restored.
func (w *Watchdog) Acknowledge() {
	w.Activity()
}

// VisibilityRecovered handles the page regaining foreground visibility.
// Timers may have been suspended while backgrounded, so the elapsed
// wall-clock time since the last recorded activity decides: past the
// budget the session ends immediately, otherwise the timeout restarts
// from the remaining budget.
func (w *Watchdog) VisibilityRecovered() {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	elapsed := w.now().Sub(w.lastActivity)
	if elapsed >= w.cfg.InactivityTimeout {
		w.mu.Unlock()
		w.log.Info().Dur("inactive", elapsed).Msg("session expired while backgrounded")
		w.expire(ReasonInactivity)
		return
	}
	w.armTimersLocked(w.cfg.InactivityTimeout - elapsed)
	w.mu.Unlock()
}

// armTimersLocked replaces the inactivity and warning timers with fresh
// ones for the given remaining budget. Callers hold w.mu.
func (w *Watchdog) armTimersLocked(remaining time.Duration) {
	w.stopTimersLocked()
	if remaining > w.cfg.WarningWindow {
		w.warning = time.AfterFunc(remaining-w.cfg.WarningWindow, w.fireWarning)
	}
	w.inactivity = time.AfterFunc(remaining, func() { w.expire(ReasonInactivity) })
}

func (w *Watchdog) stopTimersLocked() {
	if w.inactivity != nil {
		w.inactivity.Stop()
		w.inactivity = nil
	}
	if w.warning != nil {
		w.warning.Stop()
		w.warning = nil
	}
}

func (w *Watchdog) fireWarning() {
	w.mu.Lock()
	armed := w.armed
	w.mu.Unlock()
	if !armed {
		return
	}
	w.log.Info().Msg("inactivity warning")
	if w.OnWarning != nil {
		w.OnWarning()
	}
}

// expire terminates the session. The logout is idempotent, so a race with
// an explicit logout is harmless.
func (w *Watchdog) expire(reason string) {
	w.mu.Lock()
	if !w.armed {
		w.mu.Unlock()
		return
	}
	w.armed = false
	w.stopTimersLocked()
	w.stopRevalidationLocked()
	w.mu.Unlock()

	w.log.Info().Str("reason", reason).Msg("terminating session")
	metrics.SessionsTerminatedTotal.WithLabelValues(reason).Inc()
	w.store.Logout(context.Background())
	if w.OnExpired != nil {
		w.OnExpired(reason)
	}
}

func (w *Watchdog) startRevalidationLocked() {
	w.stopRevalidationLocked()
	stop := make(chan struct{})
	w.revalStop = stop
	go w.revalidateLoop(stop)
}

func (w *Watchdog) stopRevalidationLocked() {
	if w.revalStop != nil {
		close(w.revalStop)
		w.revalStop = nil
	}
}

// revalidateLoop re-confirms the token every interval. A token the server
// disowns must not keep a local session alive: {valid:false} or any
// transport failure forces logout immediately, with no retry and no grace
// period.
func (w *Watchdog) revalidateLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.RevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sess, ok := w.store.Session()
			if !ok {
				return
			}
			status, err := w.gateway.ValidateToken(context.Background(), sess.Token)
			switch {
			case err != nil:
				metrics.RevalidationsTotal.WithLabelValues("transport_error").Inc()
				w.log.Warn().Err(err).Msg("revalidation failed, failing closed")
				w.expire(ReasonTransport)
				return
			case !status.Valid:
				metrics.RevalidationsTotal.WithLabelValues("invalid").Inc()
				w.log.Info().Msg("token disowned by identity service")
				w.expire(ReasonInvalidToken)
				return
			default:
				metrics.RevalidationsTotal.WithLabelValues("valid").Inc()
				w.log.Debug().Msg("token reconfirmed")
			}
		}
	}
}
