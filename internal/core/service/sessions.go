package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/metrics"
	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

// Client bundles everything owned by one browser session: the auth state
// store, the watchdog constructed for it, and the two OTP flows.
type Client struct {
	ID       string
	Store    *Store
	Watchdog *Watchdog

	login        *Flow
	registration *Flow
	cancel       context.CancelFunc
}

// Flow returns the flow for the given purpose.
func (c *Client) Flow(purpose domain.FlowPurpose) (*Flow, error) {
	switch purpose {
	case domain.PurposeLogin:
		return c.login, nil
	case domain.PurposeRegistration:
		return c.registration, nil
	default:
		return nil, domain.ErrUnknownPurpose
	}
}

// SwitchTo returns the flow for purpose after fully resetting the flow
// being left. Stale cross-flow state (a code or cooldown carried over from
// the other tab) is a defect class this guards against explicitly.
func (c *Client) SwitchTo(purpose domain.FlowPurpose) (*Flow, error) {
	flow, err := c.Flow(purpose)
	if err != nil {
		return nil, err
	}
	if purpose == domain.PurposeLogin {
		c.registration.Reset()
	} else {
		c.login.Reset()
	}
	return flow, nil
}

// Logout revokes the session remotely (best-effort) and clears local state
// unconditionally. Both flows reset so reopening the auth modal starts
// clean.
func (c *Client) Logout(ctx context.Context, gateway ports.IdentityGateway) {
	if sess, ok := c.Store.Session(); ok {
		// Best-effort only: local logout proceeds regardless of outcome.
		_ = gateway.RevokeSession(ctx, sess.Identity.ID)
	}
	c.Store.Logout(ctx)
	c.login.Reset()
	c.registration.Reset()
}

// Sessions is the registry of per-client lifecycles. One Client is
// constructed per active session id and torn down when it goes away.
type Sessions struct {
	gateway   ports.IdentityGateway
	primary   ports.StateTier
	secondary ports.StateTier
	wcfg      WatchdogConfig
	log       zerolog.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewSessions builds an empty registry.
func NewSessions(gateway ports.IdentityGateway, primary, secondary ports.StateTier, wcfg WatchdogConfig, log zerolog.Logger) *Sessions {
	return &Sessions{
		gateway:   gateway,
		primary:   primary,
		secondary: secondary,
		wcfg:      wcfg,
		log:       log,
		clients:   make(map[string]*Client),
	}
}

// Get returns the Client for sid, constructing and hydrating it on first
// sight. The watchdog starts observing the store immediately, so a
// hydrated session gets its timers without any extra wiring.
func (s *Sessions) Get(ctx context.Context, sid string) *Client {
	s.mu.Lock()
	if c, ok := s.clients[sid]; ok {
		s.mu.Unlock()
		return c
	}
	s.mu.Unlock()

	store := NewStore(s.primary, s.secondary, sid, s.log)
	wd := NewWatchdog(s.wcfg, s.gateway, store, s.log)
	c := &Client{
		ID:           sid,
		Store:        store,
		Watchdog:     wd,
		login:        NewFlow(domain.PurposeLogin, s.gateway, store, s.log),
		registration: NewFlow(domain.PurposeRegistration, s.gateway, store, s.log),
	}

	wdCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go wd.Run(wdCtx)

	if err := store.Hydrate(ctx); err != nil {
		s.log.Warn().Err(err).Str("session", sid).Msg("hydration failed, starting anonymous")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.clients[sid]; ok {
		// Lost the construction race; discard ours.
		cancel()
		return existing
	}
	s.clients[sid] = c
	metrics.ActiveClientSessions.Inc()
	return c
}

// Peek returns the Client for sid without constructing one.
func (s *Sessions) Peek(sid string) (*Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[sid]
	return c, ok
}

// Remove tears down the Client for sid: watchdog cancelled, timers
// cleared, registry entry dropped.
func (s *Sessions) Remove(sid string) {
	s.mu.Lock()
	c, ok := s.clients[sid]
	if ok {
		delete(s.clients, sid)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	c.cancel()
	c.Watchdog.Disarm()
	metrics.ActiveClientSessions.Dec()
}

// Close tears down every client. Used on shutdown.
func (s *Sessions) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[string]*Client)
	s.mu.Unlock()
	for _, c := range clients {
		c.cancel()
		c.Watchdog.Disarm()
		metrics.ActiveClientSessions.Dec()
	}
}
