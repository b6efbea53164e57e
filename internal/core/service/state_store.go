package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/core/ports"
)

// Store is the single source of truth for the current identity and session
// token. Both are present or both are absent — no observer ever sees one
// without the other.
//
// Every write goes through both persistence tiers: the primary
// session-scoped tier is preferred on read, the durable tier is the
// fallback and migration source. Only the Store touches these keys.
type Store struct {
	mu      sync.Mutex
	session *domain.Session

	primary   ports.StateTier
	secondary ports.StateTier
	ns        string
	log       zerolog.Logger

	subMu sync.Mutex
	subs  []chan domain.StateChange
}

// NewStore creates a Store for one client session, keyed by ns in both
// tiers.
func NewStore(primary, secondary ports.StateTier, ns string, log zerolog.Logger) *Store {
	return &Store{
		primary:   primary,
		secondary: secondary,
		ns:        ns,
		log:       log.With().Str("component", "state_store").Str("session", ns).Logger(),
	}
}

func (s *Store) identityKey() string { return "auth:" + s.ns + ":identity" }
func (s *Store) tokenKey() string    { return "auth:" + s.ns + ":token" }
func (s *Store) promptKey() string   { return "auth:" + s.ns + ":profile_prompt_dismissed" }

// Hydrate loads any persisted session at startup. The primary tier wins;
// when only the durable tier has a session it is copied forward into the
// primary. A partial fragment (identity without token or vice versa)
// violates the atomicity invariant and is purged rather than loaded.
func (s *Store) Hydrate(ctx context.Context) error {
	sess, found, err := s.readTier(ctx, s.primary)
	if err != nil {
		return fmt.Errorf("hydrate primary: %w", err)
	}
	if !found {
		sess, found, err = s.readTier(ctx, s.secondary)
		if err != nil {
			return fmt.Errorf("hydrate secondary: %w", err)
		}
		if found {
			// Migration: backfill the preferred tier.
			if err := s.writeTier(ctx, s.primary, sess); err != nil {
				s.log.Warn().Err(err).Msg("backfill to primary tier failed")
			}
		}
	}
	if !found {
		return nil
	}

	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()
	s.publish(domain.StateChange{Authenticated: true, Session: sess})
	return nil
}

// LoginSuccess atomically installs the new session and writes it through to
// both tiers. Timer startup is not its job — the Watchdog observes the
// published change.
func (s *Store) LoginSuccess(ctx context.Context, sess domain.Session) error {
	if sess.Token == "" || sess.Identity.ID == "" {
		return domain.ErrNotAuthenticated
	}

	s.mu.Lock()
	s.session = &sess
	s.mu.Unlock()

	if err := s.writeTier(ctx, s.primary, sess); err != nil {
		s.log.Warn().Err(err).Msg("primary tier write failed")
	}
	if err := s.writeTier(ctx, s.secondary, sess); err != nil {
		s.log.Warn().Err(err).Msg("secondary tier write failed")
	}

	s.log.Info().Str("identity", sess.Identity.ID).Msg("session established")
	s.publish(domain.StateChange{Authenticated: true, Session: sess})
	return nil
}

// Logout atomically clears the session and purges both tiers plus the
// durable auxiliary flags, so no stale identity fragment survives. It is
// idempotent: clearing an already-anonymous state is a no-op, not an error.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	wasAuthenticated := s.session != nil
	s.session = nil
	s.mu.Unlock()

	keys := []string{s.identityKey(), s.tokenKey(), s.promptKey()}
	if err := s.primary.Delete(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Msg("primary tier purge failed")
	}
	if err := s.secondary.Delete(ctx, keys...); err != nil {
		s.log.Warn().Err(err).Msg("secondary tier purge failed")
	}

	if wasAuthenticated {
		s.log.Info().Msg("session cleared")
		s.publish(domain.StateChange{Authenticated: false})
	}
}

// Session returns the current session and whether one is present. The read
// is pure; no network or storage access happens here.
func (s *Store) Session() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domain.Session{}, false
	}
	return *s.session, true
}

// Authenticated reports whether an identity is currently present.
func (s *Store) Authenticated() bool {
	_, ok := s.Session()
	return ok
}

// DismissProfilePrompt records the one-time "complete your profile" prompt
// as dismissed. The flag lives in the durable tier and is purged on logout.
func (s *Store) DismissProfilePrompt(ctx context.Context) error {
	return s.secondary.Set(ctx, s.promptKey(), "1")
}

// ProfilePromptDismissed reports whether the prompt was dismissed.
func (s *Store) ProfilePromptDismissed(ctx context.Context) bool {
	_, found, err := s.secondary.Get(ctx, s.promptKey())
	if err != nil {
		s.log.Warn().Err(err).Msg("profile prompt flag read failed")
		return false
	}
	return found
}

// Subscribe returns a channel receiving every subsequent state change.
// Slow subscribers drop changes rather than block the store.
func (s *Store) Subscribe() <-chan domain.StateChange {
	ch := make(chan domain.StateChange, 8)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Store) publish(change domain.StateChange) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
			s.log.Warn().Msg("state change dropped for slow subscriber")
		}
	}
}

func (s *Store) readTier(ctx context.Context, tier ports.StateTier) (domain.Session, bool, error) {
	rawIdentity, okIdentity, err := tier.Get(ctx, s.identityKey())
	if err != nil {
		return domain.Session{}, false, err
	}
	token, okToken, err := tier.Get(ctx, s.tokenKey())
	if err != nil {
		return domain.Session{}, false, err
	}

	if okIdentity != okToken {
		// Half a session is worse than none: purge the fragment.
		s.log.Warn().Msg("partial session fragment found, purging")
		_ = tier.Delete(ctx, s.identityKey(), s.tokenKey())
		return domain.Session{}, false, nil
	}
	if !okIdentity {
		return domain.Session{}, false, nil
	}

	var identity domain.Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		s.log.Warn().Err(err).Msg("stored identity unreadable, purging")
		_ = tier.Delete(ctx, s.identityKey(), s.tokenKey())
		return domain.Session{}, false, nil
	}
	return domain.Session{Identity: identity, Token: token}, true, nil
}

func (s *Store) writeTier(ctx context.Context, tier ports.StateTier, sess domain.Session) error {
	raw, err := json.Marshal(sess.Identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := tier.Set(ctx, s.identityKey(), string(raw)); err != nil {
		return err
	}
	return tier.Set(ctx, s.tokenKey(), sess.Token)
}
