package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
	"github.com/vitatrack/auth-lifecycle/internal/infrastructure/storage/memory"
)

func testSession() domain.Session {
	return domain.Session{
		Identity: domain.Identity{ID: "user-1", FirstName: "Maria", LastName: "Lopez", Email: "maria@example.com"},
		Token:    "token-abc",
	}
}

func TestStore_LoginSuccessWritesBothTiers(t *testing.T) {
	primary := memory.NewTier()
	secondary := memory.NewTier()
	s := NewStore(primary, secondary, "sid-1", zerolog.Nop())

	if err := s.LoginSuccess(context.Background(), testSession()); err != nil {
		t.Fatalf("LoginSuccess: %v", err)
	}

	for name, tier := range map[string]*memory.Tier{"primary": primary, "secondary": secondary} {
		raw, ok, err := tier.Get(context.Background(), "auth:sid-1:identity")
		if err != nil || !ok {
			t.Fatalf("%s tier missing identity (ok=%v err=%v)", name, ok, err)
		}
		var id domain.Identity
		if err := json.Unmarshal([]byte(raw), &id); err != nil {
			t.Fatalf("%s tier identity unreadable: %v", name, err)
		}
		if id.ID != "user-1" {
			t.Fatalf("%s tier identity = %+v", name, id)
		}
		token, ok, _ := tier.Get(context.Background(), "auth:sid-1:token")
		if !ok || token != "token-abc" {
			t.Fatalf("%s tier token = %q (ok=%v)", name, token, ok)
		}
	}

	sess, ok := s.Session()
	if !ok || sess.Token != "token-abc" {
		t.Fatalf("Session() = %+v, %v", sess, ok)
	}
}

func TestStore_LoginSuccessRejectsIncompleteSession(t *testing.T) {
	s := NewStore(memory.NewTier(), memory.NewTier(), "sid-1", zerolog.Nop())

	if err := s.LoginSuccess(context.Background(), domain.Session{Token: "only-token"}); err == nil {
		t.Fatalf("expected rejection of session without identity")
	}
	if err := s.LoginSuccess(context.Background(), domain.Session{Identity: domain.Identity{ID: "u"}}); err == nil {
		t.Fatalf("expected rejection of session without token")
	}
	if s.Authenticated() {
		t.Fatalf("rejected sessions must leave the store anonymous")
	}
}

func TestStore_LogoutPurgesEverything(t *testing.T) {
	primary := memory.NewTier()
	secondary := memory.NewTier()
	s := NewStore(primary, secondary, "sid-1", zerolog.Nop())

	if err := s.LoginSuccess(context.Background(), testSession()); err != nil {
		t.Fatalf("LoginSuccess: %v", err)
	}
	if err := s.DismissProfilePrompt(context.Background()); err != nil {
		t.Fatalf("DismissProfilePrompt: %v", err)
	}

	s.Logout(context.Background())

	if s.Authenticated() {
		t.Fatalf("expected anonymous after logout")
	}
	if primary.Len() != 0 {
		t.Fatalf("primary tier not empty after logout: %d keys", primary.Len())
	}
	if secondary.Len() != 0 {
		t.Fatalf("secondary tier not empty after logout: %d keys", secondary.Len())
	}
	if s.ProfilePromptDismissed(context.Background()) {
		t.Fatalf("profile prompt flag must not survive logout")
	}

	// Idempotent: clearing an anonymous store is a no-op, not an error.
	s.Logout(context.Background())
}

func TestStore_HydratePrefersPrimary(t *testing.T) {
	primary := memory.NewTier()
	secondary := memory.NewTier()

	seed := NewStore(primary, secondary, "sid-1", zerolog.Nop())
	if err := seed.LoginSuccess(context.Background(), testSession()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Make the durable copy diverge so the winner is observable.
	_ = secondary.Set(context.Background(), "auth:sid-1:token", "stale-token")

	s := NewStore(primary, secondary, "sid-1", zerolog.Nop())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	sess, ok := s.Session()
	if !ok {
		t.Fatalf("expected hydrated session")
	}
	if sess.Token != "token-abc" {
		t.Fatalf("hydrate picked the wrong tier: token = %q", sess.Token)
	}
}

func TestStore_HydrateMigratesFromSecondary(t *testing.T) {
	primary := memory.NewTier()
	secondary := memory.NewTier()

	// Only the durable tier knows the session, as after a browser restart.
	seed := NewStore(memory.NewTier(), secondary, "sid-1", zerolog.Nop())
	if err := seed.LoginSuccess(context.Background(), testSession()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewStore(primary, secondary, "sid-1", zerolog.Nop())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if !s.Authenticated() {
		t.Fatalf("expected session hydrated from the durable tier")
	}

	// Migration backfills the preferred tier.
	token, ok, _ := primary.Get(context.Background(), "auth:sid-1:token")
	if !ok || token != "token-abc" {
		t.Fatalf("expected backfill into primary tier, got %q (ok=%v)", token, ok)
	}
}

func TestStore_HydratePurgesPartialFragment(t *testing.T) {
	primary := memory.NewTier()
	secondary := memory.NewTier()
	// Token without identity is half a session.
	_ = primary.Set(context.Background(), "auth:sid-1:token", "orphan")

	s := NewStore(primary, secondary, "sid-1", zerolog.Nop())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("a partial fragment must not hydrate a session")
	}
	if primary.Len() != 0 {
		t.Fatalf("expected fragment purged, %d keys remain", primary.Len())
	}
}

func TestStore_HydratePurgesCorruptIdentity(t *testing.T) {
	primary := memory.NewTier()
	_ = primary.Set(context.Background(), "auth:sid-1:identity", "{not json")
	_ = primary.Set(context.Background(), "auth:sid-1:token", "tok")

	s := NewStore(primary, memory.NewTier(), "sid-1", zerolog.Nop())
	if err := s.Hydrate(context.Background()); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("unreadable identity must not hydrate a session")
	}
	if primary.Len() != 0 {
		t.Fatalf("expected corrupt entry purged, %d keys remain", primary.Len())
	}
}

func TestStore_SubscribeObservesChanges(t *testing.T) {
	s := NewStore(memory.NewTier(), memory.NewTier(), "sid-1", zerolog.Nop())
	changes := s.Subscribe()

	if err := s.LoginSuccess(context.Background(), testSession()); err != nil {
		t.Fatalf("LoginSuccess: %v", err)
	}
	change := <-changes
	if !change.Authenticated || change.Session.Identity.ID != "user-1" {
		t.Fatalf("login change = %+v", change)
	}

	s.Logout(context.Background())
	change = <-changes
	if change.Authenticated {
		t.Fatalf("logout change = %+v", change)
	}

	// Logging out again publishes nothing.
	s.Logout(context.Background())
	select {
	case change := <-changes:
		t.Fatalf("unexpected change after idempotent logout: %+v", change)
	default:
	}
}

func TestStore_ProfilePromptFlag(t *testing.T) {
	s := NewStore(memory.NewTier(), memory.NewTier(), "sid-1", zerolog.Nop())

	if s.ProfilePromptDismissed(context.Background()) {
		t.Fatalf("flag must start unset")
	}
	if err := s.DismissProfilePrompt(context.Background()); err != nil {
		t.Fatalf("DismissProfilePrompt: %v", err)
	}
	if !s.ProfilePromptDismissed(context.Background()) {
		t.Fatalf("flag must read back as dismissed")
	}
}
