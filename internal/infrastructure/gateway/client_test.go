package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vitatrack/auth-lifecycle/internal/core/domain"
)

func newTestClient(ts *httptest.Server) *Client {
	return NewClient(ts.URL, 2*time.Second, zerolog.Nop())
}

func TestClient_RequestOTPPaths(t *testing.T) {
	tests := []struct {
		purpose  domain.FlowPurpose
		wantPath string
	}{
		{domain.PurposeLogin, "/login-request-otp"},
		{domain.PurposeRegistration, "/register"},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			var gotPath string
			var gotBody map[string]string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_ = json.NewDecoder(r.Body).Decode(&gotBody)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "OTP sent", "debug_otp": "123456"})
			}))
			defer ts.Close()

			issued, err := newTestClient(ts).RequestOTP(context.Background(), "a@b.com", tt.purpose, "proof")
			if err != nil {
				t.Fatalf("RequestOTP: %v", err)
			}
			if gotPath != tt.wantPath {
				t.Fatalf("path = %q, want %q", gotPath, tt.wantPath)
			}
			if gotBody["email"] != "a@b.com" || gotBody["captcha_proof"] != "proof" {
				t.Fatalf("body = %v", gotBody)
			}
			if !issued.Issued || issued.DebugOTP != "123456" {
				t.Fatalf("issued = %+v", issued)
			}
		})
	}
}

func TestClient_VerifyOTPLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login-verify-otp" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "ok",
			"user":    map[string]string{"id": "user-1", "first_name": "Maria", "email": "a@b.com"},
			"token":   "tok-1",
		})
	}))
	defer ts.Close()

	sess, err := newTestClient(ts).VerifyOTP(context.Background(), "a@b.com", "123456", domain.PurposeLogin, domain.ProfileFields{})
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if sess.Token != "tok-1" || sess.Identity.ID != "user-1" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestClient_VerifyOTPRegistrationCarriesProfile(t *testing.T) {
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-otp" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":  map[string]string{"id": "user-2"},
			"token": "tok-2",
		})
	}))
	defer ts.Close()

	profile := domain.ProfileFields{FirstName: "Maria", LastName: "Lopez", Gender: "F", Phone: "5512345678"}
	if _, err := newTestClient(ts).VerifyOTP(context.Background(), "a@b.com", "123456", domain.PurposeRegistration, profile); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if gotBody["first_name"] != "Maria" || gotBody["phone"] != "5512345678" {
		t.Fatalf("profile fields missing from payload: %v", gotBody)
	}
}

func TestClient_ClassifiesLockout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "Account temporarily locked due to too many failed attempts. Try again in 12 minutes.",
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts).VerifyOTP(context.Background(), "a@b.com", "000000", domain.PurposeLogin, domain.ProfileFields{})
	var locked *domain.LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.Duration != 12*time.Minute {
		t.Fatalf("duration = %v, want 12m", locked.Duration)
	}
	if locked.RemainingMinutes() != 12 {
		t.Fatalf("remaining minutes = %d", locked.RemainingMinutes())
	}
}

func TestClient_LockoutDefaultsWhenUnparseable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Account locked."})
	}))
	defer ts.Close()

	_, err := newTestClient(ts).VerifyOTP(context.Background(), "a@b.com", "000000", domain.PurposeLogin, domain.ProfileFields{})
	var locked *domain.LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if locked.Duration != domain.DefaultLockoutDuration {
		t.Fatalf("duration = %v, want default %v", locked.Duration, domain.DefaultLockoutDuration)
	}
}

func TestClient_ClassifiesRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Too many login attempts.", "attempts": 6})
	}))
	defer ts.Close()

	_, err := newTestClient(ts).RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	var limited *domain.RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if limited.Attempts != 6 {
		t.Fatalf("attempts = %d, want 6", limited.Attempts)
	}
	if limited.Error() != "Too many login attempts." {
		t.Fatalf("message = %q", limited.Error())
	}
}

func TestClient_ClassifiesBadRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid OTP"})
	}))
	defer ts.Close()

	c := newTestClient(ts)

	// A 400 on verification means the code was rejected.
	_, err := c.VerifyOTP(context.Background(), "a@b.com", "000000", domain.PurposeLogin, domain.ProfileFields{})
	var invalid *domain.InvalidCodeError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCodeError, got %v", err)
	}
	if invalid.Error() != "Invalid OTP" {
		t.Fatalf("message = %q", invalid.Error())
	}

	// A 400 anywhere else is a request problem.
	_, err = c.RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestClient_UnexpectedStatusIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	var transport *domain.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClient_NetworkFailureIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening

	_, err := newTestClient(ts).RequestOTP(context.Background(), "a@b.com", domain.PurposeLogin, "proof")
	var transport *domain.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestClient_ValidateToken(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		var gotAuth string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]string{"id": "user-1"}})
		}))
		defer ts.Close()

		status, err := newTestClient(ts).ValidateToken(context.Background(), "tok-1")
		if err != nil {
			t.Fatalf("ValidateToken: %v", err)
		}
		if !status.Valid || status.Identity.ID != "user-1" {
			t.Fatalf("status = %+v", status)
		}
		if gotAuth != "Bearer tok-1" {
			t.Fatalf("authorization = %q", gotAuth)
		}
	})

	t.Run("rejected token is not an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer ts.Close()

		status, err := newTestClient(ts).ValidateToken(context.Background(), "expired")
		if err != nil {
			t.Fatalf("rejected token must not be an error, got %v", err)
		}
		if status.Valid {
			t.Fatalf("expected invalid status")
		}
	})

	t.Run("network failure is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close()

		_, err := newTestClient(ts).ValidateToken(context.Background(), "tok-1")
		var transport *domain.TransportError
		if !errors.As(err, &transport) {
			t.Fatalf("expected TransportError, got %v", err)
		}
	})
}

func TestClient_RevokeSession(t *testing.T) {
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logout" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "bye"})
	}))
	defer ts.Close()

	if err := newTestClient(ts).RevokeSession(context.Background(), "user-1"); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if gotBody["identity_id"] != "user-1" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestClient_ResendOTPPaths(t *testing.T) {
	tests := []struct {
		purpose  domain.FlowPurpose
		wantPath string
	}{
		{domain.PurposeLogin, "/resend-login-otp"},
		{domain.PurposeRegistration, "/resend-registration-otp"},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			var gotPath string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "OTP resent"})
			}))
			defer ts.Close()

			if _, err := newTestClient(ts).ResendOTP(context.Background(), "a@b.com", tt.purpose); err != nil {
				t.Fatalf("ResendOTP: %v", err)
			}
			if gotPath != tt.wantPath {
				t.Fatalf("path = %q, want %q", gotPath, tt.wantPath)
			}
		})
	}
}
