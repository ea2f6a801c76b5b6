package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/worshipd/worshipd/internal/apperr"
	"github.com/worshipd/worshipd/internal/config"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GoogleProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider := NewGoogleProvider(config.IdentityConfig{APIKey: "test-key", Endpoint: server.URL})
	if provider == nil {
		t.Fatalf("provider is nil despite configured key")
	}
	return provider
}

func TestNewGoogleProviderDisabledWithoutKey(t *testing.T) {
	if p := NewGoogleProvider(config.IdentityConfig{}); p != nil {
		t.Fatalf("expected nil provider without api key")
	}
}

func TestSignInSuccess(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "accounts:signInWithPassword") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in %s", r.URL.RawQuery)
		}
		var req tokenRequest
		if errDecode := json.NewDecoder(r.Body).Decode(&req); errDecode != nil {
			t.Errorf("decode request: %v", errDecode)
		}
		if req.Email != "a@example.com" || req.Password != "secret" || !req.ReturnSecureToken {
			t.Errorf("unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"idToken": "token-123",
			"localId": "subject-1",
			"email":   "a@example.com",
		})
	})

	account, errSignIn := provider.SignIn(context.Background(), "a@example.com", "secret")
	if errSignIn != nil {
		t.Fatalf("sign in: %v", errSignIn)
	}
	if account.SubjectID != "subject-1" || account.IDToken != "token-123" || account.Email != "a@example.com" {
		t.Fatalf("unexpected account: %+v", account)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "INVALID_LOGIN_CREDENTIALS"},
		})
	})

	_, errSignIn := provider.SignIn(context.Background(), "a@example.com", "wrong")
	if !apperr.IsKind(errSignIn, apperr.KindUnauthorized) {
		t.Fatalf("bad credentials = %v, want unauthorized", errSignIn)
	}
}

func TestSignUpEmailTaken(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "accounts:signUp") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "EMAIL_EXISTS"},
		})
	})

	_, errSignUp := provider.SignUp(context.Background(), "a@example.com", "secret")
	if !apperr.IsKind(errSignUp, apperr.KindConflict) {
		t.Fatalf("taken email = %v, want conflict", errSignUp)
	}
}

func TestProviderFailuresAreUpstream(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if _, errSignIn := provider.SignIn(context.Background(), "a@example.com", "x"); !apperr.IsKind(errSignIn, apperr.KindUpstream) {
		t.Fatalf("server error = %v, want upstream", errSignIn)
	}

	malformed := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})
	if _, errSignIn := malformed.SignIn(context.Background(), "a@example.com", "x"); !apperr.IsKind(errSignIn, apperr.KindUpstream) {
		t.Fatalf("malformed body = %v, want upstream", errSignIn)
	}
}
