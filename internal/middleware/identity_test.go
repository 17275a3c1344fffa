package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kcasl/Pedigree-App/internal/auth"
	"github.com/kcasl/Pedigree-App/internal/model"
)

type mockTokenVerifier struct {
	verifyFn func(ctx context.Context, accessToken string) (*auth.Identity, error)
}

func (m *mockTokenVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*auth.Identity, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, accessToken)
	}
	return nil, model.NewInvalidCredentialError()
}

func TestIdentityMiddleware_InjectsIdentity(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, accessToken string) (*auth.Identity, error) {
			if accessToken != "valid-token" {
				t.Errorf("accessToken = %q, want %q", accessToken, "valid-token")
			}
			return &auth.Identity{GoogleSub: "sub-1", Email: "a@example.com"}, nil
		},
	}

	var got *auth.Identity
	handler := NewIdentityMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := IdentityFromContext(r.Context())
		if err != nil {
			t.Fatalf("IdentityFromContext() error = %v", err)
		}
		got = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/pedigree/sub-1", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got == nil || got.GoogleSub != "sub-1" {
		t.Errorf("identity = %+v, want sub-1", got)
	}
}

func TestIdentityMiddleware_RejectsMissingOrMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewIdentityMiddleware(&mockTokenVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/v1/pedigree/sub-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("handler must not run without credentials")
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != model.ErrCodeInvalidCredential {
				t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeInvalidCredential)
			}
		})
	}
}

func TestIdentityMiddleware_VerificationFailure(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, accessToken string) (*auth.Identity, error) {
			return nil, model.NewVerificationFailedError()
		},
	}
	handler := NewIdentityMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/pedigree/sub-1", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestIdentityFromContext_NoIdentity(t *testing.T) {
	if _, err := IdentityFromContext(context.Background()); err == nil {
		t.Error("expected error for context without identity")
	}
}
