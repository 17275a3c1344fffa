package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testAudience = "test-client-id.apps.googleusercontent.com"

// testSigner はテスト用のRSA鍵ペアとJWKSサーバーを保持する。
type testSigner struct {
	key     *rsa.PrivateKey
	kid     string
	jwksURL string
}

// newTestSigner はRSA鍵を生成し、対応するJWKSを配信するサーバーを起動する。
func newTestSigner(t *testing.T) *testSigner {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}

	kid := "test-key-1"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pub := key.Public().(*rsa.PublicKey)
		jwks := map[string]any{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": kid,
					"alg": "RS256",
					"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	return &testSigner{key: key, kid: kid, jwksURL: server.URL}
}

// sign は指定claimでRS256署名済みトークンを生成する。
func (s *testSigner) sign(t *testing.T, claims jwt.Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.kid

	signed, err := token.SignedString(s.key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() idTokenClaims {
	now := time.Now()
	return idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Subject:   "google-sub-999",
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:   "idtoken@gmail.com",
		Name:    "ID Token User",
		Picture: "https://example.com/p.jpg",
	}
}

func TestIDTokenVerifier_Verify_Success(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  signer.jwksURL,
	})

	raw := signer.sign(t, validClaims())

	identity, err := verifier.Verify(context.Background(), raw)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if identity.GoogleSub != "google-sub-999" {
		t.Errorf("GoogleSub = %q, want %q", identity.GoogleSub, "google-sub-999")
	}
	if identity.Email != "idtoken@gmail.com" {
		t.Errorf("Email = %q, want %q", identity.Email, "idtoken@gmail.com")
	}
	if identity.Name != "ID Token User" {
		t.Errorf("Name = %q, want %q", identity.Name, "ID Token User")
	}
}

func TestIDTokenVerifier_Verify_WrongAudienceRejected(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  signer.jwksURL,
	})

	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"some-other-client"}
	raw := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error for wrong audience")
	}
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("error = %v, want ErrInvalidCredential", err)
	}
}

func TestIDTokenVerifier_Verify_ExpiredTokenRejected(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  signer.jwksURL,
	})

	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	raw := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("error = %v, want ErrInvalidCredential", err)
	}
}

func TestIDTokenVerifier_Verify_WrongIssuerRejected(t *testing.T) {
	signer := newTestSigner(t)
	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  signer.jwksURL,
	})

	claims := validClaims()
	claims.Issuer = "https://evil.example.com"
	raw := signer.sign(t, claims)

	_, err := verifier.Verify(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error for wrong issuer")
	}
	if !errors.Is(err, ErrInvalidCredential) {
		t.Errorf("error = %v, want ErrInvalidCredential", err)
	}
}

func TestIDTokenVerifier_Verify_TamperedSignatureRejected(t *testing.T) {
	signer := newTestSigner(t)
	other := newTestSigner(t)
	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  signer.jwksURL,
	})

	// 別鍵で署名されたトークンはJWKSの鍵では検証できない
	raw := other.sign(t, validClaims())

	_, err := verifier.Verify(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error for token signed with unknown key")
	}
}

func TestIDTokenVerifier_Verify_JWKSUnavailableIsVerificationFailed(t *testing.T) {
	signer := newTestSigner(t)

	// JWKSサーバーが落ちている状況
	deadServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := deadServer.URL
	deadServer.Close()

	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  deadURL,
	})

	raw := signer.sign(t, validClaims())

	_, err := verifier.Verify(context.Background(), raw)
	if err == nil {
		t.Fatal("expected error when JWKS is unreachable")
	}
	if !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("error = %v, want ErrVerificationFailed", err)
	}
}

func TestIDTokenVerifier_CachesKeys(t *testing.T) {
	fetches := 0
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		pub := key.Public().(*rsa.PublicKey)
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "cache-key",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	}))
	defer server.Close()

	verifier := NewIDTokenVerifier(IDTokenConfig{
		Audience: testAudience,
		JWKSURL:  server.URL,
	})

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims())
	token.Header["kid"] = "cache-key"
	raw, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := verifier.Verify(context.Background(), raw); err != nil {
			t.Fatalf("Verify() #%d error = %v", i, err)
		}
	}

	if fetches != 1 {
		t.Errorf("jwks fetches = %d, want 1 (keys should be cached)", fetches)
	}
}
