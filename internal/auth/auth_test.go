package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fruitsalade/rested/pkg/rested"
	"github.com/fruitsalade/rested/pkg/transport"
)

func signed(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signed(t, jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(exp)})

	got, err := Expiry(token)
	if err != nil {
		t.Fatalf("Expiry: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("expiry = %v, want %v", got, exp)
	}
	if Subject(token) != "alice" {
		t.Errorf("unexpected subject %q", Subject(token))
	}
}

func TestExpiryWithoutClaim(t *testing.T) {
	token := signed(t, jwt.RegisteredClaims{Subject: "alice"})
	if _, err := Expiry(token); !errors.Is(err, ErrNoExpiry) {
		t.Errorf("expected ErrNoExpiry, got %v", err)
	}
	if _, err := Expiry("not-a-jwt"); err == nil {
		t.Error("expected parse error")
	}
}

func TestTokenFileExpiry(t *testing.T) {
	past := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))})
	if !NewTokenFile(past, "http://a.test/").IsExpired(0) {
		t.Error("expected expired token")
	}

	future := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour))})
	tf := NewTokenFile(future, "http://a.test/")
	if tf.IsExpired(time.Hour) {
		t.Error("expected valid token within margin")
	}
	if !tf.IsExpired(3 * time.Hour) {
		t.Error("expected expired with large margin")
	}

	if NewTokenFile("opaque", "").IsExpired(time.Hour) {
		t.Error("opaque tokens should not expire")
	}
}

func TestSaveLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tf := &TokenFile{Token: "abc", Server: "http://a.test/", Username: "alice"}

	if err := SaveToken(path, tf); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken: %v", err)
	}
	if got.Token != "abc" || got.Username != "alice" {
		t.Errorf("unexpected token file %+v", got)
	}

	if err := DeleteToken(path); err != nil {
		t.Fatalf("DeleteToken: %v", err)
	}
	if err := DeleteToken(path); err != nil {
		t.Errorf("deleting a missing file should succeed, got %v", err)
	}
	if _, err := LoadToken(path); err == nil {
		t.Error("expected error after delete")
	}
}

func TestLogin(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/auth/token" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "alice" || req["password"] != "pass123" {
			t.Errorf("unexpected credentials %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"token":      "opaque-token",
			"expires_at": "2030-01-02T03:04:05Z",
		})
	}))
	defer ts.Close()

	c := rested.NewClient(rested.Config{BaseURLs: []string{ts.URL}},
		transport.NewHTTP(transport.Config{Logger: zap.NewNop()}), nil,
		rested.WithLogger(zap.NewNop()))

	tf, err := Login(context.Background(), c, "auth/token", "alice", "pass123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tf.Token != "opaque-token" || tf.Username != "alice" || tf.Server != ts.URL+"/" {
		t.Errorf("unexpected token file %+v", tf)
	}
	if tf.ExpiresAt.Year() != 2030 {
		t.Errorf("unexpected expiry %v", tf.ExpiresAt)
	}
}

func TestLoginFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := rested.NewClient(rested.Config{BaseURLs: []string{ts.URL}},
		transport.NewHTTP(transport.Config{Logger: zap.NewNop()}), nil,
		rested.WithLogger(zap.NewNop()))

	_, err := Login(context.Background(), c, "auth/token", "alice", "wrong")
	var se *transport.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Errorf("expected 401 status error, got %v", err)
	}
}
