package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientSignIn(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["email"] != "alice@example.com" {
			t.Errorf("unexpected email %v", body["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"localId":      "uid-1",
			"email":        "alice@example.com",
			"idToken":      "tok-1",
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	if err := c.SignIn(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/accounts:signInWithPassword" {
		t.Errorf("unexpected path %q", gotPath)
	}

	sess := <-c.Events()
	if sess == nil {
		t.Fatal("expected a signed-in event")
	}
	if sess.UID != "uid-1" || sess.Email != "alice@example.com" {
		t.Errorf("unexpected session %+v", sess.Identity)
	}

	token, err := sess.Token(context.Background())
	if err != nil {
		t.Fatalf("token source failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("expected cached token, got %q", token)
	}
}

func TestClientSignInRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"INVALID_PASSWORD"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	err := c.SignIn(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrIdentity) {
		t.Fatalf("expected ErrIdentity, got %v", err)
	}

	select {
	case <-c.Events():
		t.Fatal("no event expected on rejected sign-in")
	default:
	}
}

func TestClientSignOutEmitsNil(t *testing.T) {
	c := NewClient("http://unused", "test-key")
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess := <-c.Events(); sess != nil {
		t.Fatalf("expected nil event, got %+v", sess)
	}
}

func TestClientTokenRefresh(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Already-expired token forces the source through the refresh path.
		_ = json.NewEncoder(w).Encode(map[string]string{
			"localId":      "uid-1",
			"email":        "alice@example.com",
			"idToken":      "stale",
			"refreshToken": "refresh-1",
			"expiresIn":    "0",
		})
	}))
	defer auth.Close()

	refreshCalls := 0
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		if got := r.FormValue("refresh_token"); got != "refresh-1" {
			t.Errorf("unexpected refresh token %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      "fresh",
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
		})
	}))
	defer tokens.Close()

	c := NewClient(auth.URL, "test-key", WithTokenURL(tokens.URL))
	if err := c.SignIn(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := <-c.Events()

	token, err := sess.Token(context.Background())
	if err != nil {
		t.Fatalf("token source failed: %v", err)
	}
	if token != "fresh" {
		t.Errorf("expected refreshed token, got %q", token)
	}
	if refreshCalls != 1 {
		t.Errorf("expected one refresh call, got %d", refreshCalls)
	}

	// The refreshed token is cached for the next call.
	if token, _ := sess.Token(context.Background()); token != "fresh" {
		t.Errorf("expected cached refreshed token, got %q", token)
	}
	if refreshCalls != 1 {
		t.Errorf("refresh called again for a fresh token: %d calls", refreshCalls)
	}
}

func TestFakeProvider(t *testing.T) {
	f := NewFake()
	f.Seed("alice@example.com", "pw")

	if err := f.SignIn(context.Background(), "alice@example.com", "bad"); !errors.Is(err, ErrIdentity) {
		t.Fatalf("expected ErrIdentity for bad password, got %v", err)
	}
	if err := f.SignIn(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := <-f.Events()
	if sess == nil || sess.Email != "alice@example.com" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if err := f.Register(context.Background(), "alice@example.com", "pw"); !errors.Is(err, ErrIdentity) {
		t.Fatalf("expected ErrIdentity for duplicate register, got %v", err)
	}
}

func TestClientEmitAfterClose(t *testing.T) {
	c := NewClient("http://unused", "test-key")
	c.Close()

	// A sign-out landing after the stream is closed is dropped, not a panic.
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Fatal("expected closed event stream")
	}

	// A second Close is a no-op.
	c.Close()
}

func TestClientUnparseableExpiryCachesToken(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"localId":      "uid-1",
			"email":        "alice@example.com",
			"idToken":      "tok-1",
			"refreshToken": "refresh-1",
			"expiresIn":    "soon",
		})
	}))
	defer auth.Close()

	refreshCalls := 0
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer tokens.Close()

	c := NewClient(auth.URL, "test-key", WithTokenURL(tokens.URL))
	if err := c.SignIn(context.Background(), "alice@example.com", "pw"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sess := <-c.Events()

	// An unparseable expiry falls back to the default hour; the token is
	// served from cache without a refresh.
	token, err := sess.Token(context.Background())
	if err != nil {
		t.Fatalf("token source failed: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("expected cached token, got %q", token)
	}
	if refreshCalls != 0 {
		t.Errorf("expected no refresh calls, got %d", refreshCalls)
	}
}
