package authstub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeStore is an in-memory Store keyed by plaintext secret, enough to
// exercise Middleware without a database.
type fakeStore struct {
	bySecret map[string]*Credential
}

func newFakeStore() *fakeStore {
	return &fakeStore{bySecret: make(map[string]*Credential)}
}

func (s *fakeStore) add(secret string, cred *Credential) {
	s.bySecret[secret] = cred
}

func (s *fakeStore) FindBySecret(_ context.Context, secret string) (*Credential, bool) {
	cred, ok := s.bySecret[secret]

	return cred, ok
}

func (s *fakeStore) Add(_ context.Context, _ *Credential) error { return nil }

func (s *fakeStore) Revoke(_ context.Context, _ string) error { return nil }

func (s *fakeStore) ListByCarrier(_ context.Context, _ string) ([]*Credential, error) {
	return nil, nil
}

func newTestSecret(t *testing.T) string {
	t.Helper()

	secret, err := GenerateCredential("carrier-1")
	if err != nil {
		t.Fatalf("GenerateCredential: %v", err)
	}

	return secret
}

func TestMiddleware_ValidCredentialAttachesActor(t *testing.T) {
	secret := newTestSecret(t)

	store := newFakeStore()
	store.add(secret, &Credential{
		ID:          "cred-1",
		CarrierID:   "carrier-1",
		Name:        "device-1",
		Permissions: []string{"events:write"},
		Active:      true,
	})

	var gotActor Actor
	var sawActor bool

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, sawActor = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Api-Key", secret)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if !sawActor {
		t.Fatal("expected actor to be attached to request context")
	}

	if gotActor.CarrierID != "carrier-1" || !gotActor.HasPermission("events:write") {
		t.Errorf("unexpected actor: %+v", gotActor)
	}
}

func TestMiddleware_MissingCredentialRejected(t *testing.T) {
	store := newFakeStore()

	called := false
	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler should not be called without a credential")
	}

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected RFC7807 content type, got %q", ct)
	}
}

func TestMiddleware_UnknownCredentialRejected(t *testing.T) {
	secret := newTestSecret(t)
	store := newFakeStore()

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for an unknown credential")
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Api-Key", secret)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_RevokedCredentialForbidden(t *testing.T) {
	secret := newTestSecret(t)
	store := newFakeStore()
	store.add(secret, &Credential{ID: "cred-1", CarrierID: "carrier-1", Active: false})

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for a revoked credential")
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Api-Key", secret)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestMiddleware_ExpiredCredentialRejected(t *testing.T) {
	secret := newTestSecret(t)
	past := time.Now().Add(-time.Hour)

	store := newFakeStore()
	store.add(secret, &Credential{ID: "cred-1", CarrierID: "carrier-1", Active: true, ExpiresAt: &past})

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for an expired credential")
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("X-Api-Key", secret)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestMiddleware_AuthorizationHeaderFallback(t *testing.T) {
	secret := newTestSecret(t)
	store := newFakeStore()
	store.add(secret, &Credential{ID: "cred-1", CarrierID: "carrier-1", Active: true})

	handler := Middleware(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
