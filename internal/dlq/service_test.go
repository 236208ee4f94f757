package dlq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	alerts  []*AlertRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*Entry)}
}

func (f *fakeStore) Insert(_ context.Context, e *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.ID == "" {
		e.ID = "generated-id"
	}
	cp := *e
	f.entries[e.ID] = &cp

	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e

	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, filter ListFilter) ([]*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Entry
	for _, e := range f.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status Status, resolverIdentity, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	e.ResolverIdentity = resolverIdentity
	e.Notes = notes

	return nil
}

func (f *fakeStore) IncrementRetry(_ context.Context, id string, failedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.RetryCount++
	e.LastFailedAt = failedAt
	e.Status = StatusPending

	return nil
}

func (f *fakeStore) Stats(_ context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s Stats
	for _, e := range f.entries {
		switch e.Status {
		case StatusPending:
			s.Pending++
		case StatusRetrying:
			s.Retrying++
		case StatusResolved:
			s.Resolved++
		case StatusDiscarded:
			s.Discarded++
		}
	}

	return s, nil
}

func (f *fakeStore) InsertAlert(_ context.Context, a *AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alerts = append(f.alerts, a)

	return nil
}

func (f *fakeStore) ListAlerts(_ context.Context, limit int) ([]*AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.alerts, nil
}

type fakeReingester struct {
	result ReingestResult
	err    error
}

func (f *fakeReingester) Reingest(_ context.Context, _ []byte, _ string) (ReingestResult, error) {
	return f.result, f.err
}

func TestService_Route_InsertsPendingEntry(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeReingester{}, 0, nil)

	err := svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("raw"), SourceEndpoint: "/events"})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	got, err := svc.Get(context.Background(), "e1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.Status != StatusPending {
		t.Errorf("Status = %s, want %s", got.Status, StatusPending)
	}

	if got.FirstFailedAt.IsZero() {
		t.Error("expected FirstFailedAt to be set")
	}
}

func TestService_Retry_ResolvesOnSuccess(t *testing.T) {
	store := newFakeStore()
	reingest := &fakeReingester{result: ReingestResult{EventID: "evt-1", SequenceID: 5, ChainHash: "abc"}}
	svc := New(store, reingest, 0, nil)

	if err := svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("raw")}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	result, err := svc.Retry(context.Background(), "e1", "ops-alice")
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	if result.EventID != "evt-1" {
		t.Errorf("EventID = %s, want evt-1", result.EventID)
	}

	got, _ := svc.Get(context.Background(), "e1")
	if got.Status != StatusResolved {
		t.Errorf("Status = %s, want %s", got.Status, StatusResolved)
	}

	if got.ResolverIdentity != "ops-alice" {
		t.Errorf("ResolverIdentity = %s, want ops-alice", got.ResolverIdentity)
	}
}

func TestService_Retry_IncrementsCountOnFailure(t *testing.T) {
	store := newFakeStore()
	reingest := &fakeReingester{err: errors.New("downstream still unavailable")}
	svc := New(store, reingest, 0, nil)

	if err := svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("raw")}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	_, err := svc.Retry(context.Background(), "e1", "ops-alice")
	if err == nil {
		t.Fatal("expected Retry() to fail")
	}

	got, _ := svc.Get(context.Background(), "e1")
	if got.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", got.RetryCount)
	}

	if got.Status != StatusPending {
		t.Errorf("Status = %s, want %s (retryable)", got.Status, StatusPending)
	}
}

func TestService_Retry_RejectsNonPending(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeReingester{}, 0, nil)

	if err := svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("raw")}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if err := svc.Discard(context.Background(), "e1", "ops-alice", "unrecoverable"); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	_, err := svc.Retry(context.Background(), "e1", "ops-alice")
	if !errors.Is(err, ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}
}

func TestService_Discard_RecordsNotes(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeReingester{}, 0, nil)

	if err := svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("raw")}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if err := svc.Discard(context.Background(), "e1", "ops-bob", "payload is malformed beyond repair"); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	got, _ := svc.Get(context.Background(), "e1")
	if got.Status != StatusDiscarded {
		t.Errorf("Status = %s, want %s", got.Status, StatusDiscarded)
	}

	if got.Notes != "payload is malformed beyond repair" {
		t.Errorf("Notes = %q", got.Notes)
	}
}

func TestService_Stats_ThresholdExceeded(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeReingester{}, 2, nil)

	_ = svc.Route(context.Background(), &Entry{ID: "e1", Payload: []byte("a")})
	_ = svc.Route(context.Background(), &Entry{ID: "e2", Payload: []byte("b")})

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if !stats.ThresholdExceeded {
		t.Error("expected ThresholdExceeded with 2 pending entries and threshold 2")
	}
}

func TestService_Get_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := New(store, &fakeReingester{}, 0, nil)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
