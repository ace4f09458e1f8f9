package mutation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type recordedWrite struct {
	ref   EntityRef
	value interface{}
}

// fakeStore records applies and can be told to fail or block.
type fakeStore struct {
	mu      sync.Mutex
	writes  []recordedWrite
	failure error
	gate    chan struct{}
	applied chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{applied: make(chan struct{}, 64)}
}

func (s *fakeStore) Apply(_ context.Context, ref EntityRef, value interface{}) error {
	if s.gate != nil {
		<-s.gate
	}

	s.mu.Lock()
	err := s.failure
	s.failure = nil
	if err == nil {
		s.writes = append(s.writes, recordedWrite{ref: ref, value: value})
	}
	s.mu.Unlock()

	s.applied <- struct{}{}
	return err
}

func (s *fakeStore) recorded() []recordedWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedWrite, len(s.writes))
	copy(out, s.writes)
	return out
}

func (s *fakeStore) failNext(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
	retries   []func()
	notified  chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notified: make(chan struct{}, 64)}
}

func (n *fakeNotifier) Success(message string) {
	n.mu.Lock()
	n.successes = append(n.successes, message)
	n.mu.Unlock()
	n.notified <- struct{}{}
}

func (n *fakeNotifier) Error(message string, retry func()) {
	n.mu.Lock()
	n.errors = append(n.errors, message)
	n.retries = append(n.retries, retry)
	n.mu.Unlock()
	n.notified <- struct{}{}
}

func (n *fakeNotifier) lastRetry() func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.retries) == 0 {
		return nil
	}
	return n.retries[len(n.retries)-1]
}

func waitSignal(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func testRef(field string) EntityRef {
	return EntityRef{Table: "releases", ID: uuid.New(), Field: field}
}

func TestWriterCoalescesRapidEdits(t *testing.T) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	w := NewWriter(store, notifier, 30*time.Millisecond)
	defer w.Close()

	ref := testRef("global_direction")
	w.Submit(ref, "draft one")
	w.Submit(ref, "draft two")
	w.Submit(ref, "draft three")

	waitSignal(t, store.applied, "debounced write")
	waitSignal(t, notifier.notified, "success notification")

	writes := store.recorded()
	if len(writes) != 1 {
		t.Fatalf("expected one coalesced write, got %d", len(writes))
	}
	if writes[0].value != "draft three" {
		t.Fatalf("expected latest value, got %v", writes[0].value)
	}
}

func TestWriterQueuesLatestBehindInFlight(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	notifier := newFakeNotifier()
	w := NewWriter(store, notifier, 5*time.Millisecond)
	defer w.Close()

	ref := testRef("notes")
	w.Submit(ref, "first")
	time.Sleep(20 * time.Millisecond) // let the first write reach the store

	// These arrive while the first write is blocked; only the newest may land.
	w.Submit(ref, "second")
	w.Submit(ref, "third")
	time.Sleep(20 * time.Millisecond)

	store.gate <- struct{}{}
	waitSignal(t, store.applied, "first write")
	store.gate <- struct{}{}
	waitSignal(t, store.applied, "pending write")

	writes := store.recorded()
	if len(writes) != 2 {
		t.Fatalf("expected two writes, got %d", len(writes))
	}
	if writes[0].value != "first" || writes[1].value != "third" {
		t.Fatalf("expected [first third], got %+v", writes)
	}
}

func TestWriterFailureOffersRetryOnce(t *testing.T) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	w := NewWriter(store, notifier, 5*time.Millisecond)
	defer w.Close()

	store.failNext(errors.New("connection reset"))

	ref := testRef("fee_total")
	w.Submit(ref, 1200)

	waitSignal(t, store.applied, "failed write")
	waitSignal(t, notifier.notified, "error notification")

	if len(store.recorded()) != 0 {
		t.Fatal("failed write must not be recorded")
	}

	retry := notifier.lastRetry()
	if retry == nil {
		t.Fatal("expected a retry closure")
	}

	// No write happens until the user explicitly retries.
	time.Sleep(30 * time.Millisecond)
	if len(store.recorded()) != 0 {
		t.Fatal("writer must not auto-retry")
	}

	retry()
	waitSignal(t, store.applied, "retried write")
	waitSignal(t, notifier.notified, "success notification")

	writes := store.recorded()
	if len(writes) != 1 {
		t.Fatalf("expected one successful write after retry, got %d", len(writes))
	}
	if writes[0].value != 1200 {
		t.Fatalf("retry must resubmit the same value, got %v", writes[0].value)
	}
}

func TestWriterCloseDropsDebouncingEdits(t *testing.T) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	w := NewWriter(store, notifier, 50*time.Millisecond)

	w.Submit(testRef("title"), "never lands")
	w.Close()

	time.Sleep(100 * time.Millisecond)
	if len(store.recorded()) != 0 {
		t.Fatal("edits still debouncing at Close must be dropped")
	}
}

func TestWriterFieldsAreIndependent(t *testing.T) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	w := NewWriter(store, notifier, 5*time.Millisecond)
	defer w.Close()

	w.Submit(testRef("title"), "Night Drive")
	w.Submit(testRef("notes"), "master by friday")

	waitSignal(t, store.applied, "first field")
	waitSignal(t, store.applied, "second field")

	writes := store.recorded()
	if len(writes) != 2 {
		t.Fatalf("expected both fields written, got %d", len(writes))
	}
}
