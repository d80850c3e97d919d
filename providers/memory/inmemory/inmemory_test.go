package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leofalp/devchat/providers/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetOrCreate_ReturnsSameSession(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	first := store.GetOrCreate(ctx, "c1")
	if first.ID != "c1-1714557600000" || first.ContainerID != "c1" || first.Len() != 0 {
		t.Fatalf("unexpected session %+v", first)
	}

	clock.Advance(time.Second)
	if again := store.GetOrCreate(ctx, "c1"); again != first {
		t.Error("expected the existing session to be returned")
	}
	if store.Len(ctx) != 1 {
		t.Errorf("expected 1 session, got %d", store.Len(ctx))
	}
}

func TestGetOrCreate_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := New()

	const workers = 32
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.GetOrCreate(ctx, "c1").ID
		}(i)
	}
	wg.Wait()

	for _, id := range results {
		if id != results[0] {
			t.Fatalf("concurrent GetOrCreate returned different sessions: %v", results)
		}
	}
	if store.Len(ctx) != 1 {
		t.Errorf("expected exactly one session, got %d", store.Len(ctx))
	}
}

func TestCreate_ReplacesContainerSession(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	old := store.GetOrCreate(ctx, "c1")
	fresh := store.Create(ctx, "c1")

	if fresh == old {
		t.Fatal("expected a new session")
	}
	if fresh.ID != "c1-1714557600001" {
		t.Errorf("expected colliding id to be bumped by 1ms, got %q", fresh.ID)
	}
	if _, ok := store.Get(ctx, old.ID); ok {
		t.Error("expected replaced session to be dropped from the id index")
	}
	if store.GetOrCreate(ctx, "c1") != fresh {
		t.Error("expected GetOrCreate to return the replacement")
	}
	if store.Len(ctx) != 1 {
		t.Errorf("expected 1 session, got %d", store.Len(ctx))
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	store := New()

	session := store.Create(ctx, "c1")
	got, ok := store.Get(ctx, session.ID)
	if !ok || got != session {
		t.Fatal("expected lookup by id to succeed")
	}
	if _, ok := store.Get(ctx, "missing"); ok {
		t.Error("expected unknown id to miss")
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := New()

	session := store.GetOrCreate(ctx, "c1")
	if !store.Delete(ctx, "c1") {
		t.Fatal("expected delete to report an existing session")
	}
	if store.Delete(ctx, "c1") {
		t.Error("second delete should report false")
	}
	if _, ok := store.Get(ctx, session.ID); ok {
		t.Error("deleted session must not be reachable by id")
	}
}

func TestMaxSessions_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithMaxSessions(2), WithClock(clock.Now))

	a := store.GetOrCreate(ctx, "a")
	clock.Advance(time.Millisecond)
	store.GetOrCreate(ctx, "b")
	clock.Advance(time.Millisecond)
	store.GetOrCreate(ctx, "a") // a becomes most recent
	clock.Advance(time.Millisecond)
	store.GetOrCreate(ctx, "c") // evicts b

	if store.Len(ctx) != 2 {
		t.Fatalf("expected 2 sessions, got %d", store.Len(ctx))
	}
	if store.GetOrCreate(ctx, "a") != a {
		t.Error("a should have survived")
	}
	if !store.Delete(ctx, "c") {
		t.Error("c should be present")
	}
	if store.Delete(ctx, "b") {
		t.Error("b should have been evicted")
	}
}

func TestIdleTTL_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithIdleTTL(time.Minute), WithClock(clock.Now))

	old := store.GetOrCreate(ctx, "c1")
	store.GetOrCreate(ctx, "c2")

	clock.Advance(30 * time.Second)
	store.GetOrCreate(ctx, "c2") // keeps c2 alive

	clock.Advance(45 * time.Second)
	if _, ok := store.Get(ctx, old.ID); ok {
		t.Error("c1 should have expired")
	}
	if store.Len(ctx) != 1 {
		t.Errorf("expected only c2 left, got %d", store.Len(ctx))
	}

	if fresh := store.GetOrCreate(ctx, "c1"); fresh == old || fresh.Len() != 0 {
		t.Error("expected a fresh session after expiry")
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithIdleTTL(time.Minute), WithClock(clock.Now))

	store.GetOrCreate(ctx, "a")
	store.GetOrCreate(ctx, "b")
	clock.Advance(2 * time.Minute)

	if n := store.Sweep(ctx); n != 2 {
		t.Errorf("expected 2 evictions, got %d", n)
	}
	if n := store.Sweep(ctx); n != 0 {
		t.Errorf("expected nothing left to evict, got %d", n)
	}
}

func TestSweep_DisabledWithoutTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithClock(clock.Now))

	store.GetOrCreate(ctx, "a")
	clock.Advance(24 * time.Hour)

	if n := store.Sweep(ctx); n != 0 {
		t.Errorf("expected no eviction without TTL, got %d", n)
	}
}

func TestLookup_DoesNotCreate(t *testing.T) {
	ctx := context.Background()
	store := New(WithClock(newFakeClock().Now))

	if _, ok := store.Lookup(ctx, "c1"); ok {
		t.Fatal("expected no session before GetOrCreate")
	}
	if store.Len(ctx) != 0 {
		t.Fatalf("Lookup must not create sessions, have %d", store.Len(ctx))
	}

	created := store.GetOrCreate(ctx, "c1")
	found, ok := store.Lookup(ctx, "c1")
	if !ok || found != created {
		t.Fatalf("expected Lookup to return the created session")
	}
}

func TestIdleTTL_SkipsSessionsInTurn(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithIdleTTL(time.Minute), WithClock(clock.Now))

	busy := store.GetOrCreate(ctx, "c1")
	busy.BeginTurn()
	clock.Advance(2 * time.Minute)

	if n := store.Sweep(ctx); n != 0 {
		t.Fatalf("a session in a turn must not expire, evicted %d", n)
	}

	busy.Append(memory.NewUserMessage("hi", nil, clock.Now()))
	busy.Append(memory.NewAssistantMessage("hello", clock.Now()))
	busy.Touch(clock.Now())
	busy.EndTurn()

	// The finished turn counts as activity even though the store was not accessed.
	clock.Advance(30 * time.Second)
	if n := store.Sweep(ctx); n != 0 {
		t.Fatalf("recently finished turn must keep the session, evicted %d", n)
	}
	if got := store.GetOrCreate(ctx, "c1"); got != busy || got.Len() != 2 {
		t.Fatalf("expected the same session with 2 messages, got %d messages", got.Len())
	}

	clock.Advance(2 * time.Minute)
	if n := store.Sweep(ctx); n != 1 {
		t.Errorf("expected idle session to expire, evicted %d", n)
	}
}

func TestMaxSessions_SkipsSessionsInTurn(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := New(WithMaxSessions(1), WithClock(clock.Now))

	first := store.GetOrCreate(ctx, "c1")
	first.BeginTurn()

	clock.Advance(time.Millisecond)
	second := store.GetOrCreate(ctx, "c2")
	if store.Len(ctx) != 2 {
		t.Fatalf("busy session must survive over capacity, have %d sessions", store.Len(ctx))
	}
	if got, ok := store.Lookup(ctx, "c1"); !ok || got != first {
		t.Fatal("expected c1 to be kept while its turn runs")
	}

	first.EndTurn()
	clock.Advance(time.Millisecond)
	store.GetOrCreate(ctx, "c3")

	if store.Len(ctx) != 1 {
		t.Fatalf("expected capacity to be restored, have %d sessions", store.Len(ctx))
	}
	if _, ok := store.Get(ctx, second.ID); ok {
		t.Error("c2 should have been evicted")
	}
	if _, ok := store.Get(ctx, first.ID); ok {
		t.Error("c1 should have been evicted once idle")
	}
}
