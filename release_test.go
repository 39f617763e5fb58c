package main

import (
	"context"
	"testing"
	"time"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
		VisibilityTicks: 3,
	}
}

func snapshotOf(t *testing.T, store *MemoryStore) *Snapshot {
	t.Helper()
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return snap
}

func TestReleaseQueueRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	store.Insert(owned(1, 7))
	store.FailNext(1)

	q := newReleaseQueue(7, testPolicy(), 50*time.Millisecond, false)
	q.add(1, 3, 4, 0)

	res := q.flush(ctx, store, 0)
	if len(res.failed) != 1 || len(res.written) != 0 {
		t.Fatalf("expected one failed write, got %+v", res)
	}
	// 100ms at 50ms per tick
	if res := q.flush(ctx, store, 1); len(res.written) != 0 {
		t.Errorf("retried before the backoff elapsed: %+v", res)
	}
	if res := q.flush(ctx, store, 2); len(res.written) != 1 {
		t.Fatalf("expected the retry on tick 2, got %+v", res)
	}
	rec, _ := store.Get(1)
	if !rec.Owner.IsNone() || rec.X != 3 || rec.Y != 4 {
		t.Errorf("release not stored with its position: %+v", rec)
	}

	q.settle(snapshotOf(t, store), 3)
	if q.len() != 0 {
		t.Error("visible release still queued")
	}
}

func TestReleaseQueueGivesUp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	store.Insert(owned(1, 7))
	store.FailNext(10)

	policy := testPolicy()
	policy.MaxAttempts = 2
	q := newReleaseQueue(7, policy, 50*time.Millisecond, false)
	q.add(1, 0, 0, 0)

	q.flush(ctx, store, 0)
	res := q.flush(ctx, store, 2)
	if len(res.dropped) != 1 || res.dropped[0] != 1 {
		t.Fatalf("expected block 1 dropped, got %+v", res)
	}
	if q.pending(1) {
		t.Error("dropped release still pending")
	}
}

func TestReleaseQueueRewritesInvisibleRelease(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	store.Insert(owned(1, 7))

	q := newReleaseQueue(7, testPolicy(), 50*time.Millisecond, false)
	q.add(1, 0, 0, 0)
	q.flush(ctx, store, 0)

	q.settle(snapshotOf(t, store), 2)
	if res := q.flush(ctx, store, 2); len(res.written) != 0 {
		t.Errorf("rewrote before the visibility window: %+v", res)
	}
	q.settle(snapshotOf(t, store), 3)
	if res := q.flush(ctx, store, 3); len(res.written) != 1 {
		t.Errorf("expected a second write, got %+v", res)
	}
	if store.Writes() != 2 {
		t.Errorf("expected 2 writes, got %d", store.Writes())
	}
}

func TestReadOnlyQueueNeverWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	store.Insert(owned(1, 9))

	q := newReleaseQueue(9, testPolicy(), 50*time.Millisecond, true)
	q.add(1, 0, 0, 0)
	q.flush(ctx, store, 0)
	if store.Writes() != 0 {
		t.Fatal("read-only queue wrote to the store")
	}

	q.settle(snapshotOf(t, store), 2)
	if !q.pending(1) {
		t.Error("remote release forgotten too early")
	}
	q.settle(snapshotOf(t, store), 3)
	if q.pending(1) {
		t.Error("remote release kept past the visibility window")
	}
}
