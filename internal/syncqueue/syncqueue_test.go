package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"attendsync/internal/attendance"
)

// fakeSubmitter scripts replay outcomes per activity id and records call order.
type fakeSubmitter struct {
	fail      map[int64]error
	submitted []int64
}

func (f *fakeSubmitter) Submit(_ context.Context, sub Submission) (attendance.Record, error) {
	f.submitted = append(f.submitted, sub.ActivityID)
	if err, ok := f.fail[sub.ActivityID]; ok {
		return attendance.Record{}, err
	}
	return attendance.Record{ID: fmt.Sprintf("rec-%d", sub.ActivityID), ActivityID: sub.ActivityID}, nil
}

func manualSub(activityID int64) Submission {
	return Submission{
		Method:      attendance.MethodManual,
		PersonID:    42,
		PersonKind:  attendance.PersonStudent,
		ActivityID:  activityID,
		ArrivalTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Notes:       "captured offline",
	}
}

func TestDrainReplaysInEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore(), 0)

	for _, id := range []int64{1, 2, 3} {
		if _, err := q.Enqueue(ctx, manualSub(id)); err != nil {
			t.Fatalf("Enqueue(%d): %v", id, err)
		}
	}

	sub := &fakeSubmitter{}
	stats, err := q.Drain(ctx, sub)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Replayed != 3 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 3 replayed", stats)
	}
	if len(sub.submitted) != 3 || sub.submitted[0] != 1 || sub.submitted[1] != 2 || sub.submitted[2] != 3 {
		t.Fatalf("replay order = %v, want [1 2 3]", sub.submitted)
	}
	if n, _ := q.PendingCount(ctx); n != 0 {
		t.Fatalf("queue depth after drain = %d, want 0", n)
	}
	if q.LastError() != "" {
		t.Fatalf("LastError = %q, want empty", q.LastError())
	}
}

func TestDrainTreatsDuplicateAsSuccess(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore(), 0)
	q.Enqueue(ctx, manualSub(1))

	sub := &fakeSubmitter{fail: map[int64]error{
		1: &attendance.DuplicateError{Existing: attendance.Record{ID: "already-there"}},
	}}
	stats, err := q.Drain(ctx, sub)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Duplicates != 1 {
		t.Fatalf("stats = %+v, want 1 duplicate", stats)
	}
	if n, _ := q.PendingCount(ctx); n != 0 {
		t.Fatalf("duplicate must dequeue, depth = %d", n)
	}
}

func TestDrainRetainsFailures(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore(), 0)
	q.Enqueue(ctx, manualSub(1))
	q.Enqueue(ctx, manualSub(2))
	q.Enqueue(ctx, manualSub(3))

	boom := errors.New("service error 500")
	sub := &fakeSubmitter{fail: map[int64]error{2: boom}}
	stats, err := q.Drain(ctx, sub)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if stats.Replayed != 2 || stats.Failed != 1 {
		t.Fatalf("stats = %+v, want 2 replayed 1 failed", stats)
	}

	items, _ := q.store.Items(ctx)
	if len(items) != 1 || items[0].Submission.ActivityID != 2 {
		t.Fatalf("retained = %+v, want activity 2 only", items)
	}
	if items[0].SyncAttempts != 1 || items[0].LastError == "" {
		t.Fatalf("retained item = %+v, want attempts=1 and LastError set", items[0])
	}
	if q.LastError() == "" {
		t.Fatal("queue LastError should be set after a failed replay")
	}

	// Next pass succeeds and clears the error.
	sub.fail = nil
	if _, err := q.Drain(ctx, sub); err != nil {
		t.Fatalf("second Drain: %v", err)
	}
	if n, _ := q.PendingCount(ctx); n != 0 {
		t.Fatalf("depth after retry = %d, want 0", n)
	}
	items, _ = q.store.Items(ctx)
	if len(items) != 0 {
		t.Fatalf("retained after retry = %+v, want empty", items)
	}
	if q.LastError() != "" {
		t.Fatalf("LastError after clean pass = %q, want empty", q.LastError())
	}
}

func TestEnqueueBounded(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore(), 2)

	if _, err := q.Enqueue(ctx, manualSub(1)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, manualSub(2)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, manualSub(3)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue over bound = %v, want ErrQueueFull", err)
	}
	if n, _ := q.PendingCount(ctx); n != 2 {
		t.Fatalf("depth = %d, want 2", n)
	}
}

func TestEnqueueSetsItemFields(t *testing.T) {
	ctx := context.Background()
	q := New(NewMemoryStore(), 0)

	it, err := q.Enqueue(ctx, manualSub(1))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if it.LocalID == "" || it.EnqueuedAt.IsZero() {
		t.Fatalf("item = %+v, want local id and timestamp", it)
	}
	if it.SyncAttempts != 0 || it.LastError != "" {
		t.Fatalf("fresh item = %+v, want zero attempts", it)
	}
}
