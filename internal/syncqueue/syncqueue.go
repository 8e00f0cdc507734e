// Package syncqueue holds attendance submissions captured without
// connectivity and replays them once the network is back.
package syncqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendsync/internal/attendance"
)

// DefaultMax bounds the queue when no limit is configured.
const DefaultMax = 100

// ErrQueueFull is returned when the bounded queue cannot take another item.
// Data is never dropped silently; the operator has to act.
var ErrQueueFull = errors.New("offline queue full")

// Submission is the original capture request, kept verbatim for replay.
type Submission struct {
	Method      attendance.Method     `json:"method"`
	Token       string                `json:"token,omitempty"`
	PersonID    int64                 `json:"person_id,omitempty"`
	PersonKind  attendance.PersonKind `json:"person_kind,omitempty"`
	ActivityID  int64                 `json:"activity_id"`
	ArrivalTime time.Time             `json:"arrival_time"`
	Notes       string                `json:"notes,omitempty"`
}

// Item is one queued submission.
type Item struct {
	LocalID      string     `json:"local_id"`
	Submission   Submission `json:"submission"`
	EnqueuedAt   time.Time  `json:"enqueued_at"`
	SyncAttempts int        `json:"sync_attempts"`
	LastError    string     `json:"last_error,omitempty"`
}

// Submitter replays one submission against the authoritative service.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (attendance.Record, error)
}

// Store is the queue's persistence backend.
type Store interface {
	Append(ctx context.Context, it Item) error
	Items(ctx context.Context) ([]Item, error)
	Replace(ctx context.Context, items []Item) error
	Len(ctx context.Context) (int, error)
}

// DrainStats summarizes one drain pass.
type DrainStats struct {
	Replayed   int
	Duplicates int
	Failed     int
}

// Queue is a bounded FIFO of submissions awaiting connectivity.
type Queue struct {
	store Store
	max   int

	drainMu sync.Mutex

	mu      sync.Mutex
	lastErr string
}

// New creates a queue over the given backend. max <= 0 falls back to the
// default bound.
func New(store Store, max int) *Queue {
	if max <= 0 {
		max = DefaultMax
	}
	return &Queue{store: store, max: max}
}

// Enqueue appends a submission. Fails with ErrQueueFull at the bound.
func (q *Queue) Enqueue(ctx context.Context, sub Submission) (Item, error) {
	n, err := q.store.Len(ctx)
	if err != nil {
		return Item{}, err
	}
	if n >= q.max {
		return Item{}, ErrQueueFull
	}
	it := Item{
		LocalID:    uuid.NewString(),
		Submission: sub,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.store.Append(ctx, it); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Drain replays queued items in enqueue order, one network round trip at a
// time. Success and a duplicate response both dequeue the item; any other
// failure bumps SyncAttempts, records the error, and leaves the item for the
// next pass. A second Drain never runs while one is in flight.
func (q *Queue) Drain(ctx context.Context, s Submitter) (DrainStats, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	items, err := q.store.Items(ctx)
	if err != nil {
		return DrainStats{}, err
	}

	var stats DrainStats
	remaining := make([]Item, 0, len(items))
	for _, it := range items {
		if _, err := s.Submit(ctx, it.Submission); err != nil {
			var dup *attendance.DuplicateError
			if errors.As(err, &dup) {
				// Already landed through another path.
				stats.Duplicates++
				continue
			}
			it.SyncAttempts++
			it.LastError = err.Error()
			q.setLastError(err.Error())
			remaining = append(remaining, it)
			stats.Failed++
			continue
		}
		stats.Replayed++
	}

	if err := q.store.Replace(ctx, remaining); err != nil {
		return stats, err
	}
	if stats.Failed == 0 {
		q.setLastError("")
	}
	return stats, nil
}

// PendingCount returns the number of queued items.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.store.Len(ctx)
}

// LastError returns the most recent replay failure, empty when the last
// drain fully succeeded.
func (q *Queue) LastError() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

func (q *Queue) setLastError(msg string) {
	q.mu.Lock()
	q.lastErr = msg
	q.mu.Unlock()
}
