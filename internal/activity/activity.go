// Package activity resolves activity master data for attendance recording.
// Activities are owned by another subsystem; this package only reads them.
package activity

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"attendsync/internal/schedule"
)

// Store looks up activities by id. Get returns nil when the id is unknown.
type Store interface {
	Get(ctx context.Context, id int64) (*schedule.Activity, error)
}

// PGStore reads activities from Postgres.
type PGStore struct {
	db *sql.DB
}

// NewPGStore creates a store.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

// Get returns the activity by id, nil when unknown.
func (s *PGStore) Get(ctx context.Context, id int64) (*schedule.Activity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, activity_date, start_time, end_time, late_after, late_minutes
		FROM activities WHERE id = $1
	`, id)
	var a schedule.Activity
	if err := row.Scan(&a.ID, &a.Name, &a.Date, &a.StartTime, &a.EndTime, &a.LateAfter, &a.LateMinutes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// MemoryStore is an in-memory activity store for dev and tests.
type MemoryStore struct {
	mu         sync.Mutex
	activities map[int64]schedule.Activity
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{activities: make(map[int64]schedule.Activity)}
}

// Put adds or replaces an activity.
func (s *MemoryStore) Put(a schedule.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[a.ID] = a
}

// Get returns the activity by id, nil when unknown.
func (s *MemoryStore) Get(_ context.Context, id int64) (*schedule.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}
