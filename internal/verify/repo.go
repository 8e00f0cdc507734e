package verify

import (
	"context"
	"database/sql"
	"sync"
)

// PGEventRepository stores verification events in Postgres.
type PGEventRepository struct {
	db *sql.DB
}

// NewPGEventRepository creates a repo.
func NewPGEventRepository(db *sql.DB) *PGEventRepository {
	return &PGEventRepository{db: db}
}

// Append writes one transition.
func (r *PGEventRepository) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_events (record_id, from_status, to_status, actor, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, e.RecordID, e.FromStatus, e.ToStatus, e.Actor, e.Notes)
	return err
}

// ListByRecord returns a record's trail in append order.
func (r *PGEventRepository) ListByRecord(ctx context.Context, recordID string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, record_id, from_status, to_status, actor, notes, created_at
		FROM verification_events
		WHERE record_id = $1
		ORDER BY id
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RecordID, &e.FromStatus, &e.ToStatus, &e.Actor, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// MemoryEventRepository is an in-memory audit trail for dev and tests.
type MemoryEventRepository struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

// NewMemoryEventRepository creates an empty in-memory repo.
func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{}
}

// Append writes one transition.
func (r *MemoryEventRepository) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.events = append(r.events, e)
	return nil
}

// ListByRecord returns a record's trail in append order.
func (r *MemoryEventRepository) ListByRecord(_ context.Context, recordID string) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Event
	for _, e := range r.events {
		if e.RecordID == recordID {
			res = append(res, e)
		}
	}
	return res, nil
}
