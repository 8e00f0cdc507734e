package attendance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory record store for dev and tests.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

// Insert stores a new record; a tuple collision returns ErrConflict.
func (r *MemoryRepository) Insert(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.PersonID == rec.PersonID && existing.PersonKind == rec.PersonKind && existing.ActivityID == rec.ActivityID {
			return Record{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.records[rec.ID] = rec
	return rec, nil
}

// Find returns the record for the tuple, nil when none exists.
func (r *MemoryRepository) Find(_ context.Context, personID int64, kind PersonKind, activityID int64) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.PersonID == personID && rec.PersonKind == kind && rec.ActivityID == activityID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, nil
}

// Get returns a record by id, nil when unknown.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// UpdateVerification sets the verification status in place.
func (r *MemoryRepository) UpdateVerification(_ context.Context, id string, status VerificationStatus) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	rec.VerificationStatus = status
	rec.UpdatedAt = time.Now().UTC()
	r.records[id] = rec
	return rec, nil
}

// List returns records matching the filter, newest first.
func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []Record
	for _, rec := range r.records {
		if f.ActivityID != 0 && rec.ActivityID != f.ActivityID {
			continue
		}
		if f.PersonID != 0 && rec.PersonID != f.PersonID {
			continue
		}
		if f.PersonKind != "" && rec.PersonKind != f.PersonKind {
			continue
		}
		if f.VerificationStatus != "" && rec.VerificationStatus != f.VerificationStatus {
			continue
		}
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}
