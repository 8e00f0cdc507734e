package token

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory token store for dev and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]Token
}

// NewMemoryRepository creates an empty in-memory repo.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]Token)}
}

// Issue deactivates the owner's active token and stores the new one.
func (r *MemoryRepository) Issue(_ context.Context, t Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, existing := range r.tokens {
		if existing.Active && existing.OwnerID == t.OwnerID && existing.OwnerKind == t.OwnerKind {
			existing.Active = false
			r.tokens[key] = existing
		}
	}
	r.tokens[t.Token] = t
	return nil
}

// Get returns a token by its string, nil when unknown.
func (r *MemoryRepository) Get(_ context.Context, tokenString string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenString]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// GetActive returns the owner's active token, nil when none.
func (r *MemoryRepository) GetActive(_ context.Context, ownerID int64, kind OwnerKind) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Active && t.OwnerID == ownerID && t.OwnerKind == kind {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

// Deactivate clears the active flag; unknown tokens are a no-op.
func (r *MemoryRepository) Deactivate(_ context.Context, tokenString string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[tokenString]; ok {
		t.Active = false
		r.tokens[tokenString] = t
	}
	return nil
}
