package token

import (
	"context"
	"time"
)

// DefaultValidDays is used when a generation request carries no positive
// validity window.
const DefaultValidDays = 30

// Repository persists identity tokens.
type Repository interface {
	// Issue deactivates any active token for the owner and stores t, as one
	// atomic step.
	Issue(ctx context.Context, t Token) error
	// Get returns the token by its string, or nil when unknown.
	Get(ctx context.Context, tokenString string) (*Token, error)
	// GetActive returns the owner's active token, or nil when none.
	GetActive(ctx context.Context, ownerID int64, kind OwnerKind) (*Token, error)
	// Deactivate clears the active flag; unknown tokens are a no-op.
	Deactivate(ctx context.Context, tokenString string) error
}

// Service issues and validates identity tokens.
type Service struct {
	repo      Repository
	validDays int
	now       func() time.Time
}

// NewService creates a token service. validDays <= 0 falls back to the
// default validity window.
func NewService(repo Repository, validDays int) *Service {
	if validDays <= 0 {
		validDays = DefaultValidDays
	}
	return &Service{repo: repo, validDays: validDays, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Generate issues a fresh token for the owner, superseding any active one.
func (s *Service) Generate(ctx context.Context, ownerID int64, kind OwnerKind, validDays int) (Token, error) {
	if validDays <= 0 {
		validDays = s.validDays
	}
	now := s.now().UTC()
	t := Token{
		Token:     NewTokenString(kind),
		OwnerID:   ownerID,
		OwnerKind: kind,
		IssuedAt:  now,
		ExpiresAt: now.AddDate(0, 0, validDays),
		Active:    true,
	}
	if err := s.repo.Issue(ctx, t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// BatchResult reports one owner's outcome within a batch generation.
type BatchResult struct {
	OwnerID int64  `json:"owner_id"`
	Token   *Token `json:"token,omitempty"`
	Err     error  `json:"-"`
}

// GenerateBatch issues tokens independently per owner. A failure for one id
// never aborts the rest; each outcome is reported on its own.
func (s *Service) GenerateBatch(ctx context.Context, ownerIDs []int64, kind OwnerKind, validDays int) []BatchResult {
	results := make([]BatchResult, 0, len(ownerIDs))
	for _, id := range ownerIDs {
		t, err := s.Generate(ctx, id, kind, validDays)
		if err != nil {
			results = append(results, BatchResult{OwnerID: id, Err: err})
			continue
		}
		results = append(results, BatchResult{OwnerID: id, Token: &t})
	}
	return results
}

// Validate resolves a token string to its owner. Expiry is checked lazily
// here; there is no background sweep.
func (s *Service) Validate(ctx context.Context, tokenString string) (Token, error) {
	t, err := s.repo.Get(ctx, tokenString)
	if err != nil {
		return Token{}, err
	}
	if t == nil {
		return Token{}, ErrNotFound
	}
	if s.now().After(t.ExpiresAt) {
		return Token{}, ErrExpired
	}
	if !t.Active {
		return Token{}, ErrInactive
	}
	return *t, nil
}

// Invalidate deactivates a token. Idempotent; unknown or already-inactive
// tokens are not an error.
func (s *Service) Invalidate(ctx context.Context, tokenString string) error {
	return s.repo.Deactivate(ctx, tokenString)
}

// GetActive returns the owner's current active token, or nil.
func (s *Service) GetActive(ctx context.Context, ownerID int64, kind OwnerKind) (*Token, error) {
	return s.repo.GetActive(ctx, ownerID, kind)
}
