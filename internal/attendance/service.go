package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"attendsync/internal/activity"
	"attendsync/internal/schedule"
	"attendsync/internal/token"
)

// DefaultMinNotesLen is the minimum justification length for manual entries
// and verification actions.
const DefaultMinNotesLen = 5

// Repository persists attendance records.
type Repository interface {
	// Insert stores a new record and returns it with timestamps filled in.
	// A uniqueness violation is reported as ErrConflict.
	Insert(ctx context.Context, rec Record) (Record, error)
	// Find returns the record for the tuple, nil when none exists.
	Find(ctx context.Context, personID int64, kind PersonKind, activityID int64) (*Record, error)
	// Get returns a record by id, nil when unknown.
	Get(ctx context.Context, id string) (*Record, error)
	// UpdateVerification sets the verification status and returns the
	// updated record.
	UpdateVerification(ctx context.Context, id string, status VerificationStatus) (Record, error)
	// List returns records matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)
}

// Filter narrows a record listing.
type Filter struct {
	ActivityID         int64
	PersonID           int64
	PersonKind         PersonKind
	VerificationStatus VerificationStatus
	Limit              int
	Offset             int
}

// Recorder converts scans and manual entries into attendance records.
type Recorder struct {
	tokens      *token.Service
	activities  activity.Store
	repo        Repository
	minNotesLen int
	now         func() time.Time
}

// NewRecorder creates a recorder. minNotesLen <= 0 falls back to the default.
func NewRecorder(tokens *token.Service, activities activity.Store, repo Repository, minNotesLen int) *Recorder {
	if minNotesLen <= 0 {
		minNotesLen = DefaultMinNotesLen
	}
	return &Recorder{
		tokens:      tokens,
		activities:  activities,
		repo:        repo,
		minNotesLen: minNotesLen,
		now:         time.Now,
	}
}

// WithClock overrides the recorder clock. Test hook.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// RecordByToken resolves a scanned token and records attendance for its
// owner. A scanned record is self-verifying, except when the derived status
// is absent, which stays pending for human confirmation.
func (r *Recorder) RecordByToken(ctx context.Context, tokenString string, activityID int64, arrival time.Time) (Record, error) {
	tok, err := r.tokens.Validate(ctx, tokenString)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrInactive) {
			return Record{}, &TokenInvalidError{Err: err}
		}
		return Record{}, err
	}
	return r.create(ctx, tok.OwnerID, PersonKind(tok.OwnerKind), activityID, arrival, "", MethodQR)
}

// RecordManual records attendance entered by hand. Manual entries must carry
// a justification of at least the configured length.
func (r *Recorder) RecordManual(ctx context.Context, personID int64, kind PersonKind, activityID int64, arrival time.Time, notes string) (Record, error) {
	if len(strings.TrimSpace(notes)) < r.minNotesLen {
		return Record{}, &ValidationError{Msg: fmt.Sprintf("notes must be at least %d characters", r.minNotesLen)}
	}
	if kind != PersonStudent && kind != PersonTutor {
		return Record{}, &ValidationError{Msg: "person kind must be student or tutor"}
	}
	return r.create(ctx, personID, kind, activityID, arrival, notes, MethodManual)
}

func (r *Recorder) create(ctx context.Context, personID int64, kind PersonKind, activityID int64, arrival time.Time, notes string, method Method) (Record, error) {
	act, err := r.activities.Get(ctx, activityID)
	if err != nil {
		return Record{}, err
	}
	if act == nil {
		return Record{}, ErrActivityNotFound
	}
	now := r.now()
	if !schedule.Started(*act, now) {
		return Record{}, ErrActivityNotStarted
	}

	if existing, err := r.repo.Find(ctx, personID, kind, activityID); err != nil {
		return Record{}, err
	} else if existing != nil {
		return Record{}, &DuplicateError{Existing: *existing}
	}

	status := schedule.Classify(*act, arrival, now)
	verification := VerificationPending
	if method == MethodQR && status != schedule.StatusAbsent {
		verification = VerificationVerified
	}

	rec := Record{
		ID:                 uuid.NewString(),
		PersonID:           personID,
		PersonKind:         kind,
		ActivityID:         activityID,
		Status:             status,
		ArrivalTime:        arrival.UTC(),
		VerificationStatus: verification,
		Method:             method,
		Notes:              notes,
	}
	inserted, err := r.repo.Insert(ctx, rec)
	if errors.Is(err, ErrConflict) {
		// Lost a race with another channel; surface the winner.
		existing, ferr := r.repo.Find(ctx, personID, kind, activityID)
		if ferr == nil && existing != nil {
			return Record{}, &DuplicateError{Existing: *existing}
		}
		return Record{}, err
	}
	if err != nil {
		return Record{}, err
	}
	return inserted, nil
}
