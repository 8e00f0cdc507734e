// Package verify advances attendance records through their verification
// states and keeps the append-only audit trail.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attendsync/internal/attendance"
)

// ActorSystem marks transitions applied by the engine itself.
const ActorSystem = "system"

// Event is one verification transition. Immutable once written.
type Event struct {
	ID         int64                         `json:"id"`
	RecordID   string                        `json:"record_id"`
	FromStatus attendance.VerificationStatus `json:"from_status"`
	ToStatus   attendance.VerificationStatus `json:"to_status"`
	Actor      string                        `json:"actor"`
	Notes      string                        `json:"notes"`
	CreatedAt  time.Time                     `json:"created_at"`
}

// EventRepository stores the audit trail.
type EventRepository interface {
	Append(ctx context.Context, e Event) error
	ListByRecord(ctx context.Context, recordID string) ([]Event, error)
}

// InvalidTransitionError reports a verification action against a record that
// is not in a state the action is legal from.
type InvalidTransitionError struct {
	From attendance.VerificationStatus
	To   attendance.VerificationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move verification from %s to %s", e.From, e.To)
}

// Workflow applies verification transitions. Only pending records can move;
// a repeat action against a terminal record fails loudly instead of
// pretending to succeed.
type Workflow struct {
	records     attendance.Repository
	events      EventRepository
	minNotesLen int
}

// NewWorkflow creates a workflow. minNotesLen <= 0 falls back to the
// recorder's default.
func NewWorkflow(records attendance.Repository, events EventRepository, minNotesLen int) *Workflow {
	if minNotesLen <= 0 {
		minNotesLen = attendance.DefaultMinNotesLen
	}
	return &Workflow{records: records, events: events, minNotesLen: minNotesLen}
}

// ManualVerify confirms a pending record by hand.
func (w *Workflow) ManualVerify(ctx context.Context, recordID, actor, notes string) (attendance.Record, error) {
	return w.transition(ctx, recordID, attendance.VerificationManual, actor, notes)
}

// Reject marks a pending record as rejected. The record stays; rejection is a
// state, not a delete.
func (w *Workflow) Reject(ctx context.Context, recordID, actor, reason string) (attendance.Record, error) {
	return w.transition(ctx, recordID, attendance.VerificationRejected, actor, reason)
}

// History returns the record's audit trail in append order.
func (w *Workflow) History(ctx context.Context, recordID string) ([]Event, error) {
	return w.events.ListByRecord(ctx, recordID)
}

func (w *Workflow) transition(ctx context.Context, recordID string, to attendance.VerificationStatus, actor, notes string) (attendance.Record, error) {
	if len(strings.TrimSpace(notes)) < w.minNotesLen {
		return attendance.Record{}, &attendance.ValidationError{
			Msg: fmt.Sprintf("notes must be at least %d characters", w.minNotesLen),
		}
	}
	if actor == "" {
		actor = ActorSystem
	}

	rec, err := w.records.Get(ctx, recordID)
	if err != nil {
		return attendance.Record{}, err
	}
	if rec == nil {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	if rec.VerificationStatus != attendance.VerificationPending {
		return attendance.Record{}, &InvalidTransitionError{From: rec.VerificationStatus, To: to}
	}

	updated, err := w.records.UpdateVerification(ctx, recordID, to)
	if err != nil {
		return attendance.Record{}, err
	}
	if err := w.events.Append(ctx, Event{
		RecordID:   recordID,
		FromStatus: rec.VerificationStatus,
		ToStatus:   to,
		Actor:      actor,
		Notes:      notes,
	}); err != nil {
		return attendance.Record{}, err
	}
	return updated, nil
}
