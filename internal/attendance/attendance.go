package attendance

import (
	"errors"
	"fmt"
	"time"

	"attendsync/internal/schedule"
)

// PersonKind tags a record with the kind of person it belongs to.
type PersonKind string

const (
	PersonStudent PersonKind = "student"
	PersonTutor   PersonKind = "tutor"
)

// Method is how the attendance was captured.
type Method string

const (
	MethodQR     Method = "qr"
	MethodManual Method = "manual"
)

// VerificationStatus is the trust state of a recorded attendance entry.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationManual   VerificationStatus = "manual"
	VerificationRejected VerificationStatus = "rejected"
)

// Record is one person's attendance for one activity. At most one record
// exists per (person, kind, activity); rejection is a state, never a delete.
type Record struct {
	ID                 string             `json:"id"`
	PersonID           int64              `json:"person_id"`
	PersonKind         PersonKind         `json:"person_kind"`
	ActivityID         int64              `json:"activity_id"`
	Status             schedule.Status    `json:"attendance_status"`
	ArrivalTime        time.Time          `json:"arrival_time"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Method             Method             `json:"verification_method"`
	Notes              string             `json:"notes"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Precondition failures.
var (
	ErrActivityNotFound   = errors.New("activity not found")
	ErrActivityNotStarted = errors.New("activity has not started")
	ErrRecordNotFound     = errors.New("attendance record not found")

	// ErrConflict is returned by repositories when an insert hits the
	// uniqueness constraint; the recorder turns it into a DuplicateError.
	ErrConflict = errors.New("attendance record already exists")
)

// ValidationError reports malformed or missing caller input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// DuplicateError signals a second submission for a tuple that already has a
// record. It carries the existing record so callers can show it instead of
// overwriting it.
type DuplicateError struct {
	Existing Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("attendance already recorded for person %d (%s) at activity %d",
		e.Existing.PersonID, e.Existing.PersonKind, e.Existing.ActivityID)
}

// TokenInvalidError wraps the token-store reason a scan could not be resolved.
type TokenInvalidError struct {
	Err error
}

func (e *TokenInvalidError) Error() string { return "token invalid: " + e.Err.Error() }
func (e *TokenInvalidError) Unwrap() error { return e.Err }
