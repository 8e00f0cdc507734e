package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OwnerKind tags a token with the kind of person it identifies.
type OwnerKind string

const (
	OwnerStudent OwnerKind = "student"
	OwnerTutor   OwnerKind = "tutor"
)

// Token string prefixes. The prefix lets a scanning device route a token to
// the right submission path without a lookup.
const (
	studentPrefix = "STU-"
	tutorPrefix   = "TUT-"
)

// Validation failure reasons.
var (
	ErrNotFound  = errors.New("token not found")
	ErrExpired   = errors.New("token expired")
	ErrInactive  = errors.New("token inactive")
	ErrMalformed = errors.New("token malformed")
)

// Token is a time-boxed identity credential for a student or tutor.
type Token struct {
	Token     string    `json:"token"`
	OwnerID   int64     `json:"owner_id"`
	OwnerKind OwnerKind `json:"owner_kind"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// NewTokenString mints an opaque token string for the given kind.
func NewTokenString(kind OwnerKind) string {
	if kind == OwnerTutor {
		return tutorPrefix + uuid.NewString()
	}
	return studentPrefix + uuid.NewString()
}

// Parse performs the structural device-side check: well-formed payload and a
// recognized kind prefix. It never touches storage.
func Parse(s string) (OwnerKind, error) {
	var kind OwnerKind
	var body string
	switch {
	case strings.HasPrefix(s, studentPrefix):
		kind, body = OwnerStudent, s[len(studentPrefix):]
	case strings.HasPrefix(s, tutorPrefix):
		kind, body = OwnerTutor, s[len(tutorPrefix):]
	default:
		return "", fmt.Errorf("%w: unrecognized prefix", ErrMalformed)
	}
	if _, err := uuid.Parse(body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return kind, nil
}
