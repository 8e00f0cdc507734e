package token

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(now time.Time) (*Service, *MemoryRepository) {
	repo := NewMemoryRepository()
	svc := NewService(repo, 0).WithClock(func() time.Time { return now })
	return svc, repo
}

func TestGenerateSupersedesActiveToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	first, err := svc.Generate(ctx, 42, OwnerStudent, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := svc.Generate(ctx, 42, OwnerStudent, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if _, err := svc.Validate(ctx, first.Token); !errors.Is(err, ErrInactive) {
		t.Fatalf("first token validate = %v, want ErrInactive", err)
	}
	if _, err := svc.Validate(ctx, second.Token); err != nil {
		t.Fatalf("second token validate = %v, want ok", err)
	}

	active, err := svc.GetActive(ctx, 42, OwnerStudent)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active == nil || active.Token != second.Token {
		t.Fatalf("GetActive = %+v, want second token", active)
	}
}

func TestGenerateDoesNotTouchOtherOwners(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	student, _ := svc.Generate(ctx, 7, OwnerStudent, 0)
	if _, err := svc.Generate(ctx, 7, OwnerTutor, 0); err != nil {
		t.Fatalf("Generate tutor: %v", err)
	}
	if _, err := svc.Validate(ctx, student.Token); err != nil {
		t.Fatalf("student token should stay active across kinds: %v", err)
	}
}

func TestValidateExpiredLazily(t *testing.T) {
	ctx := context.Background()
	issued := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository()
	now := issued
	svc := NewService(repo, 0).WithClock(func() time.Time { return now })

	tok, err := svc.Generate(ctx, 42, OwnerStudent, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	now = issued.Add(25 * time.Hour)
	if _, err := svc.Validate(ctx, tok.Token); !errors.Is(err, ErrExpired) {
		t.Fatalf("validate after expiry = %v, want ErrExpired", err)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	svc, _ := newTestService(time.Now())
	if _, err := svc.Validate(context.Background(), "STU-nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("validate unknown = %v, want ErrNotFound", err)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	tok, _ := svc.Generate(ctx, 42, OwnerStudent, 0)
	if err := svc.Invalidate(ctx, tok.Token); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := svc.Invalidate(ctx, tok.Token); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
	if err := svc.Invalidate(ctx, "never-issued"); err != nil {
		t.Fatalf("Invalidate unknown: %v", err)
	}
	if _, err := svc.Validate(ctx, tok.Token); !errors.Is(err, ErrInactive) {
		t.Fatalf("validate invalidated = %v, want ErrInactive", err)
	}
}

func TestGenerateDefaultValidity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(now)

	tok, err := svc.Generate(ctx, 1, OwnerStudent, -3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := now.AddDate(0, 0, DefaultValidDays)
	if !tok.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %s, want %s", tok.ExpiresAt, want)
	}
}

func TestGenerateBatchReportsPerOwner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	results := svc.GenerateBatch(ctx, []int64{1, 2, 3}, OwnerTutor, 7)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("owner %d failed: %v", res.OwnerID, res.Err)
		}
		if res.Token == nil || !strings.HasPrefix(res.Token.Token, "TUT-") {
			t.Fatalf("owner %d token = %+v, want TUT- prefix", res.OwnerID, res.Token)
		}
	}
}

func TestParse(t *testing.T) {
	studentTok := NewTokenString(OwnerStudent)
	tutorTok := NewTokenString(OwnerTutor)

	if kind, err := Parse(studentTok); err != nil || kind != OwnerStudent {
		t.Fatalf("Parse(student) = %s, %v", kind, err)
	}
	if kind, err := Parse(tutorTok); err != nil || kind != OwnerTutor {
		t.Fatalf("Parse(tutor) = %s, %v", kind, err)
	}
	if _, err := Parse("XYZ-whatever"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse bad prefix = %v, want ErrMalformed", err)
	}
	if _, err := Parse("STU-not-a-uuid"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse bad body = %v, want ErrMalformed", err)
	}
}
