package verify

import (
	"context"
	"errors"
	"hash/fnv"
	"testing"

	"attendsync/internal/attendance"
	"attendsync/internal/schedule"
)

func activityIDFor(id string) int64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int64(h.Sum32())
}

func seedRecord(t *testing.T, repo *attendance.MemoryRepository, id string, status attendance.VerificationStatus) {
	t.Helper()
	_, err := repo.Insert(context.Background(), attendance.Record{
		ID:                 id,
		PersonID:           42,
		PersonKind:         attendance.PersonStudent,
		ActivityID:         activityIDFor(id), // distinct tuples per record
		Status:             schedule.StatusPresent,
		VerificationStatus: status,
		Method:             attendance.MethodManual,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func newWorkflow() (*Workflow, *attendance.MemoryRepository, *MemoryEventRepository) {
	records := attendance.NewMemoryRepository()
	events := NewMemoryEventRepository()
	return NewWorkflow(records, events, 0), records, events
}

func TestManualVerifyFromPending(t *testing.T) {
	ctx := context.Background()
	wf, records, events := newWorkflow()
	seedRecord(t, records, "r1", attendance.VerificationPending)

	rec, err := wf.ManualVerify(ctx, "r1", "operator-7", "confirmed at the gate")
	if err != nil {
		t.Fatalf("ManualVerify: %v", err)
	}
	if rec.VerificationStatus != attendance.VerificationManual {
		t.Fatalf("VerificationStatus = %s, want manual", rec.VerificationStatus)
	}

	trail, _ := events.ListByRecord(ctx, "r1")
	if len(trail) != 1 {
		t.Fatalf("got %d events, want 1", len(trail))
	}
	e := trail[0]
	if e.FromStatus != attendance.VerificationPending || e.ToStatus != attendance.VerificationManual {
		t.Fatalf("event transition = %s->%s", e.FromStatus, e.ToStatus)
	}
	if e.Actor != "operator-7" {
		t.Fatalf("actor = %s, want operator-7", e.Actor)
	}
}

func TestRejectFromPending(t *testing.T) {
	ctx := context.Background()
	wf, records, events := newWorkflow()
	seedRecord(t, records, "r1", attendance.VerificationPending)

	rec, err := wf.Reject(ctx, "r1", "operator-7", "wrong person scanned")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rec.VerificationStatus != attendance.VerificationRejected {
		t.Fatalf("VerificationStatus = %s, want rejected", rec.VerificationStatus)
	}

	// Rejection is a state, not a delete.
	kept, _ := records.Get(ctx, "r1")
	if kept == nil {
		t.Fatal("rejected record must not be deleted")
	}
	trail, _ := events.ListByRecord(ctx, "r1")
	if len(trail) != 1 {
		t.Fatalf("got %d events, want 1", len(trail))
	}
}

func TestTerminalStatesFailLoudly(t *testing.T) {
	ctx := context.Background()
	wf, records, _ := newWorkflow()
	seedRecord(t, records, "verified", attendance.VerificationVerified)
	seedRecord(t, records, "manualed", attendance.VerificationManual)
	seedRecord(t, records, "rejected", attendance.VerificationRejected)

	for _, id := range []string{"verified", "manualed", "rejected"} {
		_, err := wf.ManualVerify(ctx, id, "op", "trying again anyway")
		var it *InvalidTransitionError
		if !errors.As(err, &it) {
			t.Fatalf("ManualVerify(%s) = %v, want InvalidTransitionError", id, err)
		}
		_, err = wf.Reject(ctx, id, "op", "trying again anyway")
		if !errors.As(err, &it) {
			t.Fatalf("Reject(%s) = %v, want InvalidTransitionError", id, err)
		}
	}
}

func TestRepeatActionIsNotMasked(t *testing.T) {
	ctx := context.Background()
	wf, records, events := newWorkflow()
	seedRecord(t, records, "r1", attendance.VerificationPending)

	if _, err := wf.ManualVerify(ctx, "r1", "op", "first confirmation"); err != nil {
		t.Fatalf("first ManualVerify: %v", err)
	}
	_, err := wf.ManualVerify(ctx, "r1", "op", "retried confirmation")
	var it *InvalidTransitionError
	if !errors.As(err, &it) {
		t.Fatalf("retry = %v, want InvalidTransitionError", err)
	}
	trail, _ := events.ListByRecord(ctx, "r1")
	if len(trail) != 1 {
		t.Fatalf("retry must not append events, got %d", len(trail))
	}
}

func TestTransitionRequiresNotes(t *testing.T) {
	ctx := context.Background()
	wf, records, _ := newWorkflow()
	seedRecord(t, records, "r1", attendance.VerificationPending)

	_, err := wf.ManualVerify(ctx, "r1", "op", "no")
	var ve *attendance.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("short notes = %v, want ValidationError", err)
	}
	_, err = wf.Reject(ctx, "r1", "op", "")
	if !errors.As(err, &ve) {
		t.Fatalf("empty reason = %v, want ValidationError", err)
	}
}

func TestUnknownRecord(t *testing.T) {
	wf, _, _ := newWorkflow()
	_, err := wf.ManualVerify(context.Background(), "ghost", "op", "valid notes here")
	if !errors.Is(err, attendance.ErrRecordNotFound) {
		t.Fatalf("unknown record = %v, want ErrRecordNotFound", err)
	}
}
