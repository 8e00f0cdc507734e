package engine

import (
	"context"

	"attendsync/internal/attendance"
	"attendsync/internal/syncqueue"
)

// RecorderSubmitter adapts the local recorder to the queue's Submitter
// interface, for colocated deployments and tests where no remote hop exists.
type RecorderSubmitter struct {
	Recorder *attendance.Recorder
}

// Submit routes a queued submission through the recorder path that captured it.
func (s *RecorderSubmitter) Submit(ctx context.Context, sub syncqueue.Submission) (attendance.Record, error) {
	if sub.Method == attendance.MethodQR {
		return s.Recorder.RecordByToken(ctx, sub.Token, sub.ActivityID, sub.ArrivalTime)
	}
	return s.Recorder.RecordManual(ctx, sub.PersonID, sub.PersonKind, sub.ActivityID, sub.ArrivalTime, sub.Notes)
}
