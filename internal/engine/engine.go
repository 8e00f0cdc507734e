// Package engine is the device-facing submission facade. It routes captures
// to the attendance service when online and diverts them into the offline
// queue when not. A connectivity-restored edge drains the queue.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"

	"attendsync/internal/attendance"
	"attendsync/internal/metrics"
	"attendsync/internal/remote"
	"attendsync/internal/syncqueue"
	"attendsync/internal/token"
)

// Outcome discriminates a submission result for the caller.
type Outcome string

const (
	OutcomeOK                 Outcome = "ok"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeValidationError    Outcome = "validation_error"
	OutcomeActivityNotFound   Outcome = "activity_not_found"
	OutcomeActivityNotStarted Outcome = "activity_not_started"
	OutcomeTokenInvalid       Outcome = "token_invalid"
	OutcomeQueued             Outcome = "queued"
)

// Result is the discriminated outcome of one submission.
type Result struct {
	Outcome  Outcome
	Record   *attendance.Record // set on OutcomeOK
	Existing *attendance.Record // set on OutcomeDuplicate
	Queued   *syncqueue.Item    // set on OutcomeQueued
	Message  string
}

// QueueStatus is the operator-facing offline indicator.
type QueueStatus struct {
	PendingCount int    `json:"pending_count"`
	LastError    string `json:"last_error,omitempty"`
}

// Engine ties the submitter, the offline queue, and the connectivity signal
// together.
type Engine struct {
	submitter syncqueue.Submitter
	queue     *syncqueue.Queue
	collector *metrics.Collector

	mu     sync.Mutex
	online bool
}

// New creates an engine. It starts offline; the host environment pushes the
// first connectivity signal. collector may be nil.
func New(submitter syncqueue.Submitter, queue *syncqueue.Queue, collector *metrics.Collector) *Engine {
	return &Engine{submitter: submitter, queue: queue, collector: collector}
}

// Submit records one capture. With no connectivity the submission is queued
// instead of failed; a transport failure during an online attempt is treated
// the same way, since it means connectivity was in fact absent.
func (e *Engine) Submit(ctx context.Context, sub syncqueue.Submission) (Result, error) {
	// Structural check before any round trip: a malformed scan is rejected
	// on the device, and the prefix routes student vs tutor tokens.
	if sub.Method == attendance.MethodQR {
		kind, err := token.Parse(sub.Token)
		if err != nil {
			e.count(OutcomeTokenInvalid)
			return Result{Outcome: OutcomeTokenInvalid, Message: err.Error()}, nil
		}
		sub.PersonKind = attendance.PersonKind(kind)
	}

	if !e.Online() {
		return e.divert(ctx, sub)
	}

	rec, err := e.submitter.Submit(ctx, sub)
	if err == nil {
		e.count(OutcomeOK)
		return Result{Outcome: OutcomeOK, Record: &rec}, nil
	}
	if errors.Is(err, remote.ErrNetworkUnavailable) {
		e.SetOnline(ctx, false)
		return e.divert(ctx, sub)
	}

	res, mapped := mapFailure(err)
	if !mapped {
		return Result{}, err
	}
	e.count(res.Outcome)
	return res, nil
}

// Online reports the last pushed connectivity state.
func (e *Engine) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// SetOnline pushes a connectivity signal. The offline to online edge triggers a
// drain; repeated signals in the same state do nothing.
func (e *Engine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	wasOnline := e.online
	e.online = online
	e.mu.Unlock()

	if online && !wasOnline {
		if err := e.Drain(ctx); err != nil {
			log.Printf("drain after reconnect failed: %v", err)
		}
	}
}

// Drain replays the offline queue. Safe to call directly for periodic
// reconciliation beyond the edge trigger.
func (e *Engine) Drain(ctx context.Context) error {
	stats, err := e.queue.Drain(ctx, e.submitter)
	if e.collector != nil {
		e.collector.RecordDrain(stats.Replayed+stats.Duplicates, stats.Failed)
	}
	e.refreshDepth(ctx)
	return err
}

// Status returns the operator-facing queue indicator.
func (e *Engine) Status(ctx context.Context) (QueueStatus, error) {
	n, err := e.queue.PendingCount(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	return QueueStatus{PendingCount: n, LastError: e.queue.LastError()}, nil
}

func (e *Engine) divert(ctx context.Context, sub syncqueue.Submission) (Result, error) {
	item, err := e.queue.Enqueue(ctx, sub)
	if err != nil {
		return Result{}, err
	}
	e.count(OutcomeQueued)
	e.refreshDepth(ctx)
	return Result{Outcome: OutcomeQueued, Queued: &item, Message: "no connectivity, submission queued"}, nil
}

func (e *Engine) count(o Outcome) {
	if e.collector != nil {
		e.collector.RecordSubmission(string(o))
	}
}

func (e *Engine) refreshDepth(ctx context.Context) {
	if e.collector == nil {
		return
	}
	if n, err := e.queue.PendingCount(ctx); err == nil {
		e.collector.SetQueueDepth(n)
	}
}

// mapFailure converts typed recorder/service errors into outcomes. Unmapped
// errors propagate as plain errors.
func mapFailure(err error) (Result, bool) {
	var dup *attendance.DuplicateError
	if errors.As(err, &dup) {
		return Result{Outcome: OutcomeDuplicate, Existing: &dup.Existing, Message: dup.Error()}, true
	}
	var ve *attendance.ValidationError
	if errors.As(err, &ve) {
		return Result{Outcome: OutcomeValidationError, Message: ve.Msg}, true
	}
	var tie *attendance.TokenInvalidError
	if errors.As(err, &tie) {
		return Result{Outcome: OutcomeTokenInvalid, Message: tie.Error()}, true
	}
	if errors.Is(err, attendance.ErrActivityNotFound) {
		return Result{Outcome: OutcomeActivityNotFound, Message: err.Error()}, true
	}
	if errors.Is(err, attendance.ErrActivityNotStarted) {
		return Result{Outcome: OutcomeActivityNotStarted, Message: err.Error()}, true
	}
	return Result{}, false
}
