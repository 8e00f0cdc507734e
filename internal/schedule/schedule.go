package schedule

import "time"

// Status is the schedule-derived outcome of an attendance submission.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

// Activity carries the schedule data a classification needs. Activities are
// master data owned elsewhere; this is a read-only projection.
type Activity struct {
	ID          int64
	Name        string
	Date        time.Time // calendar day of the activity
	StartTime   *time.Time
	EndTime     *time.Time
	LateAfter   *time.Time // explicit lateness cutoff; wins over LateMinutes
	LateMinutes int        // minutes after StartTime; 0 means unset
}

// Started reports whether the activity's day has been reached. Submissions
// for future-dated activities must be blocked before classification.
func Started(a Activity, now time.Time) bool {
	return !dateOf(a.Date).After(dateOf(now))
}

// Classify maps an arrival time onto present/late/absent for the given
// activity. Evaluation order matters: a past-day activity is absent no matter
// the arrival, arrival past the end time is absent even when a late threshold
// is configured, and only then is lateness considered.
func Classify(a Activity, arrival, now time.Time) Status {
	if dateOf(a.Date).Before(dateOf(now)) {
		return StatusAbsent
	}
	if a.EndTime != nil && arrival.After(*a.EndTime) {
		return StatusAbsent
	}
	if cutoff, ok := lateCutoff(a); ok && arrival.After(cutoff) {
		return StatusLate
	}
	return StatusPresent
}

// lateCutoff resolves the configured lateness threshold, if any. An explicit
// cutoff takes precedence over a start-relative one.
func lateCutoff(a Activity) (time.Time, bool) {
	if a.LateAfter != nil {
		return *a.LateAfter, true
	}
	if a.LateMinutes > 0 && a.StartTime != nil {
		return a.StartTime.Add(time.Duration(a.LateMinutes) * time.Minute), true
	}
	return time.Time{}, false
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
