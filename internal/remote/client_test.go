package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendsync/internal/attendance"
	"attendsync/internal/syncqueue"
)

func testSubmission() syncqueue.Submission {
	return syncqueue.Submission{
		Method:      attendance.MethodManual,
		PersonID:    42,
		PersonKind:  attendance.PersonStudent,
		ActivityID:  1,
		ArrivalTime: time.Date(2026, 3, 10, 9, 10, 0, 0, time.UTC),
		Notes:       "captured in the field",
	}
}

func TestSubmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attendance" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var sub syncqueue.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(attendance.Record{ID: "rec-1", PersonID: sub.PersonID, ActivityID: sub.ActivityID})
	}))
	defer srv.Close()

	c := New(srv.URL)
	rec, err := c.Submit(context.Background(), testSubmission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.ID != "rec-1" || rec.PersonID != 42 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestSubmitDecodesDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(ErrorBody{
			Error:          "attendance already recorded",
			Code:           CodeDuplicate,
			ExistingRecord: &attendance.Record{ID: "prior"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Submit(context.Background(), testSubmission())
	var dup *attendance.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("Submit = %v, want DuplicateError", err)
	}
	if dup.Existing.ID != "prior" {
		t.Fatalf("existing = %+v, want prior", dup.Existing)
	}
}

func TestSubmitDecodesTypedFailures(t *testing.T) {
	cases := []struct {
		status int
		body   ErrorBody
		check  func(error) bool
	}{
		{http.StatusUnprocessableEntity, ErrorBody{Error: "notes too short", Code: CodeValidation}, func(err error) bool {
			var ve *attendance.ValidationError
			return errors.As(err, &ve)
		}},
		{http.StatusNotFound, ErrorBody{Error: "activity not found", Code: CodeActivityNotFound}, func(err error) bool {
			return errors.Is(err, attendance.ErrActivityNotFound)
		}},
		{http.StatusUnprocessableEntity, ErrorBody{Error: "activity has not started", Code: CodeActivityNotStarted}, func(err error) bool {
			return errors.Is(err, attendance.ErrActivityNotStarted)
		}},
		{http.StatusUnprocessableEntity, ErrorBody{Error: "token invalid: Expired", Code: CodeTokenInvalid}, func(err error) bool {
			var tie *attendance.TokenInvalidError
			return errors.As(err, &tie)
		}},
	}
	for _, tc := range cases {
		tc := tc
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(tc.body)
		}))
		c := New(srv.URL)
		_, err := c.Submit(context.Background(), testSubmission())
		if !tc.check(err) {
			t.Fatalf("code %s: got %v", tc.body.Code, err)
		}
		srv.Close()
	}
}

func TestSubmitNetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL)
	_, err := c.Submit(context.Background(), testSubmission())
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("Submit against closed server = %v, want ErrNetworkUnavailable", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	srv.Close()
	if err := c.Health(context.Background()); !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("Health against closed server = %v, want ErrNetworkUnavailable", err)
	}
}

func TestRegisterDeviceStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/devices/register":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"access_token": "jwt-abc"})
		case "/v1/attendance":
			if got := r.Header.Get("Authorization"); got != "Bearer jwt-abc" {
				t.Fatalf("Authorization = %q", got)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(attendance.Record{ID: "rec-1"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.RegisterDevice(context.Background(), "device-1"); err != nil {
		t.Fatalf("RegisterDevice: %v", err)
	}
	if _, err := c.Submit(context.Background(), testSubmission()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}
