package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"attendsync/internal/attendance"
	"attendsync/internal/auth"
	"attendsync/internal/config"
	"attendsync/internal/engine"
	"attendsync/internal/metrics"
	"attendsync/internal/remote"
	"attendsync/internal/syncqueue"
	"attendsync/internal/token"
	"attendsync/internal/verify"
)

type server struct {
	cfg       config.App
	tokens    *token.Service
	recorder  *attendance.Recorder
	workflow  *verify.Workflow
	records   attendance.Repository
	devices   *auth.DeviceRepository
	queue     *syncqueue.Queue
	collector *metrics.Collector
}

func (s *server) registerDevice(c *gin.Context) {
	var req struct {
		DeviceID string `json:"device_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.devices.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := auth.Issue(req.DeviceID, "device", s.cfg.JWTIssuer, s.cfg.JWTSigningKey, s.cfg.AccessTTL, s.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	_ = s.devices.SaveRefreshToken(c.Request.Context(), req.DeviceID, pair.RefreshToken, pair.RefreshExp)

	c.JSON(http.StatusCreated, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_at":    pair.AccessExp.Unix(),
	})
}

func (s *server) generateToken(c *gin.Context) {
	var req struct {
		OwnerID   int64  `json:"owner_id" binding:"required"`
		OwnerKind string `json:"owner_kind" binding:"required,oneof=student tutor"`
		ValidDays int    `json:"valid_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := s.tokens.Generate(c.Request.Context(), req.OwnerID, token.OwnerKind(req.OwnerKind), req.ValidDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (s *server) generateTokenBatch(c *gin.Context) {
	var req struct {
		OwnerIDs  []int64 `json:"owner_ids" binding:"required"`
		OwnerKind string  `json:"owner_kind" binding:"required,oneof=student tutor"`
		ValidDays int     `json:"valid_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results := s.tokens.GenerateBatch(c.Request.Context(), req.OwnerIDs, token.OwnerKind(req.OwnerKind), req.ValidDays)

	type outcome struct {
		OwnerID int64        `json:"owner_id"`
		Token   *token.Token `json:"token,omitempty"`
		Error   string       `json:"error,omitempty"`
	}
	out := make([]outcome, 0, len(results))
	for _, res := range results {
		o := outcome{OwnerID: res.OwnerID, Token: res.Token}
		if res.Err != nil {
			o.Error = res.Err.Error()
		}
		out = append(out, o)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (s *server) validateToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := s.tokens.Validate(c.Request.Context(), req.Token)
	if err != nil {
		reason := "unknown"
		switch {
		case errors.Is(err, token.ErrNotFound):
			reason = "NotFound"
		case errors.Is(err, token.ErrExpired):
			reason = "Expired"
		case errors.Is(err, token.ErrInactive):
			reason = "Inactive"
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.collector.RecordTokenValidation(reason)
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": reason})
		return
	}
	s.collector.RecordTokenValidation("ok")
	c.JSON(http.StatusOK, gin.H{"valid": true, "owner_id": t.OwnerID, "owner_kind": t.OwnerKind})
}

func (s *server) invalidateToken(c *gin.Context) {
	if err := s.tokens.Invalidate(c.Request.Context(), c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) activeToken(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_id required"})
		return
	}
	kind := token.OwnerKind(c.Query("owner_kind"))
	if kind != token.OwnerStudent && kind != token.OwnerTutor {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_kind must be student or tutor"})
		return
	}
	t, err := s.tokens.GetActive(c.Request.Context(), ownerID, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if t == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active token"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *server) submitAttendance(c *gin.Context) {
	var sub syncqueue.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sub.ArrivalTime.IsZero() {
		sub.ArrivalTime = time.Now().UTC()
	}

	var rec attendance.Record
	var err error
	switch sub.Method {
	case attendance.MethodQR:
		rec, err = s.recorder.RecordByToken(c.Request.Context(), sub.Token, sub.ActivityID, sub.ArrivalTime)
	case attendance.MethodManual:
		rec, err = s.recorder.RecordManual(c.Request.Context(), sub.PersonID, sub.PersonKind, sub.ActivityID, sub.ArrivalTime, sub.Notes)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "method must be qr or manual"})
		return
	}
	if err != nil {
		s.writeRecordError(c, err)
		return
	}
	s.collector.RecordSubmission(string(engine.OutcomeOK))
	c.JSON(http.StatusCreated, rec)
}

// writeRecordError maps recorder failures onto the wire contract the device
// client decodes.
func (s *server) writeRecordError(c *gin.Context, err error) {
	var dup *attendance.DuplicateError
	if errors.As(err, &dup) {
		s.collector.RecordSubmission(string(engine.OutcomeDuplicate))
		c.JSON(http.StatusConflict, remote.ErrorBody{
			Error:          dup.Error(),
			Code:           remote.CodeDuplicate,
			ExistingRecord: &dup.Existing,
		})
		return
	}
	var ve *attendance.ValidationError
	if errors.As(err, &ve) {
		s.collector.RecordSubmission(string(engine.OutcomeValidationError))
		c.JSON(http.StatusUnprocessableEntity, remote.ErrorBody{Error: ve.Msg, Code: remote.CodeValidation})
		return
	}
	var tie *attendance.TokenInvalidError
	if errors.As(err, &tie) {
		s.collector.RecordSubmission(string(engine.OutcomeTokenInvalid))
		c.JSON(http.StatusUnprocessableEntity, remote.ErrorBody{Error: tie.Error(), Code: remote.CodeTokenInvalid})
		return
	}
	if errors.Is(err, attendance.ErrActivityNotFound) {
		c.JSON(http.StatusNotFound, remote.ErrorBody{Error: err.Error(), Code: remote.CodeActivityNotFound})
		return
	}
	if errors.Is(err, attendance.ErrActivityNotStarted) {
		s.collector.RecordSubmission(string(engine.OutcomeActivityNotStarted))
		c.JSON(http.StatusUnprocessableEntity, remote.ErrorBody{Error: err.Error(), Code: remote.CodeActivityNotStarted})
		return
	}
	log.Printf("attendance submit failed: %v", err)
	c.JSON(http.StatusInternalServerError, remote.ErrorBody{Error: "internal error"})
}

func (s *server) getAttendance(c *gin.Context) {
	rec, err := s.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) listAttendance(c *gin.Context) {
	f := attendance.Filter{
		PersonKind:         attendance.PersonKind(c.Query("person_kind")),
		VerificationStatus: attendance.VerificationStatus(c.Query("verification_status")),
	}
	if v := c.Query("activity_id"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ActivityID = parsed
		}
	}
	if v := c.Query("person_id"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.PersonID = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	recs, err := s.records.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func (s *server) attendanceHistory(c *gin.Context) {
	events, err := s.workflow.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *server) verifyAttendance(c *gin.Context) {
	var req struct {
		Notes string `json:"notes" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.workflow.ManualVerify(c.Request.Context(), c.Param("id"), actorFrom(c), req.Notes)
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) rejectAttendance(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.workflow.Reject(c.Request.Context(), c.Param("id"), actorFrom(c), req.Reason)
	if err != nil {
		s.writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *server) writeWorkflowError(c *gin.Context, err error) {
	var it *verify.InvalidTransitionError
	if errors.As(err, &it) {
		c.JSON(http.StatusConflict, gin.H{"error": it.Error()})
		return
	}
	var ve *attendance.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Msg})
		return
	}
	if errors.Is(err, attendance.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Printf("verification action failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (s *server) syncStatus(c *gin.Context) {
	n, err := s.queue.PendingCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.collector.SetQueueDepth(n)
	c.JSON(http.StatusOK, gin.H{"pending_count": n, "last_error": s.queue.LastError()})
}

func actorFrom(c *gin.Context) string {
	claimsAny, _ := c.Get("claims")
	if claims, ok := claimsAny.(auth.Claims); ok && claims.Subject != "" {
		return claims.Subject
	}
	return verify.ActorSystem
}
