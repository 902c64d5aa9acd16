package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/examena/examena-backend/internal/middleware"
	"github.com/examena/examena-backend/internal/model"
	"github.com/examena/examena-backend/internal/response"
	"github.com/examena/examena-backend/internal/service"
	"github.com/examena/examena-backend/internal/validator"
)

// ExamHandler handles exam session endpoints.
type ExamHandler struct {
	examService *service.ExamService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// StartExam godoc
// POST /api/v1/exam/start
// Creates a session with a randomized question subset and fixed deadline.
func (h *ExamHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.examService.StartSession(c.Request.Context(), claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		case errors.Is(err, service.ErrNoQuestionsAvailable):
			response.Fail(c, http.StatusConflict, response.ErrNoQuestionsAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// GetSession godoc
// GET /api/v1/exam/sessions/:session_id
// Returns the session header, ordered questions, and saved answers.
func (h *ExamHandler) GetSession(c *gin.Context) {
	claims, sessionID, ok := h.sessionRequest(c)
	if !ok {
		return
	}

	detail, err := h.examService.GetSessionDetail(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// GetSessionState godoc
// GET /api/v1/exam/sessions/:session_id/state
// Returns the remaining time and autosave progress (reload support).
func (h *ExamHandler) GetSessionState(c *gin.Context) {
	claims, sessionID, ok := h.sessionRequest(c)
	if !ok {
		return
	}

	state, err := h.examService.GetState(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Autosave godoc
// POST /api/v1/exam/sessions/:session_id/autosave
// Applies a batch of answer upserts; all-or-nothing.
func (h *ExamHandler) Autosave(c *gin.Context) {
	claims, sessionID, ok := h.sessionRequest(c)
	if !ok {
		return
	}

	var req model.AnswerBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.Autosave(c.Request.Context(), claims.UserID, sessionID, req.Answers); err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Submit godoc
// POST /api/v1/exam/sessions/:session_id/submit
// Applies the final answer batch and finalizes status + score.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims, sessionID, ok := h.sessionRequest(c)
	if !ok {
		return
	}

	var req model.AnswerBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.examService.Submit(c.Request.Context(), claims.UserID, sessionID, req.Answers)
	if err != nil {
		h.failFromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// sessionRequest extracts the claims and the session id path parameter.
func (h *ExamHandler) sessionRequest(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, sessionID, true
}

func (h *ExamHandler) failFromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	case errors.Is(err, service.ErrValidation):
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
