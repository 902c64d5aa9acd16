package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Both submitted and
// auto_submitted are terminal; no transition leaves a terminal state.
type SessionStatus string

const (
	SessionStatusInProgress    SessionStatus = "in_progress"
	SessionStatusSubmitted     SessionStatus = "submitted"
	SessionStatusAutoSubmitted SessionStatus = "auto_submitted"
)

// Terminal reports whether the status permits no further mutation.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusAutoSubmitted
}

// ExamSession represents one user's timed exam attempt. EndsAt is fixed
// at creation and never changes; Score stays nil until the session
// reaches a terminal state.
type ExamSession struct {
	ID          uuid.UUID     `json:"id"`
	UserID      int           `json:"user_id"`
	StartedAt   time.Time     `json:"started_at"`
	EndsAt      time.Time     `json:"ends_at"`
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	Status      SessionStatus `json:"status"`
	Score       *int          `json:"score"`
}

// SessionQuestion binds one question to one ordered position within a
// session. The set is fixed at creation; order_index is contiguous
// from 0 in draw order.
type SessionQuestion struct {
	ID         int64     `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	OrderIndex int       `json:"order_index"`
}

// Answer is the single stored answer for a session question. Writes
// are upserts keyed by (session_id, session_question_id), never
// appends. A nil SelectedOptionID is an explicitly cleared answer.
type Answer struct {
	ID                int64     `json:"id"`
	SessionID         uuid.UUID `json:"session_id"`
	SessionQuestionID int64     `json:"session_question_id"`
	SelectedOptionID  *int64    `json:"selected_option_id"`
	AnsweredAt        time.Time `json:"answered_at"`
}

// AnswerSave is one upsert value in an autosave or submit batch.
type AnswerSave struct {
	SessionQuestionID int64  `json:"session_question_id" binding:"required"`
	SelectedOptionID  *int64 `json:"selected_option_id"`
}

// StartExamRequest is the payload for starting a new exam session.
// Zero-value fields fall back to configured defaults.
type StartExamRequest struct {
	NumQuestions    int `json:"num_questions" binding:"omitempty,min=1,max=200"`
	DurationMinutes int `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
}

// StartExamResponse is returned when a session is created.
type StartExamResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	Questions []QuestionPayload `json:"questions"`
	EndsAt    time.Time         `json:"ends_at"`
}

// AnswerBatchRequest carries a batch of answer upserts.
type AnswerBatchRequest struct {
	Answers []AnswerSave `json:"answers" binding:"dive"`
}

// SubmitResult is the finalized outcome of a session.
type SubmitResult struct {
	Status SessionStatus `json:"status"`
	Score  int           `json:"score"`
	Total  int           `json:"total"`
}

// SessionQuestionPayload pairs a session question with its client-safe
// question body, in fixed order.
type SessionQuestionPayload struct {
	SessionQuestionID int64           `json:"session_question_id"`
	Question          QuestionPayload `json:"question"`
}

// SessionDetail is the full reload view of a session: header, ordered
// questions, and the current answers.
type SessionDetail struct {
	Session   ExamSession              `json:"session"`
	Questions []SessionQuestionPayload `json:"questions"`
	Answers   []Answer                 `json:"answers"`
}

// SessionState is the lightweight countdown view used by clients on
// reload (remaining time plus autosave progress).
type SessionState struct {
	SessionID        uuid.UUID     `json:"session_id"`
	Status           SessionStatus `json:"status"`
	RemainingSeconds float64       `json:"remaining_seconds"`
	AnsweredCount    int           `json:"answered_count"`
	TotalQuestions   int           `json:"total_questions"`
}
