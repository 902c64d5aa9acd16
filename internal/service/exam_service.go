package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/examena/examena-backend/internal/config"
	"github.com/examena/examena-backend/internal/model"
	"github.com/examena/examena-backend/internal/repository"
)

// Exam lifecycle errors surfaced to handlers.
var (
	ErrValidation           = errors.New("invalid input")
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrSessionNotFound      = errors.New("exam session not found")
	ErrAlreadySubmitted     = errors.New("exam session already submitted")
)

// QuestionBank is the read side of the question pool.
type QuestionBank interface {
	ListIDs(ctx context.Context) ([]int64, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.Question, error)
}

// SessionStore persists exam sessions and their question bindings.
// Create and Finalize are each one transaction.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession, questionIDs []int64) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	QuestionsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionQuestion, error)
	Finalize(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, submittedAt time.Time, answers []model.AnswerSave) (*model.SubmitResult, error)
	ListExpired(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// AnswerStore persists answer upserts for in-progress sessions.
type AnswerStore interface {
	UpsertBatch(ctx context.Context, sessionID uuid.UUID, answers []model.AnswerSave) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
	CountAnswered(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// ExamService drives the exam session lifecycle: creation with
// randomized question sampling, answer autosave, and time-bound
// submission with scoring.
type ExamService struct {
	cfg       *config.Config
	questions QuestionBank
	sessions  SessionStore
	answers   AnswerStore
	rdb       *redis.Client
	log       zerolog.Logger

	// rng is the injected randomness source for question sampling.
	// rand.Rand is not safe for concurrent use, hence the mutex.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewExamService creates a new ExamService. rdb may be nil to disable
// the deadline cache (used by tests and the CLI commands).
func NewExamService(
	cfg *config.Config,
	questions QuestionBank,
	sessions SessionStore,
	answers AnswerStore,
	rdb *redis.Client,
	rng *rand.Rand,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		cfg:       cfg,
		questions: questions,
		sessions:  sessions,
		answers:   answers,
		rdb:       rdb,
		rng:       rng,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// StartSession creates a session for the user: draws an unbiased random
// subset of the question bank, fixes its order, and persists the
// session plus its question bindings in one transaction. Returned
// question payloads never include the answer key.
func (s *ExamService) StartSession(ctx context.Context, userID int, req model.StartExamRequest) (*model.StartExamResponse, error) {
	numQuestions := req.NumQuestions
	if numQuestions == 0 {
		numQuestions = s.cfg.DefaultNumQuestions
	}
	duration := req.DurationMinutes
	if duration == 0 {
		duration = s.cfg.DefaultDurationMinutes
	}
	if numQuestions <= 0 || duration <= 0 {
		return nil, ErrValidation
	}

	pool, err := s.questions.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestionsAvailable
	}

	s.rngMu.Lock()
	drawn := sampleIDs(s.rng, pool, numQuestions)
	s.rngMu.Unlock()

	now := time.Now().UTC()
	session := &model.ExamSession{
		UserID:    userID,
		StartedAt: now,
		EndsAt:    now.Add(time.Duration(duration) * time.Minute),
	}

	if err := s.sessions.Create(ctx, session, drawn); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	questions, err := s.questions.GetByIDs(ctx, drawn)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	payloads := make([]model.QuestionPayload, 0, len(questions))
	for _, q := range questions {
		payloads = append(payloads, q.ForPayload())
	}

	s.cacheEndsAt(ctx, session)

	return &model.StartExamResponse{
		SessionID: session.ID,
		Questions: payloads,
		EndsAt:    session.EndsAt,
	}, nil
}

// Authorize loads a session and verifies ownership. A missing session
// and an ownership mismatch are indistinguishable to the caller, so a
// non-owner never learns whether the session exists.
func (s *ExamService) Authorize(ctx context.Context, userID int, sessionID uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// GetSessionDetail returns the full reload view of a session: header,
// questions in their fixed draw order, and all current answers.
func (s *ExamService) GetSessionDetail(ctx context.Context, userID int, sessionID uuid.UUID) (*model.SessionDetail, error) {
	session, err := s.Authorize(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	sqs, err := s.sessions.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}

	qids := make([]int64, 0, len(sqs))
	for _, sq := range sqs {
		qids = append(qids, sq.QuestionID)
	}

	questions, err := s.questions.GetByIDs(ctx, qids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	pairs := make([]model.SessionQuestionPayload, 0, len(sqs))
	for i, sq := range sqs {
		pairs = append(pairs, model.SessionQuestionPayload{
			SessionQuestionID: sq.ID,
			Question:          questions[i].ForPayload(),
		})
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	if answers == nil {
		answers = []model.Answer{}
	}

	return &model.SessionDetail{
		Session:   *session,
		Questions: pairs,
		Answers:   answers,
	}, nil
}

// Autosave applies a batch of answer upserts to an in-progress session.
// The batch is all-or-nothing; a terminal session rejects it whole.
func (s *ExamService) Autosave(ctx context.Context, userID int, sessionID uuid.UUID, answers []model.AnswerSave) error {
	if _, err := s.Authorize(ctx, userID, sessionID); err != nil {
		return err
	}

	if err := s.answers.UpsertBatch(ctx, sessionID, answers); err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionTerminal):
			return ErrAlreadySubmitted
		case errors.Is(err, repository.ErrUnknownSessionQuestion):
			return ErrValidation
		case errors.Is(err, pgx.ErrNoRows):
			return ErrSessionNotFound
		}
		return fmt.Errorf("upsert answers: %w", err)
	}
	return nil
}

// Submit finalizes a session: applies the final answer batch, decides
// the terminal status from the wall clock against the fixed deadline,
// and persists status and score as one atomic unit. A second Submit on
// a terminal session fails with ErrAlreadySubmitted; it never silently
// re-scores.
func (s *ExamService) Submit(ctx context.Context, userID int, sessionID uuid.UUID, answers []model.AnswerSave) (*model.SubmitResult, error) {
	session, err := s.Authorize(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, ErrAlreadySubmitted
	}

	now := time.Now().UTC()
	status := model.SessionStatusSubmitted
	if now.After(session.EndsAt) {
		status = model.SessionStatusAutoSubmitted
	}

	result, err := s.sessions.Finalize(ctx, sessionID, status, now, answers)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionTerminal):
			return nil, ErrAlreadySubmitted
		case errors.Is(err, repository.ErrUnknownSessionQuestion):
			return nil, ErrValidation
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	return result, nil
}

// GetState returns the countdown view of a session: remaining seconds
// against the cached deadline plus autosave progress. Deadline expiry
// is evaluated lazily; an expired session still reports its stored
// status until the next Submit or sweep.
func (s *ExamService) GetState(ctx context.Context, userID int, sessionID uuid.UUID) (*model.SessionState, error) {
	session, err := s.Authorize(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	sqs, err := s.sessions.QuestionsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}

	answered, err := s.answers.CountAnswered(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count answers: %w", err)
	}

	remaining := 0.0
	if !session.Status.Terminal() {
		endsAt := s.cachedEndsAt(ctx, session)
		remaining = time.Until(endsAt).Seconds()
		if remaining < 0 {
			remaining = 0
		}
	}

	return &model.SessionState{
		SessionID:        session.ID,
		Status:           session.Status,
		RemainingSeconds: remaining,
		AnsweredCount:    answered,
		TotalQuestions:   len(sqs),
	}, nil
}

// SweepExpired finalizes in-progress sessions whose deadline has
// passed, marking them auto_submitted with a score computed from their
// saved answers. Returns the number of sessions finalized.
func (s *ExamService) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := time.Now().UTC()

	expired, err := s.sessions.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	swept := 0
	for _, id := range expired {
		_, err := s.sessions.Finalize(ctx, id, model.SessionStatusAutoSubmitted, now, nil)
		if err != nil {
			// A concurrent Submit won the race; nothing to do.
			if errors.Is(err, repository.ErrSessionTerminal) {
				continue
			}
			s.log.Error().Err(err).Str("session_id", id.String()).Msg("Sweep finalize failed")
			continue
		}
		swept++
	}
	return swept, nil
}

// cacheEndsAt stores the session deadline in Redis. Failures are logged
// and ignored; PostgreSQL stays the source of truth.
func (s *ExamService) cacheEndsAt(ctx context.Context, session *model.ExamSession) {
	if s.rdb == nil {
		return
	}
	key := config.CacheKey.SessionEndsAtKey(session.ID.String())
	ttl := time.Until(session.EndsAt) + time.Hour
	if err := s.rdb.Set(ctx, key, session.EndsAt.Unix(), ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to cache deadline")
	}
}

// cachedEndsAt reads the deadline from Redis, falling back to the
// loaded session row on a miss and self-healing the cache.
func (s *ExamService) cachedEndsAt(ctx context.Context, session *model.ExamSession) time.Time {
	if s.rdb == nil {
		return session.EndsAt
	}

	key := config.CacheKey.SessionEndsAtKey(session.ID.String())
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Deadline cache read failed")
		}
		s.cacheEndsAt(ctx, session)
		return session.EndsAt
	}

	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return session.EndsAt
	}
	return time.Unix(unix, 0)
}
