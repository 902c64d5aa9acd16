package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examena/examena-backend/internal/model"
	"github.com/examena/examena-backend/internal/scoring"
)

// ErrSessionTerminal is returned when a mutation targets a session that
// has already reached a terminal status.
var ErrSessionTerminal = errors.New("exam session is already submitted")

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Create inserts a session and its question bindings in one
// transaction. questionIDs carries the sampled draw order; order_index
// is assigned from the slice position and never re-shuffled afterwards.
func (r *ExamSessionRepository) Create(ctx context.Context, s *model.ExamSession, questionIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exam_sessions (user_id, started_at, ends_at, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		s.UserID, s.StartedAt, s.EndsAt, model.SessionStatusInProgress,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	s.Status = model.SessionStatusInProgress

	for idx, qid := range questionIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO session_questions (session_id, question_id, order_index)
			 VALUES ($1, $2, $3)`,
			s.ID, qid, idx,
		)
		if err != nil {
			return fmt.Errorf("insert session question: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a session by ID. Returns pgx.ErrNoRows if absent.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, started_at, ends_at, submitted_at, status, score
		 FROM exam_sessions
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.StartedAt, &s.EndsAt, &s.SubmittedAt, &s.Status, &s.Score)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// QuestionsBySession retrieves the session's question bindings in
// their fixed draw order.
func (r *ExamSessionRepository) QuestionsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.SessionQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, question_id, order_index
		 FROM session_questions
		 WHERE session_id = $1
		 ORDER BY order_index`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sqs []model.SessionQuestion
	for rows.Next() {
		var sq model.SessionQuestion
		if err := rows.Scan(&sq.ID, &sq.SessionID, &sq.QuestionID, &sq.OrderIndex); err != nil {
			return nil, err
		}
		sqs = append(sqs, sq)
	}
	return sqs, rows.Err()
}

// Finalize applies the final answer batch, computes the score, and
// writes status, score and submitted_at as one transaction. The session
// row is locked first so a concurrent Finalize or autosave serializes
// behind it; a session that is already terminal yields
// ErrSessionTerminal and nothing is written.
func (r *ExamSessionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, submittedAt time.Time, answers []model.AnswerSave) (*model.SubmitResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockSessionStatus(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if current.Terminal() {
		return nil, ErrSessionTerminal
	}

	// Final autosave runs before the status flip, inside the same
	// transaction, so it is exempt from the terminal-state write lock.
	if err := upsertAnswersTx(ctx, tx, sessionID, answers, submittedAt); err != nil {
		return nil, err
	}

	scoreRows, err := loadScoreRows(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	res := scoring.Score(scoreRows)

	_, err = tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, score = $2, submitted_at = $3
		 WHERE id = $4`,
		status, res.Score, submittedAt, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &model.SubmitResult{Status: status, Score: res.Score, Total: res.Total}, nil
}

// ListExpired retrieves ids of in-progress sessions whose deadline
// passed before the given instant. Used by the expiry sweep.
func (r *ExamSessionRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions
		 WHERE status = $1 AND ends_at < $2
		 ORDER BY ends_at
		 LIMIT $3`,
		model.SessionStatusInProgress, before, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// lockSessionStatus takes a row lock on the session and returns its
// current status. Returns pgx.ErrNoRows if the session does not exist.
func lockSessionStatus(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) (model.SessionStatus, error) {
	var status model.SessionStatus
	err := tx.QueryRow(ctx,
		`SELECT status FROM exam_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// loadScoreRows builds the scoring view of a session: one row per
// session question with its marks and whether the stored answer selects
// a correct option of that same question.
func loadScoreRows(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID) ([]scoring.Row, error) {
	rows, err := tx.Query(ctx,
		`SELECT q.marks, COALESCE(o.is_correct, FALSE)
		 FROM session_questions sq
		 JOIN questions q ON q.id = sq.question_id
		 LEFT JOIN answers a
		   ON a.session_question_id = sq.id AND a.session_id = sq.session_id
		 LEFT JOIN options o
		   ON o.id = a.selected_option_id AND o.question_id = sq.question_id
		 WHERE sq.session_id = $1`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scoreRows []scoring.Row
	for rows.Next() {
		var row scoring.Row
		if err := rows.Scan(&row.Marks, &row.Correct); err != nil {
			return nil, err
		}
		scoreRows = append(scoreRows, row)
	}
	return scoreRows, rows.Err()
}
