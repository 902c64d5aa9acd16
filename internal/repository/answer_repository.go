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
)

// ErrUnknownSessionQuestion is returned when an upsert references a
// session question that does not belong to the target session.
var ErrUnknownSessionQuestion = errors.New("session question does not belong to this session")

// AnswerRepository handles answer data access. Answers are upserts
// keyed by (session_id, session_question_id); there is never more than
// one row per key.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch applies an autosave batch in one transaction. The session
// row is locked first: concurrent batches for the same session
// serialize, and a terminal session rejects the whole batch with
// ErrSessionTerminal. Application is all-or-nothing.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, sessionID uuid.UUID, answers []model.AnswerSave) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockSessionStatus(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return ErrSessionTerminal
	}

	if err := upsertAnswersTx(ctx, tx, sessionID, answers, time.Now()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListBySession retrieves the current answers of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, session_question_id, selected_option_id, answered_at
		 FROM answers
		 WHERE session_id = $1
		 ORDER BY session_question_id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.SessionID, &a.SessionQuestionID, &a.SelectedOptionID, &a.AnsweredAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CountAnswered counts the session's answers holding a selection.
// Cleared answers (NULL selection) do not count.
func (r *AnswerRepository) CountAnswered(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM answers
		 WHERE session_id = $1 AND selected_option_id IS NOT NULL`, sessionID,
	).Scan(&n)
	return n, err
}

// upsertAnswersTx validates that every target session question belongs
// to the session, then upserts each value. answered_at only moves
// forward: GREATEST keeps it monotonic when writes race.
func upsertAnswersTx(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, answers []model.AnswerSave, answeredAt time.Time) error {
	if len(answers) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx,
		`SELECT id FROM session_questions WHERE session_id = $1`, sessionID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	valid := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		valid[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, a := range answers {
		if _, ok := valid[a.SessionQuestionID]; !ok {
			return ErrUnknownSessionQuestion
		}
	}

	for _, a := range answers {
		_, err = tx.Exec(ctx,
			`INSERT INTO answers (session_id, session_question_id, selected_option_id, answered_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (session_id, session_question_id) DO UPDATE
			 SET selected_option_id = EXCLUDED.selected_option_id,
			     answered_at = GREATEST(answers.answered_at, EXCLUDED.answered_at)`,
			sessionID, a.SessionQuestionID, a.SelectedOptionID, answeredAt,
		)
		if err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}
	}

	return nil
}
