package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/examena/examena-backend/internal/model"
)

// QuestionRepository handles question bank data access. The bank is
// read-mostly: rows are written once at seeding time and never mutated.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListIDs retrieves the ids of every question in the bank.
func (r *QuestionRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM questions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetByIDs retrieves questions with their options for the given ids.
// The result order matches the input order so a sampled draw order is
// preserved on the way out.
func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Question, error) {
	if len(ids) == 0 {
		return []model.Question{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, text, marks, created_at
		 FROM questions WHERE id = ANY($1)`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*model.Question, len(ids))
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Marks, &q.CreatedAt); err != nil {
			return nil, err
		}
		byID[q.ID] = &q
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT id, question_id, text, is_correct
		 FROM options WHERE question_id = ANY($1)
		 ORDER BY id`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer optRows.Close()

	for optRows.Next() {
		var o model.Option
		if err := optRows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		if q, ok := byID[o.QuestionID]; ok {
			q.Options = append(q.Options, o)
		}
	}
	if err := optRows.Err(); err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %d not found", id)
		}
		questions = append(questions, *q)
	}
	return questions, nil
}

// Create inserts a question together with its options in one
// transaction. Used by the seeding command.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (text, marks) VALUES ($1, $2)
		 RETURNING id, created_at`,
		q.Text, q.Marks,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	for i := range q.Options {
		o := &q.Options[i]
		o.QuestionID = q.ID
		err = tx.QueryRow(ctx,
			`INSERT INTO options (question_id, text, is_correct)
			 VALUES ($1, $2, $3)
			 RETURNING id`,
			o.QuestionID, o.Text, o.IsCorrect,
		).Scan(&o.ID)
		if err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}

	return tx.Commit(ctx)
}
