package model

import "time"

// Question represents a single bank question. Questions are immutable
// after seeding.
type Question struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Marks     int       `json:"marks"`
	CreatedAt time.Time `json:"created_at"`
	Options   []Option  `json:"options"`
}

// Option is one selectable choice for a question. IsCorrect is the
// answer key and must never reach a client.
type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"-"`
}

// QuestionPayload is a question as sent to exam takers, with the
// answer key stripped.
type QuestionPayload struct {
	ID      int64           `json:"id"`
	Text    string          `json:"text"`
	Options []OptionPayload `json:"options"`
}

// OptionPayload is an option without its correctness flag.
type OptionPayload struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// ForPayload converts a Question into its client-safe form.
func (q Question) ForPayload() QuestionPayload {
	opts := make([]OptionPayload, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionPayload{ID: o.ID, Text: o.Text})
	}
	return QuestionPayload{ID: q.ID, Text: q.Text, Options: opts}
}
