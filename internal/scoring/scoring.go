// Package scoring computes final exam scores. It is a pure function of
// the persisted session-question and answer state: recomputing from
// identical rows always yields the same result.
package scoring

// Row is the scoring view of one session question: its weight and
// whether the currently stored answer selects a correct option.
// Unanswered and cleared questions have Correct == false.
type Row struct {
	Marks   int
	Correct bool
}

// Result holds the outcome of scoring a session.
type Result struct {
	Score int `json:"score"`
	Total int `json:"total"`
}

// Score sums marks over all rows (total) and over correctly answered
// rows (score). No partial credit, no negative marking.
func Score(rows []Row) Result {
	var res Result
	for _, r := range rows {
		res.Total += r.Marks
		if r.Correct {
			res.Score += r.Marks
		}
	}
	return res
}
