package scoring

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		rows      []Row
		wantScore int
		wantTotal int
	}{
		{name: "no questions", rows: nil, wantScore: 0, wantTotal: 0},
		{
			name:      "all correct",
			rows:      []Row{{Marks: 1, Correct: true}, {Marks: 2, Correct: true}},
			wantScore: 3, wantTotal: 3,
		},
		{
			name:      "none answered",
			rows:      []Row{{Marks: 1}, {Marks: 2}},
			wantScore: 0, wantTotal: 3,
		},
		{
			name:      "partial sums exact marks",
			rows:      []Row{{Marks: 1, Correct: true}, {Marks: 2}, {Marks: 5, Correct: true}},
			wantScore: 6, wantTotal: 8,
		},
		{
			name:      "wrong answers contribute zero",
			rows:      []Row{{Marks: 3}, {Marks: 3}},
			wantScore: 0, wantTotal: 6,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.rows)
			if got.Score != tc.wantScore || got.Total != tc.wantTotal {
				t.Fatalf("Score() = {%d %d}, want {%d %d}", got.Score, got.Total, tc.wantScore, tc.wantTotal)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	rows := []Row{{Marks: 2, Correct: true}, {Marks: 3}, {Marks: 1, Correct: true}}

	first := Score(rows)
	for i := 0; i < 10; i++ {
		if got := Score(rows); got != first {
			t.Fatalf("recompute %d changed result: got {%d %d}, want {%d %d}", i, got.Score, got.Total, first.Score, first.Total)
		}
	}
}
