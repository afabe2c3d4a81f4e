package matching

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float64
		expected float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"scaled", []float64{1, 1}, []float64{5, 5}, 1},
		{"zero norm a", []float64{0, 0}, []float64{1, 2}, 0},
		{"zero norm b", []float64{1, 2}, []float64{0, 0}, 0},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	a := []float64{0.3, -1.2, 4.5, 0.01}
	b := []float64{-2.2, 0.7, 1.1, 3.3}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("similarity is not symmetric")
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	vectors := [][]float64{
		{1},
		{0.5, 0.5, 0.5},
		{-3, 2, 0.0001, 17},
	}
	for _, v := range vectors {
		if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-9 {
			t.Errorf("CosineSimilarity(v, v) = %v, want 1", got)
		}
	}
}

func TestUserScoreMeanPolicy(t *testing.T) {
	probe := []float64{1, 0}
	templates := [][]float64{
		{1, 0}, // sim 1
		{0, 1}, // sim 0
	}
	if got := UserScore(probe, templates); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("UserScore() = %v, want 0.5 (mean)", got)
	}
	if got := UserScore(probe, nil); got != 0 {
		t.Errorf("UserScore() with no templates = %v, want 0", got)
	}
}

func TestDecideEmptyGallery(t *testing.T) {
	r := Match([]float64{1, 0}, nil, 0.5)
	if r.Decision != DecisionReject {
		t.Errorf("decision = %v, want reject", r.Decision)
	}
	if r.Score != nil {
		t.Errorf("score = %v, want nil for empty gallery", *r.Score)
	}
	if r.UserID != "" {
		t.Errorf("user id = %q, want empty", r.UserID)
	}
}

func TestMatchExactProbe(t *testing.T) {
	candidates := []Candidate{
		{UserID: "alice", Templates: [][]float64{{1, 0, 0}}},
		{UserID: "bob", Templates: [][]float64{{0, 1, 0}}},
	}

	r := Match([]float64{1, 0, 0}, candidates, 0.5)
	if r.Decision != DecisionAccept {
		t.Fatalf("decision = %v, want accept", r.Decision)
	}
	if r.UserID != "alice" {
		t.Errorf("user id = %q, want alice", r.UserID)
	}
	if r.Score == nil || math.Abs(*r.Score-1) > 1e-9 {
		t.Errorf("score = %v, want 1", r.Score)
	}
}

func TestMatchTieYieldsUnknown(t *testing.T) {
	// Probe equidistant from both users: identical per-user scores.
	candidates := []Candidate{
		{UserID: "alice", Templates: [][]float64{{1, 0}}},
		{UserID: "bob", Templates: [][]float64{{0, 1}}},
	}
	probe := []float64{1, 1}

	r := Match(probe, candidates, 0.1)
	if r.Decision != DecisionUnknown {
		t.Fatalf("decision = %v, want unknown for tied scores", r.Decision)
	}
	if r.UserID != "" {
		t.Errorf("user id = %q, want empty on a tie", r.UserID)
	}
	if r.Score == nil {
		t.Error("score should still be reported on a tie")
	}
}

func TestThresholdOnlyMovesTheBoundary(t *testing.T) {
	// Score is fixed at 0.6; only the decision changes with the threshold.
	probe := []float64{1, 0}
	angle := math.Acos(0.6)
	candidates := []Candidate{
		{UserID: "alice", Templates: [][]float64{{math.Cos(angle), math.Sin(angle)}}},
	}

	low := Match(probe, candidates, 0.5)
	high := Match(probe, candidates, 0.7)

	if low.Decision != DecisionAccept {
		t.Errorf("threshold 0.5: decision = %v, want accept", low.Decision)
	}
	if high.Decision != DecisionReject {
		t.Errorf("threshold 0.7: decision = %v, want reject", high.Decision)
	}
	if *low.Score != *high.Score {
		t.Errorf("score changed with threshold: %v vs %v", *low.Score, *high.Score)
	}
	if math.Abs(*low.Score-0.6) > 1e-9 {
		t.Errorf("score = %v, want 0.6", *low.Score)
	}
}

func TestRankDeterministicOrder(t *testing.T) {
	candidates := []Candidate{
		{UserID: "zed", Templates: [][]float64{{1, 0}}},
		{UserID: "amy", Templates: [][]float64{{1, 0}}},
	}
	scores := Rank([]float64{1, 0}, candidates)
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	if scores[0].UserID != "amy" {
		t.Errorf("equal scores should order by user id, got %q first", scores[0].UserID)
	}
}

func TestDecideRejectNamesBestCandidate(t *testing.T) {
	candidates := []Candidate{
		{UserID: "alice", Templates: [][]float64{{0, 1}}},
		{UserID: "bob", Templates: [][]float64{{1, 1}}},
	}
	r := Match([]float64{1, 0}, candidates, 0.99)
	if r.Decision != DecisionReject {
		t.Fatalf("decision = %v, want reject", r.Decision)
	}
	if r.UserID != "bob" {
		t.Errorf("reject should name the best candidate, got %q", r.UserID)
	}
}
