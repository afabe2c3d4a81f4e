// Package matching implements the scoring and decision logic for face
// recognition. It is a pure function of (probe, candidates, threshold) and
// has no knowledge of storage, cameras, or databases.
package matching

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ScoreTolerance is the float tolerance used when comparing per-user scores.
// Two users whose scores differ by less than this are considered tied, and a
// tied top score forces an unknown decision instead of an arbitrary pick.
const ScoreTolerance = 1e-6

// Decision is the outcome of matching one probe against the gallery.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionUnknown Decision = "unknown"
)

// Candidate is one enrolled user's template set, as presented by the gallery.
type Candidate struct {
	UserID    string
	Templates [][]float64
}

// Score is a per-user similarity result.
type Score struct {
	UserID string
	Value  float64
}

// Result is the decision for a single probe vector.
type Result struct {
	// UserID is the matched user, empty for reject-with-no-candidate and
	// unknown decisions.
	UserID string
	// Score is nil when the gallery was empty and no comparison happened.
	Score     *float64
	Threshold float64
	Decision  Decision
}

// CosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched lengths or a zero-norm vector yield 0: a degenerate probe or
// template must not count as evidence either way.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (normA * normB)
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// UserScore aggregates the similarity between a probe and one user's
// templates. The policy is the mean over all templates, which rewards
// consistency across enrollment angles over a single lucky sample.
func UserScore(probe []float64, templates [][]float64) float64 {
	if len(templates) == 0 {
		return 0
	}
	var sum float64
	for _, t := range templates {
		sum += CosineSimilarity(probe, t)
	}
	return sum / float64(len(templates))
}

// Rank scores the probe against every candidate and returns the scores in
// descending order. Candidates with equal scores keep a stable order by
// user id so the ranking is deterministic.
func Rank(probe []float64, candidates []Candidate) []Score {
	scores := make([]Score, 0, len(candidates))
	for _, c := range candidates {
		scores = append(scores, Score{UserID: c.UserID, Value: UserScore(probe, c.Templates)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Value != scores[j].Value {
			return scores[i].Value > scores[j].Value
		}
		return scores[i].UserID < scores[j].UserID
	})
	return scores
}

// Decide converts ranked scores into a decision for the given threshold.
//
// Empty gallery: reject with a nil score. Tied top scores (within
// ScoreTolerance): unknown, regardless of threshold. Otherwise the best
// candidate is accepted iff its score reaches the threshold; a rejection
// still names the best candidate so the caller can audit near-misses.
func Decide(scores []Score, threshold float64) Result {
	if len(scores) == 0 {
		return Result{Threshold: threshold, Decision: DecisionReject}
	}

	best := scores[0]
	if len(scores) > 1 && scores[0].Value-scores[1].Value < ScoreTolerance {
		v := best.Value
		return Result{Score: &v, Threshold: threshold, Decision: DecisionUnknown}
	}

	v := best.Value
	if v >= threshold {
		return Result{UserID: best.UserID, Score: &v, Threshold: threshold, Decision: DecisionAccept}
	}
	return Result{UserID: best.UserID, Score: &v, Threshold: threshold, Decision: DecisionReject}
}

// Match is the full pipeline for one probe: rank all candidates and decide.
func Match(probe []float64, candidates []Candidate, threshold float64) Result {
	return Decide(Rank(probe, candidates), threshold)
}
