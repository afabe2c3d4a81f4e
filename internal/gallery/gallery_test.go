package gallery

import (
	"math"
	"testing"
)

func TestGalleryFromStore(t *testing.T) {
	s := newTestStore(t, 2)
	if _, err := s.Save("alice", [][]float64{{1, 0}, {0.9, 0.1}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("bob", [][]float64{{0, 1}}); err != nil {
		t.Fatal(err)
	}

	g, err := Load(s)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("Size() = %d, want 2", g.Size())
	}
	if g.TemplateCount() != 3 {
		t.Errorf("TemplateCount() = %d, want 3", g.TemplateCount())
	}
	if got := g.Templates("alice"); len(got) != 2 {
		t.Errorf("alice has %d templates, want 2", len(got))
	}
	if got := g.UserIDs(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("UserIDs() = %v, want sorted [alice bob]", got)
	}
}

func TestCandidatesSortedAndComplete(t *testing.T) {
	g := New(map[string][][]float64{
		"zed": {{1, 0}},
		"amy": {{0, 1}},
	}, 2)

	candidates := g.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].UserID != "amy" || candidates[1].UserID != "zed" {
		t.Errorf("candidates not sorted: %s, %s", candidates[0].UserID, candidates[1].UserID)
	}
}

func TestNearestUser(t *testing.T) {
	g := New(map[string][][]float64{
		"alice": {{1, 0, 0}},
		"bob":   {{0, 1, 0}},
	}, 3)

	owner, sim, ok := g.NearestUser([]float64{0.99, 0.01, 0})
	if !ok {
		t.Fatal("NearestUser found nothing")
	}
	if owner != "alice" {
		t.Errorf("owner = %q, want alice", owner)
	}
	if sim < 0.9 {
		t.Errorf("similarity = %v, want close to 1", sim)
	}
}

func TestNearestUserEmptyGallery(t *testing.T) {
	g := New(nil, 3)
	if _, _, ok := g.NearestUser([]float64{1, 0, 0}); ok {
		t.Error("empty gallery must report no neighbor")
	}
}

func TestNearestUserDimensionGuard(t *testing.T) {
	g := New(map[string][][]float64{"alice": {{1, 0}}}, 2)
	if _, _, ok := g.NearestUser([]float64{1, 0, 0}); ok {
		t.Error("probe with wrong dimension must report no neighbor")
	}
}

func TestNearestUserExactSimilarity(t *testing.T) {
	g := New(map[string][][]float64{"alice": {{1, 0}}}, 2)
	_, sim, ok := g.NearestUser([]float64{1, 0})
	if !ok {
		t.Fatal("no neighbor")
	}
	if math.Abs(sim-1) > 1e-6 {
		t.Errorf("similarity = %v, want 1", sim)
	}
}

func TestValidate(t *testing.T) {
	good := New(map[string][][]float64{"a": {{1, 0}}}, 2)
	if err := good.Validate(); err != nil {
		t.Errorf("Validate on good gallery: %v", err)
	}
	bad := New(map[string][][]float64{"a": {{1, 0, 0}}}, 2)
	if err := bad.Validate(); err == nil {
		t.Error("Validate must reject mismatched template dimension")
	}
}

func TestGalleryRoundTripFromEnrollmentShape(t *testing.T) {
	// Enrollment round-trip: K persisted vectors come back identically
	// through store load and gallery build.
	s := newTestStore(t, 4)
	k := 5
	vectors := make([][]float64, k)
	for i := range vectors {
		vectors[i] = []float64{float64(i), 1, 2, 3}
	}
	if _, err := s.Save("carol", vectors); err != nil {
		t.Fatal(err)
	}

	g, err := Load(s)
	if err != nil {
		t.Fatal(err)
	}
	got := g.Templates("carol")
	if len(got) != k {
		t.Fatalf("gallery has %d vectors for carol, want %d", len(got), k)
	}
	for i := range got {
		if got[i][0] != float64(i) {
			t.Errorf("vector %d out of order", i)
		}
	}
}
