// Package gallery holds the enrolled templates: the on-disk template store
// and the in-memory snapshot the recognition engine scores against.
package gallery

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/facegate/facegate/internal/matching"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// Gallery is a read-only snapshot of all enrolled templates, built from the
// template store at session start. It is safe for concurrent readers and is
// never written back; reload means building a new snapshot.
type Gallery struct {
	dim   int
	users map[string][][]float64

	// graph indexes every individual template for fast nearest-template
	// lookups (enrollment duplicate guard). Decisions always go through
	// exact scoring in the matching package.
	graph   *hnsw.Graph[int64]
	idOwner map[int64]string
	mu      sync.RWMutex
}

// Load builds a snapshot from the current on-disk state of the store.
func Load(store *TemplateStore) (*Gallery, error) {
	users, err := store.LoadAll()
	if err != nil {
		return nil, err
	}
	return New(users, store.Dim()), nil
}

// New builds a snapshot from an explicit template map. Tests use this to
// inject synthetic galleries.
func New(users map[string][][]float64, dim int) *Gallery {
	g := &Gallery{
		dim:     dim,
		users:   users,
		idOwner: make(map[int64]string),
	}
	g.buildIndex()
	return g
}

func (g *Gallery) buildIndex() {
	if len(g.users) == 0 {
		return
	}

	graph := hnsw.NewGraph[int64]()
	graph.M = hnswMaxNeighbors
	graph.Ml = 1.0 / float64(hnswMaxNeighbors)
	graph.Distance = hnsw.CosineDistance

	ids := sortedUserIDs(g.users)
	var next int64
	for _, userID := range ids {
		for _, t := range g.users[userID] {
			vec := make([]float32, len(t))
			for i, x := range t {
				vec[i] = float32(x)
			}
			graph.Add(hnsw.MakeNode(next, vec))
			g.idOwner[next] = userID
			next++
		}
	}
	g.graph = graph
}

// Dim returns the embedding dimension of the snapshot.
func (g *Gallery) Dim() int { return g.dim }

// Size returns the number of enrolled users.
func (g *Gallery) Size() int { return len(g.users) }

// TemplateCount returns the total number of templates across all users.
func (g *Gallery) TemplateCount() int {
	n := 0
	for _, t := range g.users {
		n += len(t)
	}
	return n
}

// Templates returns one user's template vectors, nil if not enrolled.
func (g *Gallery) Templates(userID string) [][]float64 {
	return g.users[userID]
}

// UserIDs returns the enrolled user ids in sorted order.
func (g *Gallery) UserIDs() []string {
	return sortedUserIDs(g.users)
}

// Candidates presents the snapshot to the matching package, users in sorted
// order so rankings are deterministic.
func (g *Gallery) Candidates() []matching.Candidate {
	ids := sortedUserIDs(g.users)
	out := make([]matching.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, matching.Candidate{UserID: id, Templates: g.users[id]})
	}
	return out
}

// NearestUser returns the owner of the template closest to the probe and the
// exact cosine similarity to that template. Used by the enrollment duplicate
// guard; the approximate index only preselects, the reported similarity is
// recomputed exactly.
func (g *Gallery) NearestUser(probe []float64) (string, float64, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.graph == nil {
		return "", 0, false
	}
	if len(probe) != g.dim {
		return "", 0, false
	}

	query := make([]float32, len(probe))
	for i, x := range probe {
		query[i] = float32(x)
	}
	neighbors := g.graph.Search(query, 1)
	if len(neighbors) == 0 {
		return "", 0, false
	}

	owner := g.idOwner[neighbors[0].Key]
	vec := make([]float64, len(neighbors[0].Value))
	for i, x := range neighbors[0].Value {
		vec[i] = float64(x)
	}
	return owner, matching.CosineSimilarity(probe, vec), true
}

// Validate checks that every template in the snapshot has the expected
// dimension. LoadAll already filters bad artifacts, so a failure here means
// an injected gallery was malformed.
func (g *Gallery) Validate() error {
	for userID, templates := range g.users {
		for i, t := range templates {
			if len(t) != g.dim {
				return fmt.Errorf("user %s template %d has %d components, want %d: %w",
					userID, i, len(t), g.dim, ErrDimensionMismatch)
			}
		}
	}
	return nil
}

func sortedUserIDs(users map[string][][]float64) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
