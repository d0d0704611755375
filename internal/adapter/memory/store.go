package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"studypartner/internal/apperr"
	"studypartner/internal/retrieval"
	"studypartner/internal/text"
)

// Store is an in-process vector store using brute-force cosine distance.
// It backs VECTOR_BACKEND=memory for local runs and tests.
type Store struct {
	mu      sync.RWMutex
	indices map[string]*index
}

type index struct {
	dimension int
	order     []string
	units     map[string]text.Unit
}

func NewStore() *Store {
	return &Store{indices: make(map[string]*index)}
}

// Upsert creates the index on first write and overwrites units by id.
func (s *Store) Upsert(_ context.Context, name string, units []text.Unit) error {
	if len(units) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indices[name]
	dim := 0
	if ok {
		dim = idx.dimension
	}
	for _, u := range units {
		if !u.Ready() {
			return fmt.Errorf("%w: unit %s is missing its embedding or keywords", apperr.ErrVectorStoreFailure, u.ID)
		}
		if dim == 0 {
			dim = len(u.Embedding)
		}
		if len(u.Embedding) != dim {
			return fmt.Errorf("%w: unit %s has %d dimensions, index %s has %d",
				apperr.ErrVectorStoreFailure, u.ID, len(u.Embedding), name, dim)
		}
	}

	if !ok {
		idx = &index{dimension: dim, units: make(map[string]text.Unit)}
		s.indices[name] = idx
	}
	for _, u := range units {
		if _, exists := idx.units[u.ID]; !exists {
			idx.order = append(idx.order, u.ID)
		}
		idx.units[u.ID] = cloneUnit(u)
	}
	return nil
}

// Query returns the k nearest units by cosine distance, closest first. Ties
// keep insertion order.
func (s *Store) Query(_ context.Context, name string, vec []float32, k int) ([]retrieval.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indices[name]
	if !ok {
		return nil, fmt.Errorf("%w: index %s does not exist", apperr.ErrVectorStoreFailure, name)
	}
	if len(vec) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index %s has %d",
			apperr.ErrVectorStoreFailure, len(vec), name, idx.dimension)
	}

	results := make([]retrieval.Result, 0, len(idx.order))
	for _, id := range idx.order {
		u := idx.units[id]
		results = append(results, retrieval.Result{
			ID:       u.ID,
			Text:     u.Text,
			Source:   u.SourceDocument,
			Page:     u.PageNumber,
			Keywords: append([]string{}, u.Keywords...),
			Distance: cosineDistance(vec, u.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of units in an index, zero when it does not exist.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.indices[name]; ok {
		return len(idx.units), nil
	}
	return 0, nil
}

func (s *Store) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indices, name)
	return nil
}

// Get returns a stored unit, for inspection.
func (s *Store) Get(name, id string) (text.Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[name]
	if !ok {
		return text.Unit{}, false
	}
	u, ok := idx.units[id]
	return cloneUnit(u), ok
}

func cloneUnit(u text.Unit) text.Unit {
	u.Keywords = append([]string{}, u.Keywords...)
	u.Embedding = append([]float32{}, u.Embedding...)
	return u
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
