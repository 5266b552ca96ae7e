// Package inmemory implements knowledge.VectorStore with brute-force cosine similarity.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/barekit/rihlat/pkg/knowledge"
)

type entry struct {
	vector []float32
	norm   float64
	doc    knowledge.Document
}

// Store keeps vectors in process memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry)}
}

// Upsert inserts or replaces documents by ID.
func (s *Store) Upsert(ctx context.Context, vectors [][]float32, documents []knowledge.Document) error {
	if len(vectors) != len(documents) {
		return fmt.Errorf("vectors and documents length mismatch: %d != %d", len(vectors), len(documents))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range documents {
		id := doc.ID
		if id == "" {
			id = fmt.Sprintf("doc-%d", len(s.entries))
			doc.ID = id
		}
		s.entries[id] = entry{vector: vectors[i], norm: norm(vectors[i]), doc: doc}
	}
	return nil
}

// Search returns the limit documents most similar to query, best first.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]knowledge.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qn := norm(query)
	if qn == 0 || limit <= 0 {
		return nil, nil
	}

	hits := make([]knowledge.Document, 0, len(s.entries))
	for _, e := range s.entries {
		if e.norm == 0 || len(e.vector) != len(query) {
			continue
		}
		var dot float64
		for i, v := range e.vector {
			dot += float64(v) * float64(query[i])
		}
		doc := e.doc
		doc.Score = float32(dot / (e.norm * qn))
		hits = append(hits, doc)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
