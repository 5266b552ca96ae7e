// Package knowledge retrieves route-name hints that help the model map everyday place and line
// names onto GTFS identifiers.
package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// Document represents a piece of text with metadata.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score,omitempty"` // Similarity score
}

// Embedder is the interface for generating embeddings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the interface for storing and retrieving vectors.
type VectorStore interface {
	// Upsert inserts or updates documents and their vectors.
	Upsert(ctx context.Context, vectors [][]float32, documents []Document) error
	// Search searches for similar documents using a query vector.
	Search(ctx context.Context, query []float32, limit int) ([]Document, error)
}

// KnowledgeBase combines an Embedder and a VectorStore.
type KnowledgeBase struct {
	Embedder    Embedder
	VectorStore VectorStore
}

// NewKnowledgeBase creates a new KnowledgeBase.
func NewKnowledgeBase(embedder Embedder, store VectorStore) *KnowledgeBase {
	return &KnowledgeBase{
		Embedder:    embedder,
		VectorStore: store,
	}
}

// Ingest embeds docs and stores them.
func (kb *KnowledgeBase) Ingest(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := kb.Embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	return kb.VectorStore.Upsert(ctx, vectors, docs)
}

// Retrieve finds relevant documents for a query.
func (kb *KnowledgeBase) Retrieve(ctx context.Context, query string, limit int) ([]Document, error) {
	vectors, err := kb.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		return nil, nil
	}

	return kb.VectorStore.Search(ctx, vectors[0], limit)
}

// Context formats retrieved documents as text appended to a user message.
// It returns "" when there is nothing relevant.
func Context(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nRelevant Context:\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s\n", doc.Content)
	}
	return b.String()
}
