package core

import "context"

// SearchResult represents a retrieved memory item with a relevance score and
// arbitrary metadata.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// MemoryRecord is one reflection outcome saved for future precedent lookups.
type MemoryRecord struct {
	Content  string
	Metadata map[string]any
}

// MemoryStore provides precedent retrieval and outcome recording for the
// reflection stage. Implementations can back Search with embeddings, keywords
// or any heuristic. Failures are advisory: callers log and continue.
type MemoryStore interface {
	Search(ctx context.Context, query string, filters map[string]any, limit int) ([]SearchResult, error)
	Save(ctx context.Context, record MemoryRecord) error
}
