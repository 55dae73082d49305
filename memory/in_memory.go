package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/taskmesh/taskmesh/core"
)

// InMemoryStore is a process-local MemoryStore backed by keyword overlap
// scoring. Suitable for tests and single-process deployments; use the qdrant
// subpackage for semantic retrieval at scale.
//
// Search tokenizes the query and each record, scores by the fraction of query
// tokens present in the record, applies metadata filters with exact match
// semantics and returns hits ordered by descending score.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []storedRecord
}

type storedRecord struct {
	id       string
	content  string
	tokens   map[string]struct{}
	metadata map[string]any
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Save implements core.MemoryStore.
func (s *InMemoryStore) Save(_ context.Context, record core.MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, storedRecord{
		id:       uuid.NewString(),
		content:  record.Content,
		tokens:   tokenize(record.Content),
		metadata: record.Metadata,
	})
	return nil
}

// Search implements core.MemoryStore.
func (s *InMemoryStore) Search(_ context.Context, query string, filters map[string]any, limit int) ([]core.SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []core.SearchResult
	for _, r := range s.records {
		if !matchesFilters(r.metadata, filters) {
			continue
		}
		score := overlapScore(queryTokens, r.tokens)
		if score == 0 {
			continue
		}
		hits = append(hits, core.SearchResult{
			ID:       r.id,
			Content:  r.content,
			Score:    score,
			Metadata: r.metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matchesFilters(metadata, filters map[string]any) bool {
	for k, want := range filters {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

func overlapScore(query map[string]struct{}, record map[string]struct{}) float64 {
	shared := 0
	for t := range query {
		if _, ok := record[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) > 2 {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}
