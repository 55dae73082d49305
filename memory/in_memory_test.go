package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
)

func TestInMemoryStore_SearchRanksByOverlap(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, core.MemoryRecord{Content: "network timeout while calling the billing service"}))
	require.NoError(t, s.Save(ctx, core.MemoryRecord{Content: "syntax problem in the generated report"}))
	require.NoError(t, s.Save(ctx, core.MemoryRecord{Content: "network partition between billing and inventory"}))

	hits, err := s.Search(ctx, "billing network failure", nil, 0)
	require.NoError(t, err)

	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	for _, h := range hits {
		assert.Contains(t, h.Content, "billing")
	}
}

func TestInMemoryStore_FiltersAreExactMatch(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, core.MemoryRecord{
		Content:  "timeout fetching prices",
		Metadata: map[string]any{"kind": "reflection"},
	}))
	require.NoError(t, s.Save(ctx, core.MemoryRecord{
		Content:  "timeout fetching prices again",
		Metadata: map[string]any{"kind": "note"},
	}))

	hits, err := s.Search(ctx, "timeout fetching", map[string]any{"kind": "reflection"}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "reflection", hits[0].Metadata["kind"])
}

func TestInMemoryStore_LimitTruncates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, core.MemoryRecord{Content: "repeated network failure"}))
	}

	hits, err := s.Search(ctx, "network failure", nil, 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, 5, s.Len())
}

func TestInMemoryStore_EmptyQuery(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Save(context.Background(), core.MemoryRecord{Content: "anything"}))

	hits, err := s.Search(context.Background(), "", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
