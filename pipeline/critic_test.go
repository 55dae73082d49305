package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
)

func success(result any) core.ExecutionResult {
	return core.ExecutionResult{Status: core.ExecutionSuccess, Result: result}
}

func TestCritic_ValidResult(t *testing.T) {
	c := NewCritic()

	v := c.Validate(context.Background(), "summarize the quarterly report",
		success("The quarterly report shows revenue growth of 12% driven by the summarize initiative."), nil)

	assert.True(t, v.IsValid)
	assert.Equal(t, 1.0, v.Score)
	assert.Empty(t, v.Issues)
	assert.Equal(t, core.ValidationComprehensive, v.Kind)
}

func TestCritic_EmptyResultInvalid(t *testing.T) {
	c := NewCritic()

	v := c.Validate(context.Background(), "summarize the report", success(nil), nil)

	assert.False(t, v.IsValid)
	assert.NotEmpty(t, v.Issues)
}

func TestCritic_ErrorKeywordPenalized(t *testing.T) {
	c := NewCritic()

	v := c.Validate(context.Background(), "compute the totals",
		success("The computation failed with an exception in the totals module."), nil)

	assert.False(t, v.IsValid, "error indicators record an issue")
	assert.Contains(t, v.Issues[0], "error indicator")
}

func TestCritic_StructuralSchema(t *testing.T) {
	c := NewCritic()
	requirements := map[string]any{
		"expected_schema": map[string]any{
			"required": []any{"name", "count"},
			"properties": map[string]any{
				"name":  map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer"},
			},
		},
	}

	tests := []struct {
		name       string
		result     any
		score      float64
		issueCount int
	}{
		{
			name:   "all fields present and typed",
			result: map[string]any{"name": "report", "count": float64(3)},
			score:  1.0,
		},
		{
			name:       "missing required field",
			result:     map[string]any{"name": "report"},
			score:      0.8,
			issueCount: 1,
		},
		{
			name:   "type mismatch is soft",
			result: map[string]any{"name": "report", "count": "three"},
			score:  0.9,
		},
		{
			name:       "not an object",
			result:     "plain text",
			score:      0.0,
			issueCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.checkStructural(tt.result, requirements)
			assert.InDelta(t, tt.score, v.Score, 1e-9)
			assert.Len(t, v.Issues, tt.issueCount)
		})
	}
}

func TestCritic_FunctionalRequirements(t *testing.T) {
	c := NewCritic()

	v := c.checkFunctional("the answer is 42", map[string]any{
		"must_contain":     []any{"42", "definitely missing"},
		"must_not_contain": []any{"answer"},
		"min_length":       100,
	})

	// -0.3 missing must_contain, -0.3 must_not_contain hit, -0.2 too short.
	assert.InDelta(t, 0.2, v.Score, 1e-9)
	assert.Len(t, v.Issues, 2, "length bound is soft, content checks are hard")
}

func TestCritic_QualityChecks(t *testing.T) {
	c := NewCritic()

	t.Run("empty is zero", func(t *testing.T) {
		v := c.checkQuality("")
		assert.Equal(t, 0.0, v.Score)
		assert.NotEmpty(t, v.Issues)
	})

	t.Run("placeholder recorded", func(t *testing.T) {
		v := c.checkQuality("This section is a TODO item for later.")
		assert.InDelta(t, 0.8, v.Score, 1e-9)
		assert.Len(t, v.Issues, 1)
	})

	t.Run("short result soft penalty", func(t *testing.T) {
		v := c.checkQuality("short")
		assert.InDelta(t, 0.7, v.Score, 1e-9)
		assert.Empty(t, v.Issues)
	})
}

func TestCritic_ScoreClamped(t *testing.T) {
	c := NewCritic()

	// Many violations must not push the score below zero.
	v := c.checkFunctional("x", map[string]any{
		"must_contain": []any{"a", "b", "c", "d", "e"},
	})
	assert.Equal(t, 0.0, v.Score)
}

// Improving a result never lowers its score.
func TestCritic_ValidationMonotonicity(t *testing.T) {
	c := NewCritic()
	task := "describe the deployment process"

	weak := c.Validate(context.Background(), task, success("ok"), nil)
	better := c.Validate(context.Background(), task,
		success("The deployment process starts with a build, then promotes the artifact through staging."), nil)

	assert.GreaterOrEqual(t, better.Score, weak.Score)
	assert.True(t, better.IsValid)
}

func TestCritic_RelevanceProbe(t *testing.T) {
	m := model.NewMockModel("probe")
	m.AddResponse("Is this result relevant", "no")

	c := NewCritic(func(o *CriticOptions) { o.Model = m })

	v := c.Validate(context.Background(), "describe the deployment process",
		success("The deployment process starts with a build, then promotes the artifact through staging."), nil)

	assert.False(t, v.IsValid)
	require.NotEmpty(t, v.Issues)
	assert.Contains(t, v.Issues[0], "not relevant")
}
