package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
)

type fakeMemory struct {
	saved   []core.MemoryRecord
	results []core.SearchResult
	fail    bool
}

func (m *fakeMemory) Search(context.Context, string, map[string]any, int) ([]core.SearchResult, error) {
	if m.fail {
		return nil, errors.New("memory unavailable")
	}
	return m.results, nil
}

func (m *fakeMemory) Save(_ context.Context, record core.MemoryRecord) error {
	if m.fail {
		return errors.New("memory unavailable")
	}
	m.saved = append(m.saved, record)
	return nil
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		text string
		want core.ErrorType
	}{
		{"request timed out after 30s", core.ErrorTimeout},
		{"permission denied for resource", core.ErrorPermission},
		{"resource not found", core.ErrorNotFound},
		{"invalid input: missing field", core.ErrorInvalidInput},
		{"network unreachable", core.ErrorNetwork},
		{"connection refused", core.ErrorNetwork},
		{"syntax problem near line 3", core.ErrorSyntax},
		{"type error: expected string", core.ErrorTypeMismatch},
		{"attribute missing on object", core.ErrorAttribute},
		{"key error: 'name'", core.ErrorKey},
		{"value error: out of range", core.ErrorValue},
		{"index out of bounds", core.ErrorIndex},
		{"something inexplicable happened", core.ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.text))
		})
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, core.CategoryCode, Categorize(core.ErrorSyntax))
	assert.Equal(t, core.CategoryInfrastructure, Categorize(core.ErrorTimeout))
	assert.Equal(t, core.CategoryAccess, Categorize(core.ErrorPermission))
	assert.Equal(t, core.CategoryRuntime, Categorize(core.ErrorUnknown))
}

func TestReflector_DeterministicWithoutModel(t *testing.T) {
	r := NewReflector()

	result := r.Reflect(context.Background(), "fetch the data", "network unreachable", nil)

	assert.Equal(t, core.ErrorNetwork, result.Analysis.ErrorType)
	assert.Equal(t, core.CategoryInfrastructure, result.Analysis.Category)
	assert.Equal(t, "network unreachable", result.Analysis.RootCause)
	assert.Nil(t, result.SuggestedFix)
}

func TestReflector_ModelBackedAnalysis(t *testing.T) {
	m := model.NewMockModel("reflector")
	m.AddResponse("Analyze this task step failure",
		`{"root_cause": "the endpoint moved", "contributing_factors": ["stale config"], "severity": "medium", "preventable": true}`)
	m.AddResponse("Propose a fix",
		`{"description": "update the endpoint url", "suggested_changes": ["edit config"], "alternative_approach": "use service discovery"}`)

	mem := &fakeMemory{results: []core.SearchResult{{ID: "1", Content: "same failure last week", Score: 0.9}}}

	r := NewReflector(func(o *ReflectorOptions) {
		o.Model = m
		o.Memory = mem
	})

	result := r.Reflect(context.Background(), "fetch the data", "connection refused", nil)

	assert.Equal(t, core.ErrorNetwork, result.Analysis.ErrorType)
	assert.Equal(t, "the endpoint moved", result.Analysis.RootCause)
	assert.Equal(t, []string{"stale config"}, result.Analysis.ContributingFactors)
	assert.Equal(t, "medium", result.Analysis.Severity)
	assert.True(t, result.Analysis.Preventable)

	require.NotNil(t, result.SuggestedFix)
	assert.Equal(t, "update the endpoint url", result.SuggestedFix.Description)
	assert.Equal(t, "use service discovery", result.SuggestedFix.AlternativeApproach)

	require.Len(t, result.SimilarSituations, 1)
	assert.Equal(t, "same failure last week", result.SimilarSituations[0].Content)
}

func TestReflector_MemoryFailureIsSwallowed(t *testing.T) {
	mem := &fakeMemory{fail: true}
	r := NewReflector(func(o *ReflectorOptions) { o.Memory = mem })

	result := r.Reflect(context.Background(), "step", "timeout waiting for reply", nil)
	assert.Equal(t, core.ErrorTimeout, result.Analysis.ErrorType)
	assert.Empty(t, result.SimilarSituations)

	// Saving the outcome must not fail either.
	r.ReportOutcome(context.Background(), "step", result, false)
}

func TestReflector_ReportOutcome(t *testing.T) {
	mem := &fakeMemory{}
	r := NewReflector(func(o *ReflectorOptions) { o.Memory = mem })

	reflection := r.Reflect(context.Background(), "parse the file", "syntax problem at line 2", nil)
	r.ReportOutcome(context.Background(), "parse the file", reflection, true)

	require.Len(t, mem.saved, 1)
	assert.Equal(t, "reflection", mem.saved[0].Metadata["kind"])
	assert.Equal(t, true, mem.saved[0].Metadata["fix_worked"])
	assert.Equal(t, string(core.ErrorSyntax), mem.saved[0].Metadata["error_type"])
}

func TestReflector_ValidationIssuesBecomeImprovements(t *testing.T) {
	r := NewReflector()
	validation := &core.ValidationResult{Issues: []string{"result is empty"}}

	result := r.Reflect(context.Background(), "step", "unhelpful output", validation)
	assert.Equal(t, []string{"result is empty"}, result.Improvements)
}
