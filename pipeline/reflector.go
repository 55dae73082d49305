package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
)

// errorTypePatterns maps failure-text keywords to error types. Checked in
// order; first match wins.
var errorTypePatterns = []struct {
	keyword   string
	errorType core.ErrorType
}{
	{"timeout", core.ErrorTimeout},
	{"timed out", core.ErrorTimeout},
	{"permission", core.ErrorPermission},
	{"access denied", core.ErrorPermission},
	{"not found", core.ErrorNotFound},
	{"invalid input", core.ErrorInvalidInput},
	{"network", core.ErrorNetwork},
	{"connection", core.ErrorNetwork},
	{"syntax", core.ErrorSyntax},
	{"type error", core.ErrorTypeMismatch},
	{"attribute", core.ErrorAttribute},
	{"key error", core.ErrorKey},
	{"value error", core.ErrorValue},
	{"index", core.ErrorIndex},
}

var errorCategories = map[core.ErrorType]core.ErrorCategory{
	core.ErrorSyntax:       core.CategoryCode,
	core.ErrorTypeMismatch: core.CategoryCode,
	core.ErrorAttribute:    core.CategoryCode,
	core.ErrorKey:          core.CategoryCode,
	core.ErrorValue:        core.CategoryCode,
	core.ErrorIndex:        core.CategoryCode,
	core.ErrorTimeout:      core.CategoryInfrastructure,
	core.ErrorNetwork:      core.CategoryInfrastructure,
	core.ErrorPermission:   core.CategoryAccess,
	core.ErrorNotFound:     core.CategoryRuntime,
	core.ErrorInvalidInput: core.CategoryRuntime,
	core.ErrorUnknown:      core.CategoryRuntime,
}

// Reflector analyzes step failures and proposes fixes. Classification is
// deterministic keyword matching; root cause analysis and fix generation use
// the model when one is configured. Memory lookups and saves are advisory.
type Reflector struct {
	model  model.Model
	memory core.MemoryStore
	logger logging.Logger
}

// ReflectorOptions configures a Reflector.
type ReflectorOptions struct {
	// Model enables root cause analysis and fix generation.
	Model model.Model

	// Memory enables precedent lookup and outcome recording.
	Memory core.MemoryStore

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewReflector creates a reflector.
func NewReflector(optFns ...func(o *ReflectorOptions)) *Reflector {
	opts := ReflectorOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Reflector{model: opts.Model, memory: opts.Memory, logger: opts.Logger}
}

// ClassifyError derives the fine-grained error type from a failure text.
func ClassifyError(failureText string) core.ErrorType {
	lower := strings.ToLower(failureText)
	for _, p := range errorTypePatterns {
		if strings.Contains(lower, p.keyword) {
			return p.errorType
		}
	}
	return core.ErrorUnknown
}

// Categorize maps an error type to its coarse category.
func Categorize(errorType core.ErrorType) core.ErrorCategory {
	if cat, ok := errorCategories[errorType]; ok {
		return cat
	}
	return core.CategoryRuntime
}

// Reflect analyzes one failed step attempt and proposes a fix. It never
// fails: when the model or memory are unavailable the result degrades to the
// deterministic classification.
func (r *Reflector) Reflect(ctx context.Context, stepDescription, failureText string, validation *core.ValidationResult) core.ReflectionResult {
	errorType := ClassifyError(failureText)

	result := core.ReflectionResult{
		Analysis: core.FailureAnalysis{
			ErrorType: errorType,
			Category:  Categorize(errorType),
			RootCause: failureText,
		},
	}
	if validation != nil {
		result.Improvements = append(result.Improvements, validation.Issues...)
	}

	result.SimilarSituations = r.searchPrecedents(ctx, failureText)

	if r.model == nil {
		return result
	}

	r.analyzeRootCause(ctx, stepDescription, failureText, &result)
	result.SuggestedFix = r.suggestFix(ctx, stepDescription, failureText, result.Analysis)

	return result
}

// searchPrecedents queries reflection memory for similar past failures.
// Failures are logged and swallowed.
func (r *Reflector) searchPrecedents(ctx context.Context, failureText string) []core.SearchResult {
	if r.memory == nil {
		return nil
	}

	similar, err := r.memory.Search(ctx, failureText, map[string]any{"kind": "reflection"}, 3)
	if err != nil {
		r.logger.Warn("precedent lookup failed", "error", err)
		return nil
	}
	return similar
}

// analyzeRootCause asks the model for a structured failure analysis and
// merges the parseable parts into the result.
func (r *Reflector) analyzeRootCause(ctx context.Context, stepDescription, failureText string, result *core.ReflectionResult) {
	var precedents strings.Builder
	for _, s := range result.SimilarSituations {
		fmt.Fprintf(&precedents, "- %s\n", s.Content)
	}

	prompt := fmt.Sprintf(`Analyze this task step failure.

Step: %s
Failure: %s
Similar past failures:
%s
Respond with JSON: {"root_cause": "...", "contributing_factors": ["..."], "severity": "low|medium|high", "preventable": true|false}`,
		stepDescription, failureText, precedents.String())

	answer, err := model.Complete(ctx, r.model, model.Request{Prompt: prompt})
	if err != nil {
		r.logger.Warn("root cause analysis failed", "error", err)
		return
	}

	if rc := gjson.Get(answer, "root_cause"); rc.Exists() {
		result.Analysis.RootCause = rc.String()
	}
	for _, f := range gjson.Get(answer, "contributing_factors").Array() {
		result.Analysis.ContributingFactors = append(result.Analysis.ContributingFactors, f.String())
	}
	if sev := gjson.Get(answer, "severity"); sev.Exists() {
		result.Analysis.Severity = sev.String()
	}
	result.Analysis.Preventable = gjson.Get(answer, "preventable").Bool()
}

// suggestFix asks the model for a structured remediation proposal.
func (r *Reflector) suggestFix(ctx context.Context, stepDescription, failureText string, analysis core.FailureAnalysis) *core.SuggestedFix {
	prompt := fmt.Sprintf(`Propose a fix for this failed task step.

Step: %s
Failure: %s
Error type: %s (%s)
Root cause: %s

Respond with JSON: {"description": "...", "suggested_changes": ["..."], "alternative_approach": "..."}`,
		stepDescription, failureText, analysis.ErrorType, analysis.Category, analysis.RootCause)

	answer, err := model.Complete(ctx, r.model, model.Request{Prompt: prompt})
	if err != nil {
		r.logger.Warn("fix generation failed", "error", err)
		return nil
	}

	desc := gjson.Get(answer, "description").String()
	if desc == "" {
		return nil
	}

	fix := &core.SuggestedFix{
		Description:         desc,
		AlternativeApproach: gjson.Get(answer, "alternative_approach").String(),
	}
	for _, c := range gjson.Get(answer, "suggested_changes").Array() {
		fix.SuggestedChanges = append(fix.SuggestedChanges, c.String())
	}
	return fix
}

// ReportOutcome records whether a reflection's fix helped, for future
// precedent lookups. Fire-and-forget: failures are logged and swallowed.
func (r *Reflector) ReportOutcome(ctx context.Context, stepDescription string, reflection core.ReflectionResult, fixWorked bool) {
	if r.memory == nil {
		return
	}

	record := core.MemoryRecord{
		Content: fmt.Sprintf("step %q failed with %s: %s", stepDescription, reflection.Analysis.ErrorType, reflection.Analysis.RootCause),
		Metadata: map[string]any{
			"kind":       "reflection",
			"error_type": string(reflection.Analysis.ErrorType),
			"category":   string(reflection.Analysis.Category),
			"fix_worked": fixWorked,
		},
	}
	if reflection.SuggestedFix != nil {
		record.Metadata["fix"] = reflection.SuggestedFix.Description
	}

	if err := r.memory.Save(ctx, record); err != nil {
		r.logger.Warn("reflection outcome save failed", "error", err)
	}
}
