package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
)

// Scoring constants for the four validation sub-checks. Hard problems record
// an issue in addition to the deduction; soft signals only lower the score.
const (
	penaltyMissingField    = 0.2
	penaltyTypeMismatch    = 0.1
	penaltyErrorKeyword    = 0.5
	penaltyNoOverlap       = 0.3
	penaltyLowOverlap      = 0.2
	penaltyIrrelevant      = 0.3
	penaltyMustContain     = 0.3
	penaltyMinLength       = 0.2
	penaltyMaxLength       = 0.1
	penaltyTooShort        = 0.3
	penaltyPlaceholder     = 0.2
	penaltyNoTerminator    = 0.1
	validThreshold         = 0.6
	lowOverlapRatio        = 0.3
	shortResultChars       = 10
	terminatorProbeMinimum = 100
)

var (
	errorKeywords       = []string{"error", "failed", "exception", "traceback", "none"}
	placeholderMarkers  = []string{"TODO", "FIXME", "XXX", "placeholder"}
	sentenceTerminators = ".!?"
)

// Critic validates execution results. It runs four independent sub-checks
// (structural, semantic, functional, quality), averages their scores and
// declares a result valid only when the average clears the threshold and no
// check recorded an issue.
type Critic struct {
	model  model.Model
	logger logging.Logger
}

// CriticOptions configures a Critic.
type CriticOptions struct {
	// Model enables the semantic relevance probe. Without it the probe is
	// skipped; all other checks are deterministic.
	Model model.Model

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// NewCritic creates a critic.
func NewCritic(optFns ...func(o *CriticOptions)) *Critic {
	opts := CriticOptions{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Critic{model: opts.Model, logger: opts.Logger}
}

// Validate runs the comprehensive check: all four sub-checks, scores clamped
// to [0,1] and averaged.
func (c *Critic) Validate(ctx context.Context, taskDescription string, result core.ExecutionResult, requirements map[string]any) core.ValidationResult {
	text := resultText(result.Result)

	checks := []core.ValidationResult{
		c.checkStructural(result.Result, requirements),
		c.checkSemantic(ctx, taskDescription, text),
		c.checkFunctional(text, requirements),
		c.checkQuality(text),
	}

	var sum float64
	var issues []string
	for _, check := range checks {
		sum += check.Score
		issues = append(issues, check.Issues...)
	}
	avg := sum / float64(len(checks))

	return core.ValidationResult{
		IsValid: avg >= validThreshold && len(issues) == 0,
		Score:   avg,
		Issues:  issues,
		Kind:    core.ValidationComprehensive,
	}
}

// checkStructural verifies the result against an expected schema from the
// requirements, or penalizes null/empty results when no schema is given.
func (c *Critic) checkStructural(result any, requirements map[string]any) core.ValidationResult {
	v := core.ValidationResult{Score: 1.0, Kind: core.ValidationStructural}

	schema, _ := requirements["expected_schema"].(map[string]any)
	if schema == nil {
		if result == nil || resultText(result) == "" {
			v.Score = 0.0
			v.Issues = append(v.Issues, "result is empty")
		}
		return clamp(v)
	}

	fields, ok := result.(map[string]any)
	if !ok {
		v.Score = 0.0
		v.Issues = append(v.Issues, "result is not structured, expected an object")
		return clamp(v)
	}

	for _, name := range stringSlice(schema["required"]) {
		if _, present := fields[name]; !present {
			v.Score -= penaltyMissingField
			v.Issues = append(v.Issues, fmt.Sprintf("missing required field %q", name))
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, spec := range properties {
		value, present := fields[name]
		if !present {
			continue
		}
		propSpec, _ := spec.(map[string]any)
		declared, _ := propSpec["type"].(string)
		if declared != "" && !typeMatches(declared, value) {
			v.Score -= penaltyTypeMismatch
		}
	}

	return clamp(v)
}

// checkSemantic penalizes error-indicating keywords, low keyword overlap with
// the task description, and (when a model is available) irrelevance.
func (c *Critic) checkSemantic(ctx context.Context, taskDescription, text string) core.ValidationResult {
	v := core.ValidationResult{Score: 1.0, Kind: core.ValidationSemantic}

	lower := strings.ToLower(text)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			v.Score -= penaltyErrorKeyword
			v.Issues = append(v.Issues, fmt.Sprintf("result contains error indicator %q", kw))
			break
		}
	}

	taskWords := keywords(taskDescription)
	if len(taskWords) > 0 {
		shared := 0
		for word := range taskWords {
			if strings.Contains(lower, word) {
				shared++
			}
		}
		ratio := float64(shared) / float64(len(taskWords))
		switch {
		case shared == 0:
			v.Score -= penaltyNoOverlap
		case ratio < lowOverlapRatio:
			v.Score -= penaltyLowOverlap
		}
	}

	if c.model != nil && text != "" {
		if relevant, err := c.probeRelevance(ctx, taskDescription, text); err != nil {
			c.logger.Warn("relevance probe failed", "error", err)
		} else if !relevant {
			v.Score -= penaltyIrrelevant
			v.Issues = append(v.Issues, "result judged not relevant to the task")
		}
	}

	return clamp(v)
}

// checkFunctional applies requirement-driven content and length checks.
func (c *Critic) checkFunctional(text string, requirements map[string]any) core.ValidationResult {
	v := core.ValidationResult{Score: 1.0, Kind: core.ValidationFunctional}

	for _, substr := range stringSlice(requirements["must_contain"]) {
		if !strings.Contains(text, substr) {
			v.Score -= penaltyMustContain
			v.Issues = append(v.Issues, fmt.Sprintf("result must contain %q", substr))
		}
	}
	for _, substr := range stringSlice(requirements["must_not_contain"]) {
		if strings.Contains(text, substr) {
			v.Score -= penaltyMustContain
			v.Issues = append(v.Issues, fmt.Sprintf("result must not contain %q", substr))
		}
	}

	if minLen, ok := intValue(requirements["min_length"]); ok && len(text) < minLen {
		v.Score -= penaltyMinLength
	}
	if maxLen, ok := intValue(requirements["max_length"]); ok && len(text) > maxLen {
		v.Score -= penaltyMaxLength
	}

	return clamp(v)
}

// checkQuality applies content-independent quality heuristics.
func (c *Critic) checkQuality(text string) core.ValidationResult {
	v := core.ValidationResult{Score: 1.0, Kind: core.ValidationQuality}

	if text == "" {
		v.Score = 0.0
		v.Issues = append(v.Issues, "result is empty")
		return v
	}

	if len(text) < shortResultChars {
		v.Score -= penaltyTooShort
	}

	for _, marker := range placeholderMarkers {
		if strings.Contains(text, marker) {
			v.Score -= penaltyPlaceholder
			v.Issues = append(v.Issues, fmt.Sprintf("result contains placeholder marker %q", marker))
			break
		}
	}

	if len(text) > terminatorProbeMinimum && !strings.ContainsAny(text, sentenceTerminators) {
		v.Score -= penaltyNoTerminator
	}

	return clamp(v)
}

// probeRelevance asks the model whether the result addresses the task.
func (c *Critic) probeRelevance(ctx context.Context, taskDescription, text string) (bool, error) {
	prompt := fmt.Sprintf(
		"Task: %s\n\nResult: %s\n\nIs this result relevant to the task? Answer only yes or no.",
		taskDescription, text,
	)
	answer, err := model.Complete(ctx, c.model, model.Request{Prompt: prompt})
	if err != nil {
		return false, err
	}
	return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "no"), nil
}

func clamp(v core.ValidationResult) core.ValidationResult {
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 1 {
		v.Score = 1
	}
	return v
}

// resultText renders an execution result as text for content checks.
func resultText(result any) string {
	switch r := result.(type) {
	case nil:
		return ""
	case string:
		return r
	default:
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(data)
	}
}

// keywords extracts lowercase significant words (longer than 3 chars).
func keywords(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 3 {
			words[w] = struct{}{}
		}
	}
	return words
}

// typeMatches checks a JSON-schema style type name against a decoded value.
func typeMatches(declared string, value any) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		default:
			return false
		}
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func stringSlice(value any) []string {
	switch s := value.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func intValue(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
