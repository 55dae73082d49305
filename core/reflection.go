package core

// ErrorType is the fine-grained failure classification derived from keyword
// matching on a failure text.
type ErrorType string

// Recognized failure types. Unmatched failures classify as ErrorUnknown.
const (
	ErrorTimeout      ErrorType = "timeout"
	ErrorPermission   ErrorType = "permission"
	ErrorNotFound     ErrorType = "not_found"
	ErrorInvalidInput ErrorType = "invalid_input"
	ErrorNetwork      ErrorType = "network"
	ErrorSyntax       ErrorType = "syntax"
	ErrorTypeMismatch ErrorType = "type_error"
	ErrorAttribute    ErrorType = "attribute_error"
	ErrorKey          ErrorType = "key_error"
	ErrorValue        ErrorType = "value_error"
	ErrorIndex        ErrorType = "index_error"
	ErrorUnknown      ErrorType = "unknown"
)

// ErrorCategory is the coarse grouping of an ErrorType.
type ErrorCategory string

// Failure categories.
const (
	CategoryCode           ErrorCategory = "code"
	CategoryInfrastructure ErrorCategory = "infrastructure"
	CategoryAccess         ErrorCategory = "access"
	CategoryRuntime        ErrorCategory = "runtime"
)

// FailureAnalysis explains why a step failed.
type FailureAnalysis struct {
	ErrorType           ErrorType     `json:"error_type"`
	Category            ErrorCategory `json:"category"`
	RootCause           string        `json:"root_cause"`
	ContributingFactors []string      `json:"contributing_factors,omitempty"`
	Severity            string        `json:"severity,omitempty"`
	Preventable         bool          `json:"preventable"`
}

// SuggestedFix is a structured remediation proposal for a failed step.
type SuggestedFix struct {
	Description         string   `json:"description"`
	SuggestedChanges    []string `json:"suggested_changes,omitempty"`
	AlternativeApproach string   `json:"alternative_approach,omitempty"`
}

// ReflectionResult bundles failure analysis, a proposed fix and precedent
// retrieved from reflection memory.
type ReflectionResult struct {
	Analysis          FailureAnalysis `json:"analysis"`
	SuggestedFix      *SuggestedFix   `json:"suggested_fix,omitempty"`
	SimilarSituations []SearchResult  `json:"similar_situations,omitempty"`
	Improvements      []string        `json:"improvements,omitempty"`
}
