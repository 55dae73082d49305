package core

// ValidationKind identifies which family of checks produced a
// ValidationResult.
type ValidationKind string

// Validation check families.
const (
	ValidationStructural    ValidationKind = "structural"
	ValidationSemantic      ValidationKind = "semantic"
	ValidationFunctional    ValidationKind = "functional"
	ValidationQuality       ValidationKind = "quality"
	ValidationComprehensive ValidationKind = "comprehensive"
)

// ValidationResult is the outcome of validating one execution attempt. It is
// computed per attempt and never mutated after creation.
type ValidationResult struct {
	IsValid bool           `json:"is_valid"`
	Score   float64        `json:"score"`
	Issues  []string       `json:"issues,omitempty"`
	Kind    ValidationKind `json:"kind"`
}
