// Package model defines the core domain models used throughout the application.
package model

import "time"

// Class indicates whether an expense is business or personal.
type Class string

// Valid expense classes.
const (
	ClassBusiness Class = "business"
	ClassPersonal Class = "personal"
)

// IsValid reports whether c is exactly one of the two known classes.
func (c Class) IsValid() bool {
	return c == ClassBusiness || c == ClassPersonal
}

// Default field values used when the model response is missing or unusable.
const (
	UnknownCategory  = "unknown"
	UnknownReasoning = "unknown"
)

// ClassificationResult is the structured outcome of a single model
// classification call. It is always fully populated: missing fields are
// defaulted and confidence is clamped to [0, 1] before it leaves the parser.
type ClassificationResult struct {
	Class      Class
	Confidence float64
	Reasoning  string
	Category   string
}

// SafeDefault returns the fixed fallback classification used whenever a
// model call or response parse fails. Failures degrade to a safe default
// rather than aborting the upload.
func SafeDefault(reason string) ClassificationResult {
	return ClassificationResult{
		Class:      ClassPersonal,
		Confidence: 0.0,
		Reasoning:  reason,
		Category:   UnknownCategory,
	}
}

// ClassificationRecord is the persisted side record created for every
// classification decision, including manual overrides.
type ClassificationRecord struct {
	CreatedAt     time.Time
	ID            string
	TransactionID string
	Class         Class
	Reasoning     string
	Confidence    float64
	UserOverride  bool
}
