package domain

import (
	"fmt"
	"time"
)

// PipelineError represents a failure inside a pipeline stage. Stages surface these as plan or
// validation issues instead of returning them, so a degraded result is still usable.
type PipelineError struct {
	Code      string    `json:"code"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Issue converts the error into a plan/validation issue.
func (e *PipelineError) Issue() Issue {
	msg := e.Message
	if e.Details != "" {
		msg = msg + ": " + e.Details
	}
	return Issue{Code: e.Code, Level: IssueLevelError, Field: e.Stage, Message: msg}
}

// Pipeline stages
const (
	StageScoring   = "risk_scoring"
	StageSynthesis = "synthesis"
)

// Error codes for plan and validation issues
const (
	ErrNoProtocol          = "NO_PROTOCOL_FOR_CANCER_TYPE"
	ErrNoRecommendations   = "NO_RECOMMENDATIONS_GENERATED"
	ErrSynthesisFailure    = "SYNTHESIS_FAILURE"
	ErrUnapprovedGuideline = "UNAPPROVED_GUIDELINE_SOURCE"
	ErrUnderTriage         = "HIGH_RISK_NON_URGENT"
	ErrInvalidEvidence     = "INVALID_EVIDENCE_QUALITY"
	ErrInvalidInput        = "INVALID_INPUT"
	ErrValidation          = "VALIDATION_ERROR"
)

// Warning codes
const (
	WarnMissingGrade       = "MISSING_RECOMMENDATION_GRADE"
	WarnLowRiskActive      = "LOW_RISK_ACTIVE_RECOMMENDATION"
	WarnMissingEvidence    = "MISSING_EVIDENCE_QUALITY"
	WarnMissingRiskContext = "MISSING_RISK_CONTEXT"
)

// IssueLevel distinguishes blocking errors from advisory warnings.
type IssueLevel string

const (
	IssueLevelError   IssueLevel = "error"
	IssueLevelWarning IssueLevel = "warning"
)

// Issue is a structured finding attached to a plan or validation result.
type Issue struct {
	Code    string     `json:"code"`
	Level   IssueLevel `json:"level"`
	Field   string     `json:"field,omitempty"`
	Message string     `json:"message"`
}

// Error implements the error interface so issues can be reported through error sinks.
func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("%s (%s): %s", i.Code, i.Field, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewPipelineError creates a new PipelineError with timestamp
func NewPipelineError(code, stage, message, details string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Stage:     stage,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
