package domain

// ValidationResult is the outcome of one or more compliance checks on a recommendation.
// Passed is false whenever Errors is non-empty; warnings never fail a result.
type ValidationResult struct {
	RecommendationID string     `json:"recommendation_id,omitempty"`
	CancerType       CancerType `json:"cancer_type,omitempty"`
	Passed           bool       `json:"passed"`
	Errors           []Issue    `json:"errors"`
	Warnings         []Issue    `json:"warnings"`
	AuditTrail       []string   `json:"audit_trail"`
}

// NewValidationResult creates a passing result for the recommendation.
func NewValidationResult(rec ClinicalRecommendation) ValidationResult {
	return ValidationResult{
		RecommendationID: rec.ID,
		CancerType:       rec.CancerType,
		Passed:           true,
		Errors:           []Issue{},
		Warnings:         []Issue{},
		AuditTrail:       []string{},
	}
}

// Compliant is an alias for Passed.
func (v ValidationResult) Compliant() bool {
	return v.Passed
}

// AddError records an error and fails the result.
func (v *ValidationResult) AddError(issue Issue) {
	issue.Level = IssueLevelError
	v.Errors = append(v.Errors, issue)
	v.Passed = false
}

// AddWarning records a warning.
func (v *ValidationResult) AddWarning(issue Issue) {
	issue.Level = IssueLevelWarning
	v.Warnings = append(v.Warnings, issue)
}

// Trace appends a line to the result's decision trail.
func (v *ValidationResult) Trace(line string) {
	v.AuditTrail = append(v.AuditTrail, line)
}

// Merge folds other into a new result. Passed is the conjunction of both.
func (v ValidationResult) Merge(other ValidationResult) ValidationResult {
	merged := ValidationResult{
		RecommendationID: v.RecommendationID,
		CancerType:       v.CancerType,
		Passed:           v.Passed && other.Passed,
		Errors:           append(append([]Issue{}, v.Errors...), other.Errors...),
		Warnings:         append(append([]Issue{}, v.Warnings...), other.Warnings...),
		AuditTrail:       append(append([]string{}, v.AuditTrail...), other.AuditTrail...),
	}
	if merged.RecommendationID == "" {
		merged.RecommendationID = other.RecommendationID
	}
	if merged.CancerType == "" {
		merged.CancerType = other.CancerType
	}
	return merged
}

// HasIssue reports whether an error or warning with the code was recorded.
func (v ValidationResult) HasIssue(code string) bool {
	for _, i := range v.Errors {
		if i.Code == code {
			return true
		}
	}
	for _, i := range v.Warnings {
		if i.Code == code {
			return true
		}
	}
	return false
}
