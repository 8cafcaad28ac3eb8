package domain

// RiskScorer estimates per-cancer-type risk for a patient. Implementations return exactly one
// score per supported cancer type and never fail on missing optional input.
type RiskScorer interface {
	Score(patient PatientProfile) []RiskScore
}

// RecommendationSynthesizer turns a risk score into a screening plan. Failures are reported in
// ScreeningPlan.Errors, never returned.
type RecommendationSynthesizer interface {
	Synthesize(score RiskScore) *ScreeningPlan
	SynthesizeFor(score RiskScore, pc PlanContext) *ScreeningPlan
}

// ComplianceValidator checks recommendations for guideline compliance and internal consistency.
type ComplianceValidator interface {
	VerifyGuidelineCompliance(rec ClinicalRecommendation) ValidationResult
	CheckLogicConsistency(rec ClinicalRecommendation, absoluteRisk float64) ValidationResult
	AssessEvidenceQuality(rec ClinicalRecommendation) ValidationResult
	ValidateAll(recs []ClinicalRecommendation, riskMap map[CancerType]float64) []ValidationResult
}

// AuditRecorder is the subset of the audit trail used by pipeline stages.
type AuditRecorder interface {
	Log(message string)
	RecordChange(change Change)
	ReportError(err error)
	SetMetric(key string, value any)
}

// Change describes a modification to a pipeline artefact.
type Change struct {
	Entity string `json:"entity"`
	Field  string `json:"field"`
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}
