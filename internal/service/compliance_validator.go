package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
)

// Logic consistency thresholds
const (
	// UnderTriageRiskThreshold is the absolute risk above which a deferred urgency is an error.
	UnderTriageRiskThreshold = 0.4
	// LowRiskThreshold is the absolute risk below which any active recommendation is questioned.
	LowRiskThreshold = 0.05
)

// ComplianceValidator checks recommendations against the approved guideline sources and the
// risk/urgency consistency rules. Every check is pure and reports all of its findings.
type ComplianceValidator struct {
	logger *logrus.Logger
	kb     *knowledge.Base
}

// NewComplianceValidator creates a validator over the knowledge base's approved sources.
func NewComplianceValidator(kb *knowledge.Base, logger *logrus.Logger) *ComplianceValidator {
	return &ComplianceValidator{
		logger: logger,
		kb:     kb,
	}
}

// VerifyGuidelineCompliance fails a recommendation whose guideline source is not approved and
// warns when it carries no recommendation grade.
func (v *ComplianceValidator) VerifyGuidelineCompliance(rec domain.ClinicalRecommendation) domain.ValidationResult {
	result := domain.NewValidationResult(rec)
	source := rec.Rationale.GuidelineSource

	if v.kb.IsApprovedSource(source) {
		result.Trace(fmt.Sprintf("guideline source %q is approved", source))
	} else {
		result.AddError(domain.Issue{
			Code:    domain.ErrUnapprovedGuideline,
			Field:   "rationale.guideline_source",
			Message: fmt.Sprintf("guideline source %q is not in the approved set", source),
		})
		result.Trace(fmt.Sprintf("guideline source %q rejected", source))
	}

	if rec.Rationale.Grade == "" {
		result.AddWarning(domain.Issue{
			Code:    domain.WarnMissingGrade,
			Field:   "rationale.recommendation_grade",
			Message: "recommendation has no guideline grade",
		})
	}

	return result
}

// CheckLogicConsistency fails a deferred recommendation on a risk above 0.4 and warns about an
// active recommendation on a risk below 0.05.
func (v *ComplianceValidator) CheckLogicConsistency(rec domain.ClinicalRecommendation, absoluteRisk float64) domain.ValidationResult {
	result := domain.NewValidationResult(rec)
	result.Trace(fmt.Sprintf("checked urgency %s against absolute risk %.4f", rec.Urgency, absoluteRisk))

	if absoluteRisk > UnderTriageRiskThreshold && rec.Urgency.IsDeferred() {
		result.AddError(domain.Issue{
			Code:  domain.ErrUnderTriage,
			Field: "urgency",
			Message: fmt.Sprintf("high risk but non-urgent recommendation: absolute risk %.2f with %s urgency",
				absoluteRisk, rec.Urgency),
		})
	}

	if absoluteRisk < LowRiskThreshold && rec.Urgency != domain.UrgencyNotIndicated {
		result.AddWarning(domain.Issue{
			Code:  domain.WarnLowRiskActive,
			Field: "urgency",
			Message: fmt.Sprintf("low absolute risk %.2f with active %s recommendation",
				absoluteRisk, rec.Urgency),
		})
	}

	return result
}

// AssessEvidenceQuality fails an unknown evidence grade and warns when none is given.
func (v *ComplianceValidator) AssessEvidenceQuality(rec domain.ClinicalRecommendation) domain.ValidationResult {
	result := domain.NewValidationResult(rec)
	quality := rec.Rationale.EvidenceQuality

	switch {
	case quality == "":
		result.AddWarning(domain.Issue{
			Code:    domain.WarnMissingEvidence,
			Field:   "rationale.evidence_quality",
			Message: "recommendation has no evidence quality grade",
		})
	case !quality.IsValid():
		result.AddError(domain.Issue{
			Code:    domain.ErrInvalidEvidence,
			Field:   "rationale.evidence_quality",
			Message: fmt.Sprintf("evidence quality %q must be high, moderate or low", quality),
		})
	default:
		result.Trace(fmt.Sprintf("evidence quality %s", quality))
	}

	return result
}

// ValidateAll runs every check on every recommendation and returns one merged result per
// recommendation, in input order. A recommendation whose cancer type is missing from riskMap
// gets a warning in place of the logic consistency check.
func (v *ComplianceValidator) ValidateAll(recs []domain.ClinicalRecommendation, riskMap map[domain.CancerType]float64) []domain.ValidationResult {
	results := make([]domain.ValidationResult, 0, len(recs))

	for _, rec := range recs {
		result := v.VerifyGuidelineCompliance(rec)

		if risk, ok := riskMap[rec.CancerType]; ok {
			result = result.Merge(v.CheckLogicConsistency(rec, risk))
		} else {
			missing := domain.NewValidationResult(rec)
			missing.AddWarning(domain.Issue{
				Code:    domain.WarnMissingRiskContext,
				Field:   "cancer_type",
				Message: fmt.Sprintf("no absolute risk supplied for %s", rec.CancerType),
			})
			result = result.Merge(missing)
		}

		result = result.Merge(v.AssessEvidenceQuality(rec))
		results = append(results, result)

		if !result.Passed {
			v.logger.WithFields(logrus.Fields{
				"recommendation_id": rec.ID,
				"cancer_type":       rec.CancerType,
				"errors":            len(result.Errors),
			}).Warn("Recommendation failed compliance validation")
		}
	}

	v.logger.WithFields(logrus.Fields{
		"recommendations": len(recs),
		"failed":          countFailed(results),
	}).Debug("Completed compliance validation")

	return results
}

// ValidatePlan validates a plan's recommendations against the score it was synthesised from.
func (v *ComplianceValidator) ValidatePlan(plan *domain.ScreeningPlan, score domain.RiskScore) []domain.ValidationResult {
	return v.ValidateAll(plan.Recommendations, map[domain.CancerType]float64{
		score.CancerType: score.AbsoluteRisk,
	})
}

func countFailed(results []domain.ValidationResult) int {
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
		}
	}
	return failed
}
