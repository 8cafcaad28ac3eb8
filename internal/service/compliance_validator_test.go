package service

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancer-risk-screening/internal/domain"
)

func compliantRecommendation() domain.ClinicalRecommendation {
	return domain.ClinicalRecommendation{
		ID:              "rec-1",
		CancerType:      domain.CancerBreast,
		Urgency:         domain.UrgencyUrgent,
		TestRecommended: "mammography",
		Rationale: domain.RecommendationRationale{
			GuidelineSource: "NCCN",
			Grade:           "2A",
			KeyFactors:      []string{"confirmed BRCA1 mutation"},
			EvidenceQuality: domain.EvidenceModerate,
		},
		GeneratedDate: testNow,
		ReviewDate:    testNow.AddDate(1, 0, 0),
	}
}

func TestComplianceValidator_VerifyGuidelineCompliance(t *testing.T) {
	validator := newTestValidator(t)

	t.Run("Unapproved_Source", func(t *testing.T) {
		rec := compliantRecommendation()
		rec.Rationale.GuidelineSource = "MadeUpSource"

		result := validator.VerifyGuidelineCompliance(rec)

		assert.False(t, result.Passed)
		assert.False(t, result.Compliant())
		require.Len(t, result.Errors, 1)
		assert.Equal(t, domain.ErrUnapprovedGuideline, result.Errors[0].Code)
		assert.Contains(t, result.Errors[0].Message, "MadeUpSource")
		assert.Equal(t, "rec-1", result.RecommendationID)
	})

	t.Run("Approved_Source_Case_Insensitive", func(t *testing.T) {
		rec := compliantRecommendation()
		rec.Rationale.GuidelineSource = "uspstf"

		result := validator.VerifyGuidelineCompliance(rec)

		assert.True(t, result.Passed)
		assert.Empty(t, result.Errors)
		assert.Empty(t, result.Warnings)
		assert.NotEmpty(t, result.AuditTrail)
	})

	t.Run("Missing_Grade_Warns", func(t *testing.T) {
		rec := compliantRecommendation()
		rec.Rationale.Grade = ""

		result := validator.VerifyGuidelineCompliance(rec)

		assert.True(t, result.Passed)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, domain.WarnMissingGrade, result.Warnings[0].Code)
	})
}

func TestComplianceValidator_CheckLogicConsistency(t *testing.T) {
	validator := newTestValidator(t)

	tests := []struct {
		name     string
		urgency  domain.Urgency
		risk     float64
		passed   bool
		warnings int
	}{
		{"High_Risk_Routine", domain.UrgencyRoutine, 0.6, false, 0},
		{"High_Risk_Future", domain.UrgencyFuture, 0.41, false, 0},
		{"Boundary_Routine", domain.UrgencyRoutine, 0.4, true, 0},
		{"High_Risk_Urgent", domain.UrgencyUrgent, 0.9, true, 0},
		{"High_Risk_Soon", domain.UrgencySoon, 0.6, true, 0},
		{"Low_Risk_Routine", domain.UrgencyRoutine, 0.03, true, 1},
		{"Low_Risk_Not_Indicated", domain.UrgencyNotIndicated, 0.03, true, 0},
		{"Low_Boundary", domain.UrgencyRoutine, 0.05, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := compliantRecommendation()
			rec.Urgency = tt.urgency

			result := validator.CheckLogicConsistency(rec, tt.risk)

			assert.Equal(t, tt.passed, result.Passed)
			assert.Len(t, result.Warnings, tt.warnings)
			if !tt.passed {
				require.Len(t, result.Errors, 1)
				assert.Equal(t, domain.ErrUnderTriage, result.Errors[0].Code)
				assert.Contains(t, result.Errors[0].Message, "high risk but non-urgent recommendation")
			}
		})
	}
}

func TestComplianceValidator_AssessEvidenceQuality(t *testing.T) {
	validator := newTestValidator(t)

	tests := []struct {
		name     string
		quality  domain.EvidenceQuality
		passed   bool
		warnings int
	}{
		{"High", domain.EvidenceHigh, true, 0},
		{"Low", domain.EvidenceLow, true, 0},
		{"Missing", "", true, 1},
		{"Invalid", "excellent", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := compliantRecommendation()
			rec.Rationale.EvidenceQuality = tt.quality

			result := validator.AssessEvidenceQuality(rec)

			assert.Equal(t, tt.passed, result.Passed)
			assert.Len(t, result.Warnings, tt.warnings)
			if !tt.passed {
				assert.True(t, result.HasIssue(domain.ErrInvalidEvidence))
			}
		})
	}
}

func TestComplianceValidator_ValidateAll(t *testing.T) {
	validator := newTestValidator(t)

	bad := compliantRecommendation()
	bad.ID = "rec-bad"
	bad.Urgency = domain.UrgencyRoutine
	bad.Rationale.GuidelineSource = "MadeUpSource"
	bad.Rationale.Grade = ""
	bad.Rationale.EvidenceQuality = "bogus"

	good := compliantRecommendation()
	good.ID = "rec-good"

	orphan := compliantRecommendation()
	orphan.ID = "rec-orphan"
	orphan.CancerType = domain.CancerLiver

	results := validator.ValidateAll(
		[]domain.ClinicalRecommendation{bad, good, orphan},
		map[domain.CancerType]float64{domain.CancerBreast: 0.7},
	)

	require.Len(t, results, 3)

	assert.Equal(t, "rec-bad", results[0].RecommendationID)
	assert.False(t, results[0].Passed)
	assert.Len(t, results[0].Errors, 3, "all issues must be reported together")
	assert.True(t, results[0].HasIssue(domain.ErrUnapprovedGuideline))
	assert.True(t, results[0].HasIssue(domain.ErrUnderTriage))
	assert.True(t, results[0].HasIssue(domain.ErrInvalidEvidence))
	assert.True(t, results[0].HasIssue(domain.WarnMissingGrade))

	assert.Equal(t, "rec-good", results[1].RecommendationID)
	assert.True(t, results[1].Passed)
	assert.Empty(t, results[1].Warnings)

	assert.Equal(t, "rec-orphan", results[2].RecommendationID)
	assert.True(t, results[2].Passed)
	assert.True(t, results[2].HasIssue(domain.WarnMissingRiskContext))
}

func TestComplianceValidator_ValidateAllEmpty(t *testing.T) {
	results := newTestValidator(t).ValidateAll(nil, nil)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestComplianceValidator_UnderTriageProperty(t *testing.T) {
	validator := newTestValidator(t)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		risk := 0.4 + (1-0.4)*r.Float64()
		if risk == 0.4 {
			continue
		}
		for _, urgency := range []domain.Urgency{domain.UrgencyRoutine, domain.UrgencyFuture} {
			rec := compliantRecommendation()
			rec.Urgency = urgency
			result := validator.CheckLogicConsistency(rec, risk)
			assert.False(t, result.Passed, "risk %.4f with %s urgency must fail", risk, urgency)
		}
	}
}

func TestComplianceValidator_EnginePlansNeverUnderTriage(t *testing.T) {
	scorer := newTestScorer(t)
	engine := newTestEngine(t)
	validator := newTestValidator(t)
	r := rand.New(rand.NewSource(11))

	for i := 0; i < 200; i++ {
		scores := scorer.Score(generateProfile(r))
		for _, s := range scores {
			plan := engine.Synthesize(s)
			for _, result := range validator.ValidatePlan(plan, s) {
				assert.False(t, result.HasIssue(domain.ErrUnderTriage),
					"%s at %.2f produced an under-triaged recommendation", s.CancerType, s.AbsoluteRisk)
				assert.False(t, result.HasIssue(domain.ErrUnapprovedGuideline))
				assert.False(t, result.HasIssue(domain.ErrInvalidEvidence))
			}
		}
	}
}
