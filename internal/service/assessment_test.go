package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
)

func testConfig() *domain.Config {
	return &domain.Config{
		Cache:    domain.CacheConfig{Enabled: true, MaxEntries: 16},
		Pipeline: domain.PipelineConfig{MaxConcurrency: 4, AgeAware: true},
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	kb := knowledge.MustDefault()
	logger := newTestLogger()
	return NewPipeline(
		NewRiskScorer(kb, logger),
		NewScreeningEngine(kb, logger, WithClock(fixedClock)),
		NewComplianceValidator(kb, logger),
		logger,
		WithKnowledgeVersion(kb.Version),
		WithPipelineClock(fixedClock),
	)
}

func TestPipeline_Assess(t *testing.T) {
	ctx := context.Background()
	pipeline := newTestPipeline(t)

	t.Run("BRCA1_Carrier", func(t *testing.T) {
		a, err := pipeline.Assess(ctx, domain.PatientProfile{
			ID:           "patient-a",
			Demographics: domain.Demographics{Age: 35, Sex: domain.SexFemale},
			Genetics:     &domain.Genetics{ConfirmedMutations: []string{"BRCA1"}},
		})
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.Equal(t, "patient-a", a.PatientID)
		assert.Equal(t, knowledge.MustDefault().Version, a.KnowledgeVersion)
		assert.Len(t, a.Scores, len(domain.SupportedCancerTypes))
		assert.Len(t, a.Plans, len(domain.SupportedCancerTypes))
		assert.False(t, a.RequiresReview, "failed validations: %+v", a.FailedValidations())

		breast, ok := a.Score(domain.CancerBreast)
		require.True(t, ok)
		assert.Equal(t, domain.RiskLevelVeryHigh, breast.RiskLevel)

		plan := a.Plan(domain.CancerBreast)
		require.NotNil(t, plan)
		assert.Equal(t, domain.UrgencyUrgent, plan.MostUrgent())

		total := 0
		for _, p := range a.Plans {
			total += len(p.Recommendations)
		}
		assert.Len(t, a.Validations, total)

		assert.InDelta(t, 0.6, a.Audit.Metrics["risk.breast"], 1e-9)
		assert.Equal(t, total, a.Audit.Metrics["recommendations"])
		assert.Equal(t, 0, a.Audit.Metrics["validation.failed"])
	})

	t.Run("Audit_Trail_Is_Ordered", func(t *testing.T) {
		a, err := pipeline.Assess(ctx, domain.PatientProfile{
			Demographics: domain.Demographics{Age: 30},
			Genetics:     &domain.Genetics{ConfirmedMutations: []string{"APC"}},
		})
		require.NoError(t, err)

		logs := a.Audit.Logs
		require.NotEmpty(t, logs)
		assert.Contains(t, logs[0].Message, "started")
		assert.Contains(t, logs[len(logs)-1].Message, "completed")
		for i := 1; i < len(logs); i++ {
			assert.Greater(t, logs[i].Sequence, logs[i-1].Sequence)
			assert.False(t, logs[i].Timestamp.Before(logs[i-1].Timestamp))
			assert.Equal(t, a.Audit.SessionID, logs[i].SessionID)
		}

		require.Len(t, a.Audit.Changes, 1, "very high colorectal colonoscopy interval should be shortened")
		assert.Equal(t, "review_date", a.Audit.Changes[0].Change.Field)
		assert.Equal(t, VeryHighRiskIntervalNote, a.Audit.Changes[0].Change.Reason)

		var codes []string
		for _, e := range a.Audit.Errors {
			codes = append(codes, e.Code)
		}
		assert.NotContains(t, codes, domain.ErrNoProtocol, "every cancer type has a screening protocol")
	})

	t.Run("Invalid_Profile_Is_Recorded_Not_Rejected", func(t *testing.T) {
		a, err := pipeline.Assess(ctx, domain.PatientProfile{Demographics: domain.Demographics{Age: -3}})
		require.NoError(t, err)
		require.NotEmpty(t, a.Audit.Errors)
		assert.Equal(t, domain.ErrInvalidInput, a.Audit.Errors[0].Code)
		assert.Contains(t, a.Audit.Errors[0].Message, "demographics.age")
		assert.Len(t, a.Plans, len(domain.SupportedCancerTypes))
	})

	t.Run("Unknown_Age_Keeps_Protocols", func(t *testing.T) {
		a, err := pipeline.Assess(ctx, domain.PatientProfile{
			ID:       "patient-no-age",
			Genetics: &domain.Genetics{ConfirmedMutations: []string{"BRCA1"}},
		})
		require.NoError(t, err)

		plan := a.Plan(domain.CancerBreast)
		require.NotNil(t, plan)
		assert.False(t, plan.HasErrors(), "unexpected errors: %v", plan.Errors)

		var tests []string
		for _, rec := range plan.Recommendations {
			tests = append(tests, rec.TestRecommended)
		}
		assert.Contains(t, tests, "breast MRI")
		assert.Contains(t, tests, "mammography")
		for _, line := range plan.Rationale {
			assert.NotContains(t, line, "skipped")
		}

		var logged bool
		for _, entry := range a.Audit.Logs {
			if strings.Contains(entry.Message, "age not recorded") {
				logged = true
			}
		}
		assert.True(t, logged, "missing age should be noted in the audit trail")
	})

	t.Run("Canceled_Context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		a, err := pipeline.Assess(canceled, domain.PatientProfile{})
		assert.Nil(t, a)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPipeline_RequiresReview(t *testing.T) {
	kb := knowledge.MustDefault()
	logger := newTestLogger()

	score := scoreAt(domain.CancerBreast, 0.6)
	scorer := new(MockRiskScorer)
	scorer.On("Score", mock.Anything).Return([]domain.RiskScore{score})

	synthesizer := new(MockSynthesizer)
	synthesizer.On("Synthesize", score).Return(&domain.ScreeningPlan{
		CancerType: domain.CancerBreast,
		Recommendations: []domain.ClinicalRecommendation{{
			ID:              "rec-routine",
			CancerType:      domain.CancerBreast,
			Urgency:         domain.UrgencyRoutine,
			TestRecommended: "mammography",
			Rationale: domain.RecommendationRationale{
				GuidelineSource: "USPSTF",
				Grade:           "B",
				EvidenceQuality: domain.EvidenceHigh,
			},
		}},
	})

	pipeline := NewPipeline(scorer, synthesizer, NewComplianceValidator(kb, logger), logger, WithAgeAware(false))

	a, err := pipeline.Assess(context.Background(), domain.PatientProfile{ID: "patient-e"})
	require.NoError(t, err)

	assert.True(t, a.RequiresReview)
	failed := a.FailedValidations()
	require.Len(t, failed, 1)
	assert.True(t, failed[0].HasIssue(domain.ErrUnderTriage))
	assert.Equal(t, 1, a.Audit.Metrics["validation.failed"])

	scorer.AssertExpectations(t)
	synthesizer.AssertExpectations(t)
	synthesizer.AssertNotCalled(t, "SynthesizeFor", mock.Anything, mock.Anything)
}

func TestPipeline_PassesPlanContext(t *testing.T) {
	kb := knowledge.MustDefault()
	logger := newTestLogger()

	breast := scoreAt(domain.CancerBreast, 0)
	lung := scoreAt(domain.CancerLung, 0)
	scorer := new(MockRiskScorer)
	scorer.On("Score", mock.Anything).Return([]domain.RiskScore{breast, lung})

	lastMammogram := domain.ScreeningEvent{
		CancerType: domain.CancerBreast,
		Test:       "mammography",
		Date:       time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	patient := domain.PatientProfile{
		ID:           "patient-h",
		Demographics: domain.Demographics{Age: 52, Sex: domain.SexFemale},
		ScreeningHistory: []domain.ScreeningEvent{
			{CancerType: domain.CancerBreast, Test: "mammography", Date: time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)},
			lastMammogram,
		},
	}

	synthesizer := new(MockSynthesizer)
	synthesizer.On("SynthesizeFor", breast, mock.MatchedBy(func(pc domain.PlanContext) bool {
		return pc.Age == 52 && pc.LastScreening != nil && pc.LastScreening.Date.Equal(lastMammogram.Date)
	})).Return(&domain.ScreeningPlan{CancerType: domain.CancerBreast})
	synthesizer.On("SynthesizeFor", lung, domain.PlanContext{Age: 52}).Return(&domain.ScreeningPlan{CancerType: domain.CancerLung})

	pipeline := NewPipeline(scorer, synthesizer, NewComplianceValidator(kb, logger), logger)

	a, err := pipeline.Assess(context.Background(), patient)
	require.NoError(t, err)
	assert.Len(t, a.Plans, 2)

	synthesizer.AssertExpectations(t)
	synthesizer.AssertNotCalled(t, "Synthesize", mock.Anything)
}

func TestRecordPlan(t *testing.T) {
	previous := testNow.AddDate(0, 60, 0)
	plan := &domain.ScreeningPlan{
		CancerType: domain.CancerColorectal,
		Adjustments: []domain.IntervalAdjustment{{
			RecommendationID:   "rec-1",
			PreviousReviewDate: previous,
			ReviewDate:         testNow.AddDate(0, 12, 0),
			Reason:             VeryHighRiskIntervalNote,
		}},
		Errors: []domain.Issue{{Code: domain.ErrNoRecommendations, Level: domain.IssueLevelError}},
	}

	rec := new(MockAuditRecorder)
	rec.On("RecordChange", domain.Change{
		Entity: "recommendation:rec-1",
		Field:  "review_date",
		From:   previous.Format(time.RFC3339),
		To:     testNow.AddDate(0, 12, 0).Format(time.RFC3339),
		Reason: VeryHighRiskIntervalNote,
	}).Once()
	rec.On("ReportError", plan.Errors[0]).Once()
	rec.On("Log", "colorectal plan: 0 recommendations, most urgent not_indicated").Once()

	recordPlan(rec, plan)

	rec.AssertExpectations(t)
}

func TestRecordValidations(t *testing.T) {
	underTriage := domain.Issue{Code: domain.ErrUnderTriage, Level: domain.IssueLevelError}
	missingGrade := domain.Issue{Code: domain.WarnMissingGrade, Level: domain.IssueLevelWarning}

	tests := []struct {
		name         string
		results      []domain.ValidationResult
		wantFailed   bool
		wantWarnings int
		wantReported int
	}{
		{"None", nil, false, 0, 0},
		{
			name:         "Warnings_Only",
			results:      []domain.ValidationResult{{Passed: true, Warnings: []domain.Issue{missingGrade}}},
			wantWarnings: 1,
		},
		{
			name: "Failure_Is_Reported",
			results: []domain.ValidationResult{
				{Passed: true},
				{Passed: false, Errors: []domain.Issue{underTriage}, Warnings: []domain.Issue{missingGrade}},
			},
			wantFailed:   true,
			wantWarnings: 1,
			wantReported: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockAuditRecorder)
			rec.On("ReportError", underTriage).Return()

			failed, warnings := recordValidations(rec, tt.results)

			assert.Equal(t, tt.wantFailed, failed)
			assert.Equal(t, tt.wantWarnings, warnings)
			rec.AssertNumberOfCalls(t, "ReportError", tt.wantReported)
		})
	}
}

func TestPipeline_AssessBatch(t *testing.T) {
	pipeline := newTestPipeline(t)

	patients := make([]domain.PatientProfile, 20)
	for i := range patients {
		patients[i] = domain.PatientProfile{
			ID:           fmt.Sprintf("patient-%02d", i),
			Demographics: domain.Demographics{Age: 30 + i},
		}
		if i%3 == 0 {
			patients[i].Genetics = &domain.Genetics{ConfirmedMutations: []string{"BRCA2"}}
		}
	}

	t.Run("Preserves_Order", func(t *testing.T) {
		results, err := pipeline.AssessBatch(context.Background(), patients)
		require.NoError(t, err)
		require.Len(t, results, len(patients))

		sessions := make(map[string]bool)
		for i, a := range results {
			require.NotNil(t, a)
			assert.Equal(t, patients[i].ID, a.PatientID)
			sessions[a.Audit.SessionID] = true
		}
		assert.Len(t, sessions, len(patients), "each assessment owns its audit trail")
	})

	t.Run("Canceled_Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results, err := pipeline.AssessBatch(ctx, patients)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Empty_Batch", func(t *testing.T) {
		results, err := pipeline.AssessBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestNewPipelineFromConfig(t *testing.T) {
	kb := knowledge.MustDefault()

	pipeline, err := NewPipelineFromConfig(kb, testConfig(), newTestLogger())
	require.NoError(t, err)

	caching, ok := pipeline.scorer.(*CachingScorer)
	require.True(t, ok, "cache enabled should wrap the scorer")
	assert.Equal(t, 4, pipeline.maxConcurrency)
	assert.True(t, pipeline.ageAware)

	patient := domain.PatientProfile{
		ID:           "first",
		Demographics: domain.Demographics{Age: 50},
		Genetics:     &domain.Genetics{ConfirmedMutations: []string{"BRCA1"}},
	}
	first, err := pipeline.Assess(context.Background(), patient)
	require.NoError(t, err)

	patient.ID = "second"
	second, err := pipeline.Assess(context.Background(), patient)
	require.NoError(t, err)

	assert.Equal(t, first.Scores, second.Scores)
	stats := caching.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	cfg := testConfig()
	cfg.Cache.Enabled = false
	uncached, err := NewPipelineFromConfig(kb, cfg, newTestLogger())
	require.NoError(t, err)
	_, ok = uncached.scorer.(*RiskScorer)
	assert.True(t, ok)

	cfg.Cache.Enabled = true
	cfg.Cache.MaxEntries = 0
	_, err = NewPipelineFromConfig(kb, cfg, newTestLogger())
	assert.Error(t, err)
}
