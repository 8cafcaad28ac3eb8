package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cancer-risk-screening/internal/audit"
	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
)

const defaultMaxConcurrency = 8

// Assessment is the complete result of running one patient through the pipeline.
type Assessment struct {
	ID               string                    `json:"id"`
	PatientID        string                    `json:"patient_id,omitempty"`
	KnowledgeVersion string                    `json:"knowledge_version"`
	StartedAt        time.Time                 `json:"started_at"`
	CompletedAt      time.Time                 `json:"completed_at"`
	Scores           []domain.RiskScore        `json:"scores"`
	Plans            []*domain.ScreeningPlan   `json:"plans"`
	Validations      []domain.ValidationResult `json:"validations"`
	RequiresReview   bool                      `json:"requires_review"`
	Audit            audit.Snapshot            `json:"audit"`
}

// Plan returns the plan for a cancer type, or nil.
func (a *Assessment) Plan(ct domain.CancerType) *domain.ScreeningPlan {
	for _, p := range a.Plans {
		if p.CancerType == ct {
			return p
		}
	}
	return nil
}

// Score returns the score for a cancer type.
func (a *Assessment) Score(ct domain.CancerType) (domain.RiskScore, bool) {
	for _, s := range a.Scores {
		if s.CancerType == ct {
			return s, true
		}
	}
	return domain.RiskScore{}, false
}

// FailedValidations returns the validation results that did not pass.
func (a *Assessment) FailedValidations() []domain.ValidationResult {
	var failed []domain.ValidationResult
	for _, v := range a.Validations {
		if !v.Passed {
			failed = append(failed, v)
		}
	}
	return failed
}

// Pipeline runs score, synthesis and validation for a patient with a fresh audit trail per session.
type Pipeline struct {
	logger         *logrus.Logger
	scorer         domain.RiskScorer
	synthesizer    domain.RecommendationSynthesizer
	validator      domain.ComplianceValidator
	version        string
	ageAware       bool
	maxConcurrency int
	now            func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAgeAware restricts protocols to the patient's age when enabled.
func WithAgeAware(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.ageAware = enabled
	}
}

// WithMaxConcurrency bounds the number of concurrent assessments in AssessBatch.
func WithMaxConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrency = n
		}
	}
}

// WithKnowledgeVersion records the knowledge base version on every assessment.
func WithKnowledgeVersion(version string) PipelineOption {
	return func(p *Pipeline) {
		p.version = version
	}
}

// WithPipelineClock sets the clock used for assessment and audit timestamps.
func WithPipelineClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(scorer domain.RiskScorer, synthesizer domain.RecommendationSynthesizer, validator domain.ComplianceValidator, logger *logrus.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		logger:         logger,
		scorer:         scorer,
		synthesizer:    synthesizer,
		validator:      validator,
		ageAware:       true,
		maxConcurrency: defaultMaxConcurrency,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPipelineFromConfig wires the default stages over kb according to cfg.
func NewPipelineFromConfig(kb *knowledge.Base, cfg *domain.Config, logger *logrus.Logger) (*Pipeline, error) {
	var scorer domain.RiskScorer = NewRiskScorer(kb, logger)
	if cfg.Cache.Enabled {
		cache, err := NewScoreCache(cfg.Cache.MaxEntries)
		if err != nil {
			return nil, err
		}
		scorer = NewCachingScorer(scorer, cache, logger)
	}

	return NewPipeline(
		scorer,
		NewScreeningEngine(kb, logger),
		NewComplianceValidator(kb, logger),
		logger,
		WithAgeAware(cfg.Pipeline.AgeAware),
		WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		WithKnowledgeVersion(kb.Version),
	), nil
}

// Assess runs one patient through the pipeline. Stage problems are carried in the assessment;
// the only error returned is context cancellation.
func (p *Pipeline) Assess(ctx context.Context, patient domain.PatientProfile) (*Assessment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trail := audit.NewTrail(p.logger, audit.WithClock(p.now))
	a := &Assessment{
		ID:               uuid.New().String(),
		PatientID:        patient.ID,
		KnowledgeVersion: p.version,
		StartedAt:        p.now(),
		Plans:            []*domain.ScreeningPlan{},
	}

	trail.Log(fmt.Sprintf("assessment %s started for patient %q (knowledge base %s)", a.ID, patient.ID, p.version))
	if err := patient.Validate(); err != nil {
		trail.ReportError(domain.NewPipelineError(domain.ErrInvalidInput, domain.StageScoring,
			"patient profile failed validation: "+err.Error(), ""))
	}
	if p.ageAware && patient.Demographics.Age <= 0 {
		trail.Log("patient age not recorded: protocol age ranges not applied")
	}

	a.Scores = p.scorer.Score(patient)
	for _, s := range a.Scores {
		trail.SetMetric("risk."+string(s.CancerType), s.AbsoluteRisk)
		trail.Log(s.Summary())
	}

	var recs []domain.ClinicalRecommendation
	for _, s := range a.Scores {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var plan *domain.ScreeningPlan
		if pc := p.planContext(patient, s.CancerType); pc == (domain.PlanContext{}) {
			plan = p.synthesizer.Synthesize(s)
		} else {
			plan = p.synthesizer.SynthesizeFor(s, pc)
		}
		a.Plans = append(a.Plans, plan)
		recs = append(recs, plan.Recommendations...)
		recordPlan(trail, plan)
	}

	a.Validations = p.validator.ValidateAll(recs, domain.RiskMap(a.Scores))
	var warnings int
	a.RequiresReview, warnings = recordValidations(trail, a.Validations)

	failed := len(a.FailedValidations())
	trail.SetMetric("recommendations", len(recs))
	trail.SetMetric("validation.failed", failed)
	trail.SetMetric("validation.warnings", warnings)
	trail.Log(fmt.Sprintf("assessment %s completed: %d recommendations, %d failed validation", a.ID, len(recs), failed))

	a.CompletedAt = p.now()
	a.Audit = trail.Snapshot()

	p.logger.WithFields(logrus.Fields{
		"assessment_id":   a.ID,
		"patient_id":      patient.ID,
		"session_id":      trail.SessionID(),
		"recommendations": len(recs),
		"failed":          failed,
		"requires_review": a.RequiresReview,
	}).Info("Completed assessment")

	return a, nil
}

// planContext collects the patient details the synthesizer tailors a plan with. The age is only
// passed when age-aware filtering is enabled.
func (p *Pipeline) planContext(patient domain.PatientProfile, ct domain.CancerType) domain.PlanContext {
	var pc domain.PlanContext
	if p.ageAware {
		pc.Age = patient.Demographics.Age
	}
	if last, ok := patient.LastScreening(ct); ok {
		pc.LastScreening = &last
	}
	return pc
}

// recordPlan writes a plan's review date adjustments and synthesis issues to rec.
func recordPlan(rec domain.AuditRecorder, plan *domain.ScreeningPlan) {
	for _, adj := range plan.Adjustments {
		rec.RecordChange(domain.Change{
			Entity: "recommendation:" + adj.RecommendationID,
			Field:  "review_date",
			From:   adj.PreviousReviewDate.Format(time.RFC3339),
			To:     adj.ReviewDate.Format(time.RFC3339),
			Reason: adj.Reason,
		})
	}
	for _, issue := range plan.Errors {
		rec.ReportError(issue)
	}
	rec.Log(fmt.Sprintf("%s plan: %d recommendations, most urgent %s",
		plan.CancerType, len(plan.Recommendations), plan.MostUrgent()))
}

// recordValidations reports the errors of failed results to rec. It returns whether any result
// failed and the total warning count.
func recordValidations(rec domain.AuditRecorder, results []domain.ValidationResult) (failed bool, warnings int) {
	for _, v := range results {
		warnings += len(v.Warnings)
		if v.Passed {
			continue
		}
		failed = true
		for _, issue := range v.Errors {
			rec.ReportError(issue)
		}
	}
	return failed, warnings
}

// AssessBatch assesses patients concurrently, each with its own audit trail. Results are in input
// order. The first context error cancels the remaining assessments.
func (p *Pipeline) AssessBatch(ctx context.Context, patients []domain.PatientProfile) ([]*Assessment, error) {
	results := make([]*Assessment, len(patients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrency)

	for i, patient := range patients {
		i, patient := i, patient
		g.Go(func() error {
			a, err := p.Assess(gctx, patient)
			if err != nil {
				return fmt.Errorf("patient %d (%s): %w", i, patient.ID, err)
			}
			results[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	p.logger.WithField("patients", len(patients)).Info("Completed batch assessment")
	return results, nil
}
