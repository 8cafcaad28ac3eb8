package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
)

// Interval optimisation for very high risk plans
const (
	VeryHighRiskReviewMonths = 12
	VeryHighRiskIntervalNote = "Very high risk: review interval shortened to 12 months regardless of the protocol interval"
	RedFlagOverrideNote      = "Red-flag override: urgency is forced by symptom correlation independent of the numeric risk score"
)

// Notes for review dates anchored to the patient's last screening
const (
	overdueScreeningNote   = "Overdue: last %s on %s; schedule now"
	anchoredScreeningNote  = "Next %s due %d months after the last one on %s"
	geneModificationFormat = "%s: %s"
)

// ScreeningEngine synthesises screening plans from risk scores using the knowledge base protocol
// matrix and symptom correlation table.
type ScreeningEngine struct {
	logger *logrus.Logger
	kb     *knowledge.Base
	now    func() time.Time
	newID  func() string
}

// EngineOption configures a ScreeningEngine.
type EngineOption func(*ScreeningEngine)

// WithClock sets the clock used for generated and review dates.
func WithClock(now func() time.Time) EngineOption {
	return func(e *ScreeningEngine) {
		e.now = now
	}
}

// WithIDGenerator sets the recommendation ID generator.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *ScreeningEngine) {
		e.newID = newID
	}
}

// NewScreeningEngine creates a screening engine over the knowledge base.
func NewScreeningEngine(kb *knowledge.Base, logger *logrus.Logger, opts ...EngineOption) *ScreeningEngine {
	e := &ScreeningEngine{
		logger: logger,
		kb:     kb,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Synthesize builds the screening plan for a risk score. It never fails: problems are reported
// in the plan's Errors.
func (e *ScreeningEngine) Synthesize(score domain.RiskScore) *domain.ScreeningPlan {
	return e.SynthesizeFor(score, domain.PlanContext{})
}

// SynthesizeFor is Synthesize tailored to the patient. A known age restricts protocols to those
// whose age range covers it; a last screening with the protocol's test anchors the review date.
func (e *ScreeningEngine) SynthesizeFor(score domain.RiskScore, pc domain.PlanContext) (plan *domain.ScreeningPlan) {
	now := e.now()
	plan = &domain.ScreeningPlan{
		CancerType:      score.CancerType,
		RiskLevel:       score.RiskLevel,
		Recommendations: []domain.ClinicalRecommendation{},
		Rationale:       []string{},
		RiskSummary:     score.Summary(),
		Timeline:        []domain.TimelineEntry{},
		ActionItems:     []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			err := domain.NewPipelineError(domain.ErrSynthesisFailure, domain.StageSynthesis,
				"screening plan synthesis aborted", fmt.Sprint(r))
			plan.Errors = append(plan.Errors, err.Issue())
			e.logger.WithFields(logrus.Fields{
				"cancer_type": score.CancerType,
				"panic":       fmt.Sprint(r),
			}).Error("Recovered from synthesis failure")
		}
	}()

	protocols := e.kb.ProtocolsFor(score.CancerType)
	if len(protocols) == 0 {
		err := domain.NewPipelineError(domain.ErrNoProtocol, domain.StageSynthesis,
			"no screening protocol for cancer type", string(score.CancerType))
		plan.Errors = append(plan.Errors, err.Issue())
		plan.Rationale = append(plan.Rationale, fmt.Sprintf("no screening protocol defined for %s", score.CancerType))
		e.logger.WithField("cancer_type", score.CancerType).Warn("No screening protocol found")
		return plan
	}

	groups := knowledge.RiskGroupsFor(score.RiskLevel)
	urgency := domain.UrgencyUrgent
	if score.RiskLevel == domain.RiskLevelAverage {
		urgency = domain.UrgencyRoutine
	}

	for _, p := range protocols {
		if !containsString(groups, p.RiskGroup) {
			continue
		}
		if pc.Age > 0 && !p.CoversAge(pc.Age) {
			plan.Rationale = append(plan.Rationale, fmt.Sprintf("skipped %s %s protocol (%s): age %d outside %s",
				p.RiskGroup, p.Test, p.GuidelineSource, pc.Age, ageRange(p)))
			continue
		}

		rec := e.protocolRecommendation(score, p, urgency, now)
		anchorReviewDate(&rec, p, pc.LastScreening, now)
		plan.Recommendations = append(plan.Recommendations, rec)
		plan.Rationale = append(plan.Rationale, fmt.Sprintf("matched %s risk protocol: %s every %d months (%s)",
			p.RiskGroup, p.Test, p.IntervalMonths, p.GuidelineSource))
	}

	for _, c := range e.kb.CorrelationsFor(score.CancerType) {
		if c.LikelihoodRatio.Value <= e.kb.RedFlag.MinLikelihoodRatio {
			continue
		}
		rec := e.redFlagRecommendation(score, c, now)
		plan.Recommendations = append(plan.Recommendations, rec)
		plan.Rationale = append(plan.Rationale, fmt.Sprintf("red flag: %s (likelihood ratio %.1f)",
			c.Symptom, c.LikelihoodRatio.Value))
	}

	if score.RiskLevel == domain.RiskLevelVeryHigh {
		e.optimizeIntervals(plan, now)
	}

	if len(plan.Recommendations) == 0 {
		err := domain.NewPipelineError(domain.ErrNoRecommendations, domain.StageSynthesis,
			"no recommendations generated",
			fmt.Sprintf("%s at %s risk", score.CancerType, score.RiskLevel))
		plan.Errors = append(plan.Errors, err.Issue())
	}

	e.finalizePlan(plan)

	e.logger.WithFields(logrus.Fields{
		"cancer_type":     score.CancerType,
		"risk_level":      score.RiskLevel,
		"recommendations": len(plan.Recommendations),
		"adjustments":     len(plan.Adjustments),
		"errors":          len(plan.Errors),
	}).Info("Completed screening plan synthesis")

	return plan
}

func (e *ScreeningEngine) protocolRecommendation(score domain.RiskScore, p knowledge.ScreeningProtocol, urgency domain.Urgency, now time.Time) domain.ClinicalRecommendation {
	reasoning := fmt.Sprintf("%s risk of %s cancer (%.1f%%) matches the %s risk protocol: %s every %d months, ages %s.",
		score.RiskLevel, score.CancerType, score.AbsoluteRisk*100, p.RiskGroup, p.Test, p.IntervalMonths, ageRange(p))
	if p.SharedDecisionNotes != "" {
		reasoning += " " + p.SharedDecisionNotes
	}

	return domain.ClinicalRecommendation{
		ID:              e.newID(),
		CancerType:      score.CancerType,
		Urgency:         urgency,
		TestRecommended: p.Test,
		Rationale: domain.RecommendationRationale{
			GuidelineSource: p.GuidelineSource,
			Grade:           p.Grade,
			KeyFactors:      keyFactors(score),
			Reasoning:       reasoning,
			EvidenceQuality: p.EvidenceQuality,
		},
		AlternativeTests:      append([]string(nil), p.AlternativeTests...),
		GeneratedDate:         now,
		ReviewDate:            now.AddDate(0, p.IntervalMonths, 0),
		SpecialConsiderations: e.geneModifications(score),
	}
}

// geneModifications lists the knowledge base screening modifications of the genes behind a score.
func (e *ScreeningEngine) geneModifications(score domain.RiskScore) []string {
	var out []string
	for _, symbol := range score.Genes {
		gr, ok := e.kb.GeneWeight(symbol, score.CancerType)
		if !ok {
			continue
		}
		for _, m := range gr.ScreeningModifications {
			out = append(out, fmt.Sprintf(geneModificationFormat, symbol, m))
		}
	}
	return out
}

// anchorReviewDate schedules the review one protocol interval after the last screening with the
// same test. Overdue screenings are due now. Events dated after now are ignored.
func anchorReviewDate(rec *domain.ClinicalRecommendation, p knowledge.ScreeningProtocol, last *domain.ScreeningEvent, now time.Time) {
	if last == nil || !strings.EqualFold(strings.TrimSpace(last.Test), p.Test) || last.Date.After(now) {
		return
	}

	lastDate := last.Date.Format("2006-01-02")
	due := last.Date.AddDate(0, p.IntervalMonths, 0)
	if due.Before(now) {
		rec.ReviewDate = now
		rec.SpecialConsiderations = append(rec.SpecialConsiderations, fmt.Sprintf(overdueScreeningNote, p.Test, lastDate))
		return
	}
	rec.ReviewDate = due
	rec.SpecialConsiderations = append(rec.SpecialConsiderations,
		fmt.Sprintf(anchoredScreeningNote, p.Test, p.IntervalMonths, lastDate))
}

func (e *ScreeningEngine) redFlagRecommendation(score domain.RiskScore, c knowledge.SymptomCorrelation, now time.Time) domain.ClinicalRecommendation {
	reasoning := c.ClinicalContext
	if reasoning == "" {
		reasoning = fmt.Sprintf("%s is associated with %s cancer", c.Symptom, score.CancerType)
	}

	factor := fmt.Sprintf("symptom correlation: %s (likelihood ratio %.1f)", c.Symptom, c.LikelihoodRatio.Value)
	if c.LikelihoodRatio.Source != "" {
		factor += ", " + c.LikelihoodRatio.Source
	}

	return domain.ClinicalRecommendation{
		ID:              e.newID(),
		CancerType:      score.CancerType,
		Urgency:         domain.UrgencyUrgent,
		TestRecommended: domain.TestOther,
		Rationale: domain.RecommendationRationale{
			GuidelineSource: e.kb.RedFlag.GuidelineSource,
			KeyFactors:      []string{factor},
			Reasoning:       reasoning,
			EvidenceQuality: e.kb.RedFlag.EvidenceQuality,
		},
		GeneratedDate:         now,
		ReviewDate:            now.AddDate(0, 0, e.kb.RedFlag.ReviewDays),
		SpecialConsiderations: []string{RedFlagOverrideNote},
	}
}

// optimizeIntervals caps every review date of a very high risk plan at one year and records each
// shortened interval. Dates already inside the year are left alone.
func (e *ScreeningEngine) optimizeIntervals(plan *domain.ScreeningPlan, now time.Time) {
	limit := now.AddDate(0, VeryHighRiskReviewMonths, 0)
	for i := range plan.Recommendations {
		rec := &plan.Recommendations[i]
		if !rec.ReviewDate.After(limit) {
			continue
		}

		plan.Adjustments = append(plan.Adjustments, domain.IntervalAdjustment{
			RecommendationID:   rec.ID,
			PreviousReviewDate: rec.ReviewDate,
			ReviewDate:         limit,
			Reason:             VeryHighRiskIntervalNote,
		})
		rec.ReviewDate = limit
		if !containsString(rec.SpecialConsiderations, VeryHighRiskIntervalNote) {
			rec.SpecialConsiderations = append(rec.SpecialConsiderations, VeryHighRiskIntervalNote)
		}
	}
}

// finalizePlan derives the timeline and action items from the recommendations.
func (e *ScreeningEngine) finalizePlan(plan *domain.ScreeningPlan) {
	for _, rec := range plan.Recommendations {
		action := "Schedule " + rec.TestRecommended
		if rec.IsRedFlag() {
			action = fmt.Sprintf("Clinical evaluation for %s cancer symptoms", rec.CancerType)
		}
		plan.Timeline = append(plan.Timeline, domain.TimelineEntry{
			Date:             rec.ReviewDate,
			RecommendationID: rec.ID,
			Action:           action,
			Urgency:          rec.Urgency,
		})
	}
	domain.SortTimeline(plan.Timeline)

	for _, entry := range plan.Timeline {
		plan.ActionItems = append(plan.ActionItems, fmt.Sprintf("[%s] %s by %s",
			entry.Urgency, entry.Action, entry.Date.Format("2006-01-02")))
	}
	if plan.HasErrors() {
		plan.ActionItems = append(plan.ActionItems, "Review plan errors before presenting recommendations")
	}
}

func keyFactors(score domain.RiskScore) []string {
	if len(score.Rationale) == 0 {
		return []string{fmt.Sprintf("no %s risk factors identified", score.CancerType)}
	}
	return append([]string(nil), score.Rationale...)
}

func ageRange(p knowledge.ScreeningProtocol) string {
	if p.StopAge == 0 {
		return fmt.Sprintf("%d+", p.StartAge)
	}
	return fmt.Sprintf("%d-%d", p.StartAge, p.StopAge)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
