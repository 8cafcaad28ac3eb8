// Package knowledge holds the read-only reference data consumed by the screening pipeline:
// gene risk weights, the lifestyle and symptom rule tables, the screening protocol matrix and the
// symptom correlation table.
//
// A Base is explicitly constructed and injected into each service. Updating clinical guidelines is
// a change to the knowledge base data, not to code.
package knowledge

import (
	"sort"
	"strings"

	"github.com/cancer-risk-screening/internal/domain"
)

// Risk groups used by screening protocols.
const (
	RiskGroupAverage  = "average"
	RiskGroupHigh     = "high"
	RiskGroupVeryHigh = "very_high"
)

// Base is a versioned, read-only knowledge base. Services must not modify it after construction.
type Base struct {
	Version                  string                                    `yaml:"version"`
	CancerTypes              []domain.CancerType                       `yaml:"cancer_types"`
	ApprovedGuidelineSources []string                                  `yaml:"approved_guideline_sources"`
	RedFlag                  RedFlagPolicy                             `yaml:"red_flag"`
	GeneAliases              map[string]string                         `yaml:"gene_aliases"`
	GeneRisks                map[string][]GeneRisk                     `yaml:"gene_risks"`
	FamilyHistory            FamilyHistoryWeights                      `yaml:"family_history"`
	Lifestyle                FactorTable                               `yaml:"lifestyle"`
	Symptoms                 SymptomTable                              `yaml:"symptoms"`
	Protocols                map[domain.CancerType][]ScreeningProtocol `yaml:"protocols"`
	SymptomCorrelations      []SymptomCorrelation                      `yaml:"symptom_correlations"`
}

// GeneRisk is the contribution of a confirmed mutation to one cancer type.
type GeneRisk struct {
	CancerType             domain.CancerType `yaml:"cancer_type"`
	Weight                 float64           `yaml:"weight"`
	LifetimeRisk           *float64          `yaml:"lifetime_risk,omitempty"`
	AgeRiskCurve           map[int]float64   `yaml:"age_risk_curve,omitempty"`
	ScreeningModifications []string          `yaml:"screening_modifications,omitempty"`
}

// RiskByAge returns the cumulative risk at the first curve age not below age. It reports false for
// an unknown age, an empty curve or an age past the last point.
func (g GeneRisk) RiskByAge(age int) (int, float64, bool) {
	if age <= 0 || len(g.AgeRiskCurve) == 0 {
		return 0, 0, false
	}
	ages := make([]int, 0, len(g.AgeRiskCurve))
	for a := range g.AgeRiskCurve {
		ages = append(ages, a)
	}
	sort.Ints(ages)
	for _, a := range ages {
		if a >= age {
			return a, g.AgeRiskCurve[a], true
		}
	}
	return 0, 0, false
}

// FamilyHistoryWeights holds the additive family history contributions.
type FamilyHistoryWeights struct {
	FirstDegree       float64 `yaml:"first_degree"`
	EarlyOnset        float64 `yaml:"early_onset"`
	EarlyOnsetAge     int     `yaml:"early_onset_age"`
	MultipleRelatives float64 `yaml:"multiple_relatives"`
}

// FactorTable assigns each lifestyle factor a fraction of a per-cancer budget.
type FactorTable struct {
	Budget float64      `yaml:"budget"`
	Rules  []FactorRule `yaml:"rules"`
}

// FactorRule fires when the patient presents Factor. Factor names are derived by the scorer:
// current_smoker, former_smoker, alcohol_use, obesity, physical_inactivity, exposure:<name>,
// history:<condition>.
type FactorRule struct {
	Factor     string            `yaml:"factor"`
	CancerType domain.CancerType `yaml:"cancer_type"`
	Fraction   float64           `yaml:"fraction"`
	Label      string            `yaml:"label,omitempty"`
}

// SymptomTable assigns symptom rules a fraction of a per-cancer budget.
type SymptomTable struct {
	Budget float64       `yaml:"budget"`
	Rules  []SymptomRule `yaml:"rules"`
}

// SymptomRule fires when a reported symptom contains Keyword, is at least MinSeverity and has
// lasted longer than DurationOverDays.
type SymptomRule struct {
	Keyword          string              `yaml:"keyword"`
	CancerTypes      []domain.CancerType `yaml:"cancer_types"`
	MinSeverity      domain.Severity     `yaml:"min_severity,omitempty"`
	DurationOverDays int                 `yaml:"duration_over_days,omitempty"`
	Fraction         float64             `yaml:"fraction"`
}

// ScreeningProtocol is one guideline entry of the protocol matrix.
type ScreeningProtocol struct {
	Test                string                 `yaml:"test"`
	IntervalMonths      int                    `yaml:"interval_months"`
	StartAge            int                    `yaml:"start_age"`
	StopAge             int                    `yaml:"stop_age"`
	RiskGroup           string                 `yaml:"risk_group"`
	GuidelineSource     string                 `yaml:"guideline_source"`
	Grade               string                 `yaml:"grade,omitempty"`
	EvidenceQuality     domain.EvidenceQuality `yaml:"evidence_quality,omitempty"`
	AlternativeTests    []string               `yaml:"alternative_tests,omitempty"`
	SharedDecisionNotes string                 `yaml:"shared_decision_notes,omitempty"`
}

// CoversAge reports whether age falls inside the protocol's age range. A zero StopAge is open ended.
func (p ScreeningProtocol) CoversAge(age int) bool {
	if age < p.StartAge {
		return false
	}
	return p.StopAge == 0 || age <= p.StopAge
}

// SymptomCorrelation links a presenting symptom to cancer types by likelihood ratio.
type SymptomCorrelation struct {
	Symptom         string              `yaml:"symptom"`
	CancerTypes     []domain.CancerType `yaml:"cancer_types"`
	LikelihoodRatio LikelihoodRatio     `yaml:"likelihood_ratio"`
	ClinicalContext string              `yaml:"clinical_context,omitempty"`
}

// LikelihoodRatio is a positive likelihood ratio with optional 95% interval and citation.
type LikelihoodRatio struct {
	Value  float64    `yaml:"value"`
	CI95   [2]float64 `yaml:"ci95,omitempty"`
	Source string     `yaml:"source,omitempty"`
}

// RedFlagPolicy configures recommendations forced by symptom correlations.
type RedFlagPolicy struct {
	MinLikelihoodRatio float64                `yaml:"min_likelihood_ratio"`
	ReviewDays         int                    `yaml:"review_days"`
	GuidelineSource    string                 `yaml:"guideline_source"`
	EvidenceQuality    domain.EvidenceQuality `yaml:"evidence_quality,omitempty"`
}

// Types returns the cancer types to score, defaulting to domain.SupportedCancerTypes.
func (b *Base) Types() []domain.CancerType {
	if len(b.CancerTypes) == 0 {
		return domain.SupportedCancerTypes
	}
	return b.CancerTypes
}

// GeneRisksFor returns the gene table entries for a canonical gene symbol.
func (b *Base) GeneRisksFor(symbol string) []GeneRisk {
	return b.GeneRisks[symbol]
}

// GeneWeight returns the weight of symbol for the cancer type and whether the pair is known.
func (b *Base) GeneWeight(symbol string, ct domain.CancerType) (GeneRisk, bool) {
	for _, gr := range b.GeneRisks[symbol] {
		if gr.CancerType == ct {
			return gr, true
		}
	}
	return GeneRisk{}, false
}

// ProtocolsFor returns the protocols for a cancer type.
func (b *Base) ProtocolsFor(ct domain.CancerType) []ScreeningProtocol {
	return b.Protocols[ct]
}

// CorrelationsFor returns the symptom correlations mentioning the cancer type.
func (b *Base) CorrelationsFor(ct domain.CancerType) []SymptomCorrelation {
	var out []SymptomCorrelation
	for _, c := range b.SymptomCorrelations {
		for _, t := range c.CancerTypes {
			if t == ct {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// LifestyleRulesFor returns the lifestyle rules for a cancer type.
func (b *Base) LifestyleRulesFor(ct domain.CancerType) []FactorRule {
	var out []FactorRule
	for _, r := range b.Lifestyle.Rules {
		if r.CancerType == ct {
			out = append(out, r)
		}
	}
	return out
}

// SymptomRulesFor returns the symptom rules for a cancer type.
func (b *Base) SymptomRulesFor(ct domain.CancerType) []SymptomRule {
	var out []SymptomRule
	for _, r := range b.Symptoms.Rules {
		for _, t := range r.CancerTypes {
			if t == ct {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// IsApprovedSource reports whether a guideline source is in the approved set. Matching ignores case.
func (b *Base) IsApprovedSource(source string) bool {
	source = strings.TrimSpace(source)
	if source == "" {
		return false
	}
	for _, s := range b.ApprovedGuidelineSources {
		if strings.EqualFold(s, source) {
			return true
		}
	}
	return false
}

// RiskGroupsFor returns the protocol risk groups that apply to a risk level.
// Average maps to "average"; every increased level maps to "high" and very_high also to "very_high".
func RiskGroupsFor(level domain.RiskLevel) []string {
	switch level {
	case domain.RiskLevelVeryHigh:
		return []string{RiskGroupHigh, RiskGroupVeryHigh}
	case domain.RiskLevelHigh, domain.RiskLevelElevated:
		return []string{RiskGroupHigh}
	default:
		return []string{RiskGroupAverage}
	}
}
