package service

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
	"github.com/cancer-risk-screening/pkg/genes"
	"github.com/cancer-risk-screening/pkg/hgvs"
)

// Lifestyle factor derivation thresholds
const (
	alcoholDrinksPerWeekThreshold = 7
	obesityBMIThreshold           = 30
)

// weightEpsilon drops budget remainders too small to show in a rationale.
const weightEpsilon = 1e-9

// Derived lifestyle factor names matched against the knowledge base lifestyle table.
const (
	FactorCurrentSmoker      = "current_smoker"
	FactorFormerSmoker       = "former_smoker"
	FactorAlcoholUse         = "alcohol_use"
	FactorObesity            = "obesity"
	FactorPhysicalInactivity = "physical_inactivity"
	factorExposurePrefix     = "exposure:"
	factorHistoryPrefix      = "history:"
)

// riskComponent names one of the four additive contributions of a risk score.
type riskComponent string

const (
	componentGenetic       riskComponent = "genetic"
	componentFamilyHistory riskComponent = "family_history"
	componentLifestyle     riskComponent = "lifestyle"
	componentSymptoms      riskComponent = "symptoms"
)

// riskRule is one row of the scorer's rules table: a weight added to a component of one cancer
// type's score when Match fires for the patient.
type riskRule struct {
	Component  riskComponent
	CancerType domain.CancerType
	Gene       string
	Weight     float64
	Match      func(f *patientFacts) (detail string, ok bool)
}

// RiskScorer estimates per-cancer-type risk as a weighted sum over the knowledge base tables.
type RiskScorer struct {
	logger     *logrus.Logger
	kb         *knowledge.Base
	normalizer *genes.Normalizer
	rules      map[domain.CancerType][]riskRule
	caps       map[riskComponent]float64
}

// NewRiskScorer creates a scorer over the knowledge base. The rules table is built once.
func NewRiskScorer(kb *knowledge.Base, logger *logrus.Logger) *RiskScorer {
	s := &RiskScorer{
		logger:     logger,
		kb:         kb,
		normalizer: genes.NewNormalizer(kb.GeneAliases),
		rules:      make(map[domain.CancerType][]riskRule),
		caps: map[riskComponent]float64{
			componentLifestyle: kb.Lifestyle.Budget,
			componentSymptoms:  kb.Symptoms.Budget,
		},
	}

	s.initializeRules()

	return s
}

// Score returns one RiskScore per knowledge base cancer type, in knowledge base order.
// Missing optional input is read as empty; Score never fails.
func (s *RiskScorer) Score(patient domain.PatientProfile) []domain.RiskScore {
	facts := s.derivePatientFacts(&patient)

	scores := make([]domain.RiskScore, 0, len(s.kb.Types()))
	for _, ct := range s.kb.Types() {
		score := s.accumulate(ct, s.rules[ct], facts)
		scores = append(scores, score)

		s.logger.WithFields(logrus.Fields(score.LogFields())).Debug("Scored cancer type")
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":      patient.ID,
		"cancer_types":    len(scores),
		"increased_risks": countIncreased(scores),
	}).Info("Completed risk scoring")

	return scores
}

// accumulate folds the rules of one cancer type into an immutable score.
func (s *RiskScorer) accumulate(ct domain.CancerType, rules []riskRule, facts *patientFacts) domain.RiskScore {
	var components domain.RiskComponents
	var rationale, genes []string

	for _, rule := range rules {
		detail, ok := rule.Match(facts)
		if !ok {
			continue
		}

		slot := componentSlot(&components, rule.Component)
		weight := rule.Weight
		suffix := ""
		if limit, capped := s.caps[rule.Component]; capped && *slot+weight > limit {
			weight = limit - *slot
			suffix = " (budget reached)"
		}
		if weight <= weightEpsilon {
			continue
		}

		*slot += weight
		rationale = append(rationale, fmt.Sprintf("%s: %s +%.2f%s", rule.Component, detail, weight, suffix))
		if rule.Gene != "" {
			genes = append(genes, rule.Gene)
		}
	}

	score := domain.NewRiskScore(ct, components, rationale)
	score.Genes = genes
	return score
}

func componentSlot(c *domain.RiskComponents, component riskComponent) *float64 {
	switch component {
	case componentGenetic:
		return &c.Genetic
	case componentFamilyHistory:
		return &c.FamilyHistory
	case componentLifestyle:
		return &c.Lifestyle
	default:
		return &c.Symptoms
	}
}

// initializeRules flattens the knowledge base tables into per-cancer rule lists.
func (s *RiskScorer) initializeRules() {
	s.initializeGeneticRules()
	s.initializeFamilyHistoryRules()
	s.initializeLifestyleRules()
	s.initializeSymptomRules()
}

func (s *RiskScorer) addRule(rule riskRule) {
	s.rules[rule.CancerType] = append(s.rules[rule.CancerType], rule)
}

func (s *RiskScorer) initializeGeneticRules() {
	symbols := make([]string, 0, len(s.kb.GeneRisks))
	for symbol := range s.kb.GeneRisks {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		symbol := symbol
		for _, gr := range s.kb.GeneRisksFor(symbol) {
			gr := gr
			s.addRule(riskRule{
				Component:  componentGenetic,
				CancerType: gr.CancerType,
				Gene:       symbol,
				Weight:     gr.Weight,
				Match: func(f *patientFacts) (string, bool) {
					if !f.mutations[symbol] {
						return "", false
					}
					return geneDetail(symbol, gr, f), true
				},
			})
		}
	}
}

// geneDetail describes a confirmed mutation. A penetrance reported for the patient replaces the
// population lifetime risk; the age curve adds the cumulative risk at the next tabulated age.
func geneDetail(symbol string, gr knowledge.GeneRisk, f *patientFacts) string {
	detail := fmt.Sprintf("confirmed %s mutation", symbol)
	if p, ok := f.penetrance[symbol]; ok {
		detail = fmt.Sprintf("%s (reported penetrance %.0f%%)", detail, p*100)
	} else if gr.LifetimeRisk != nil {
		detail = fmt.Sprintf("%s (lifetime risk %.0f%%)", detail, *gr.LifetimeRisk*100)
	}
	if age, risk, ok := gr.RiskByAge(f.age); ok {
		detail = fmt.Sprintf("%s, %.0f%% by age %d", detail, risk*100, age)
	}
	return detail
}

func (s *RiskScorer) initializeFamilyHistoryRules() {
	fh := s.kb.FamilyHistory
	for _, ct := range s.kb.Types() {
		ct := ct
		s.addRule(riskRule{
			Component:  componentFamilyHistory,
			CancerType: ct,
			Weight:     fh.FirstDegree,
			Match: func(f *patientFacts) (string, bool) {
				for _, r := range f.relatives[ct] {
					if r.IsFirstDegree() {
						return fmt.Sprintf("first-degree relative (%s) with %s cancer", strings.ToLower(r.Relation), ct), true
					}
				}
				return "", false
			},
		})
		s.addRule(riskRule{
			Component:  componentFamilyHistory,
			CancerType: ct,
			Weight:     fh.EarlyOnset,
			Match: func(f *patientFacts) (string, bool) {
				for _, r := range f.relatives[ct] {
					if r.DiagnosedBefore(fh.EarlyOnsetAge) {
						return fmt.Sprintf("relative diagnosed with %s cancer at %d", ct, r.AgeAtDiagnosis), true
					}
				}
				return "", false
			},
		})
		s.addRule(riskRule{
			Component:  componentFamilyHistory,
			CancerType: ct,
			Weight:     fh.MultipleRelatives,
			Match: func(f *patientFacts) (string, bool) {
				n := len(f.relatives[ct])
				return fmt.Sprintf("%d relatives with %s cancer", n, ct), n > 1
			},
		})
	}
}

func (s *RiskScorer) initializeLifestyleRules() {
	budget := s.kb.Lifestyle.Budget
	for _, ct := range s.kb.Types() {
		for _, r := range s.kb.LifestyleRulesFor(ct) {
			r := r
			label := r.Label
			if label == "" {
				label = r.Factor
			}
			s.addRule(riskRule{
				Component:  componentLifestyle,
				CancerType: ct,
				Weight:     r.Fraction * budget,
				Match: func(f *patientFacts) (string, bool) {
					return label, f.hasFactor(r.Factor)
				},
			})
		}
	}
}

func (s *RiskScorer) initializeSymptomRules() {
	budget := s.kb.Symptoms.Budget
	for _, ct := range s.kb.Types() {
		for _, r := range s.kb.SymptomRulesFor(ct) {
			r := r
			keyword := strings.ToLower(strings.TrimSpace(r.Keyword))
			s.addRule(riskRule{
				Component:  componentSymptoms,
				CancerType: ct,
				Weight:     r.Fraction * budget,
				Match: func(f *patientFacts) (string, bool) {
					for _, sym := range f.symptoms {
						if !strings.Contains(strings.ToLower(sym.Name), keyword) {
							continue
						}
						if !sym.Severity.AtLeast(r.MinSeverity) {
							continue
						}
						if r.DurationOverDays > 0 && sym.DurationDays <= r.DurationOverDays {
							continue
						}
						return fmt.Sprintf("symptom %q matches %q", sym.Name, keyword), true
					}
					return "", false
				},
			})
		}
	}
}

// patientFacts is the normalised view of a profile that rules match against.
type patientFacts struct {
	mutations  map[string]bool
	penetrance map[string]float64
	age        int
	relatives  map[domain.CancerType][]domain.Relative
	factors    map[string]bool
	exposures  []string
	history    []string
	symptoms   []domain.Symptom
}

func (s *RiskScorer) derivePatientFacts(p *domain.PatientProfile) *patientFacts {
	f := &patientFacts{
		mutations:  make(map[string]bool),
		penetrance: make(map[string]float64),
		age:        p.Demographics.Age,
		relatives:  make(map[domain.CancerType][]domain.Relative),
		factors:    deriveLifestyleFactors(p.Lifestyle()),
		exposures:  lowerAll(p.Exposures()),
		history:    lowerAll(p.History()),
		symptoms:   p.Symptoms,
	}

	names := append(slices.Clone(p.Mutations()), s.pathogenicVariantGenes(p)...)
	for _, symbol := range s.normalizer.NormalizeAll(names) {
		f.mutations[symbol] = true
	}

	for name, score := range p.Penetrance() {
		if symbol, ok := s.normalizer.Normalize(name); ok {
			f.penetrance[symbol] = domain.Clamp01(score)
		}
	}

	for _, ct := range s.kb.Types() {
		if affected := p.AffectedRelatives(ct); len(affected) > 0 {
			f.relatives[ct] = affected
		}
	}

	return f
}

// pathogenicVariantGenes returns the genes of pathogenic and likely pathogenic variants. A variant
// whose HGVS expression is present but malformed is not counted.
func (s *RiskScorer) pathogenicVariantGenes(p *domain.PatientProfile) []string {
	var out []string
	for _, v := range p.Variants() {
		if !v.IsPathogenic() {
			continue
		}
		if v.HGVS != "" {
			if err := hgvs.Validate(v.HGVS); err != nil {
				s.logger.WithFields(logrus.Fields{
					"gene":  v.Gene,
					"hgvs":  v.HGVS,
					"error": err.Error(),
				}).Warn("Ignoring pathogenic variant with malformed HGVS expression")
				continue
			}
		}
		out = append(out, v.Gene)
	}
	return out
}

func deriveLifestyleFactors(l domain.Lifestyle) map[string]bool {
	factors := make(map[string]bool)
	switch l.Smoking.Normalized() {
	case domain.SmokingCurrent:
		factors[FactorCurrentSmoker] = true
	case domain.SmokingFormer:
		factors[FactorFormerSmoker] = true
	}
	if l.AlcoholDrinksPerWeek >= alcoholDrinksPerWeekThreshold {
		factors[FactorAlcoholUse] = true
	}
	if l.BMI > obesityBMIThreshold {
		factors[FactorObesity] = true
	}
	if l.PhysicallyActive != nil && !*l.PhysicallyActive {
		factors[FactorPhysicalInactivity] = true
	}
	return factors
}

// hasFactor matches derived lifestyle factors exactly and exposure/history factors by substring.
func (f *patientFacts) hasFactor(factor string) bool {
	factor = strings.ToLower(strings.TrimSpace(factor))
	switch {
	case strings.HasPrefix(factor, factorExposurePrefix):
		return containsSubstring(f.exposures, strings.TrimPrefix(factor, factorExposurePrefix))
	case strings.HasPrefix(factor, factorHistoryPrefix):
		return containsSubstring(f.history, strings.TrimPrefix(factor, factorHistoryPrefix))
	default:
		return f.factors[factor]
	}
}

func containsSubstring(values []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func countIncreased(scores []domain.RiskScore) int {
	count := 0
	for _, s := range scores {
		if s.RiskLevel.IsIncreased() {
			count++
		}
	}
	return count
}
