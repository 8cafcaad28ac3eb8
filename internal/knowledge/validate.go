package knowledge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/pkg/genes"
)

// Validate checks the structural integrity of the knowledge base and reports every problem found.
func (b *Base) Validate() error {
	var errs []error
	add := func(field, message string, value interface{}) {
		errs = append(errs, domain.NewValidationError(field, message, value))
	}

	if strings.TrimSpace(b.Version) == "" {
		add("version", "knowledge base version is required", b.Version)
	}

	for i, ct := range b.CancerTypes {
		if !ct.IsValid() {
			add(fmt.Sprintf("cancer_types[%d]", i), domain.ErrInvalidCancerType.Error(), ct)
		}
	}

	if len(b.ApprovedGuidelineSources) == 0 {
		add("approved_guideline_sources", "at least one approved guideline source is required", nil)
	}

	if b.RedFlag.MinLikelihoodRatio <= 0 {
		add("red_flag.min_likelihood_ratio", "must be positive", b.RedFlag.MinLikelihoodRatio)
	}
	if b.RedFlag.ReviewDays <= 0 {
		add("red_flag.review_days", "must be positive", b.RedFlag.ReviewDays)
	}
	if !b.IsApprovedSource(b.RedFlag.GuidelineSource) {
		add("red_flag.guideline_source", "red-flag guideline source must be approved", b.RedFlag.GuidelineSource)
	}
	if q := b.RedFlag.EvidenceQuality; q != "" && !q.IsValid() {
		add("red_flag.evidence_quality", domain.ErrInvalidEvidenceQuality.Error(), q)
	}

	for symbol, risks := range b.GeneRisks {
		if err := genes.ValidateSymbol(symbol); err != nil {
			add("gene_risks."+symbol, "gene table keys must be canonical symbols", symbol)
		}
		for i, gr := range risks {
			field := fmt.Sprintf("gene_risks.%s[%d]", symbol, i)
			if !gr.CancerType.IsValid() {
				add(field+".cancer_type", domain.ErrInvalidCancerType.Error(), gr.CancerType)
			}
			if gr.Weight < 0 || gr.Weight > 1 {
				add(field+".weight", "weight must be within [0,1]", gr.Weight)
			}
		}
	}

	fh := b.FamilyHistory
	if fh.FirstDegree < 0 || fh.EarlyOnset < 0 || fh.MultipleRelatives < 0 {
		add("family_history", "family history weights cannot be negative", fh)
	}

	if b.Lifestyle.Budget < 0 || b.Lifestyle.Budget > 1 {
		add("lifestyle.budget", "budget must be within [0,1]", b.Lifestyle.Budget)
	}
	for i, r := range b.Lifestyle.Rules {
		field := fmt.Sprintf("lifestyle.rules[%d]", i)
		if strings.TrimSpace(r.Factor) == "" {
			add(field+".factor", "factor is required", r.Factor)
		}
		if !r.CancerType.IsValid() {
			add(field+".cancer_type", domain.ErrInvalidCancerType.Error(), r.CancerType)
		}
		if r.Fraction <= 0 || r.Fraction > 1 {
			add(field+".fraction", "fraction must be within (0,1]", r.Fraction)
		}
	}

	if b.Symptoms.Budget < 0 || b.Symptoms.Budget > 1 {
		add("symptoms.budget", "budget must be within [0,1]", b.Symptoms.Budget)
	}
	for i, r := range b.Symptoms.Rules {
		field := fmt.Sprintf("symptoms.rules[%d]", i)
		if strings.TrimSpace(r.Keyword) == "" {
			add(field+".keyword", "keyword is required", r.Keyword)
		}
		if len(r.CancerTypes) == 0 {
			add(field+".cancer_types", "at least one cancer type is required", nil)
		}
		for _, ct := range r.CancerTypes {
			if !ct.IsValid() {
				add(field+".cancer_types", domain.ErrInvalidCancerType.Error(), ct)
			}
		}
		if r.MinSeverity != "" && !r.MinSeverity.IsValid() {
			add(field+".min_severity", domain.ErrInvalidSeverity.Error(), r.MinSeverity)
		}
		if r.Fraction <= 0 || r.Fraction > 1 {
			add(field+".fraction", "fraction must be within (0,1]", r.Fraction)
		}
	}

	for ct, protocols := range b.Protocols {
		if !ct.IsValid() {
			add("protocols."+string(ct), domain.ErrInvalidCancerType.Error(), ct)
		}
		for i, p := range protocols {
			errs = append(errs, p.validate(b, fmt.Sprintf("protocols.%s[%d]", ct, i))...)
		}
	}

	for i, c := range b.SymptomCorrelations {
		field := fmt.Sprintf("symptom_correlations[%d]", i)
		if strings.TrimSpace(c.Symptom) == "" {
			add(field+".symptom", "symptom is required", c.Symptom)
		}
		for _, ct := range c.CancerTypes {
			if !ct.IsValid() {
				add(field+".cancer_types", domain.ErrInvalidCancerType.Error(), ct)
			}
		}
		if c.LikelihoodRatio.Value <= 0 {
			add(field+".likelihood_ratio.value", "likelihood ratio must be positive", c.LikelihoodRatio.Value)
		}
	}

	return errors.Join(errs...)
}

func (p ScreeningProtocol) validate(b *Base, field string) []error {
	var errs []error
	if strings.TrimSpace(p.Test) == "" {
		errs = append(errs, domain.NewValidationError(field+".test", "test is required", p.Test))
	}
	if p.IntervalMonths <= 0 {
		errs = append(errs, domain.NewValidationError(field+".interval_months", "interval must be positive", p.IntervalMonths))
	}
	if p.StopAge != 0 && p.StopAge < p.StartAge {
		errs = append(errs, domain.NewValidationError(field+".stop_age", "stop age precedes start age", p.StopAge))
	}
	switch p.RiskGroup {
	case RiskGroupAverage, RiskGroupHigh, RiskGroupVeryHigh:
	default:
		errs = append(errs, domain.NewValidationError(field+".risk_group", "unknown risk group", p.RiskGroup))
	}
	if !b.IsApprovedSource(p.GuidelineSource) {
		errs = append(errs, domain.NewValidationError(field+".guideline_source", "protocol guideline source is not approved", p.GuidelineSource))
	}
	if p.EvidenceQuality != "" && !p.EvidenceQuality.IsValid() {
		errs = append(errs, domain.NewValidationError(field+".evidence_quality", domain.ErrInvalidEvidenceQuality.Error(), p.EvidenceQuality))
	}
	return errs
}
