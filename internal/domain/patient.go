package domain

import (
	"fmt"
	"strings"
	"time"
)

// PatientProfile is the immutable input of one assessment. Every nested collection is optional;
// nil pointers and nil slices are read as empty.
type PatientProfile struct {
	ID               string           `json:"id,omitempty" yaml:"id,omitempty"`
	Demographics     Demographics     `json:"demographics" yaml:"demographics"`
	Genetics         *Genetics        `json:"genetics,omitempty" yaml:"genetics,omitempty"`
	RiskFactors      *RiskFactors     `json:"risk_factors,omitempty" yaml:"risk_factors,omitempty"`
	Symptoms         []Symptom        `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	ScreeningHistory []ScreeningEvent `json:"screening_history,omitempty" yaml:"screening_history,omitempty"`
}

// Demographics holds age, sex, ethnicity and family cancer history.
type Demographics struct {
	Age           int        `json:"age" yaml:"age"`
	Sex           Sex        `json:"sex,omitempty" yaml:"sex,omitempty"`
	Ethnicity     string     `json:"ethnicity,omitempty" yaml:"ethnicity,omitempty"`
	FamilyHistory []Relative `json:"family_history,omitempty" yaml:"family_history,omitempty"`
}

// Relative is a family member affected by cancer.
type Relative struct {
	Relation       string     `json:"relation" yaml:"relation"`
	CancerType     CancerType `json:"cancer_type" yaml:"cancer_type"`
	AgeAtDiagnosis int        `json:"age_at_diagnosis,omitempty" yaml:"age_at_diagnosis,omitempty"`
}

var firstDegreeRelations = map[string]bool{
	"mother": true, "father": true, "parent": true,
	"sister": true, "brother": true, "sibling": true,
	"daughter": true, "son": true, "child": true,
}

// IsFirstDegree reports whether the relative is a parent, sibling or child.
func (r Relative) IsFirstDegree() bool {
	return firstDegreeRelations[strings.ToLower(strings.TrimSpace(r.Relation))]
}

// DiagnosedBefore reports whether the relative's diagnosis age is known and below age.
func (r Relative) DiagnosedBefore(age int) bool {
	return r.AgeAtDiagnosis > 0 && r.AgeAtDiagnosis < age
}

// Genetics holds germline testing results.
type Genetics struct {
	ConfirmedMutations []string           `json:"confirmed_mutations,omitempty" yaml:"confirmed_mutations,omitempty"`
	Variants           []GeneticVariant   `json:"variants,omitempty" yaml:"variants,omitempty"`
	PenetranceScores   map[string]float64 `json:"penetrance_scores,omitempty" yaml:"penetrance_scores,omitempty"`
}

// GeneticVariant is a reported sequence variant with its five-tier classification
// (pathogenic, likely_pathogenic, uncertain_significance, likely_benign, benign).
type GeneticVariant struct {
	Gene           string `json:"gene" yaml:"gene"`
	HGVS           string `json:"hgvs,omitempty" yaml:"hgvs,omitempty"`
	Classification string `json:"classification,omitempty" yaml:"classification,omitempty"`
}

var classificationReplacer = strings.NewReplacer(" ", "_", "-", "_")

// IsPathogenic reports whether the variant is classified pathogenic or likely pathogenic.
func (v GeneticVariant) IsPathogenic() bool {
	switch classificationReplacer.Replace(strings.ToLower(strings.TrimSpace(v.Classification))) {
	case "pathogenic", "likely_pathogenic", "p", "lp":
		return true
	}
	return false
}

// RiskFactors groups lifestyle, environmental and medical-history exposures.
type RiskFactors struct {
	Lifestyle      Lifestyle `json:"lifestyle" yaml:"lifestyle"`
	Environmental  []string  `json:"environmental,omitempty" yaml:"environmental,omitempty"`
	MedicalHistory []string  `json:"medical_history,omitempty" yaml:"medical_history,omitempty"`
}

// Lifestyle captures behavioural risk factors.
type Lifestyle struct {
	Smoking              SmokingStatus `json:"smoking,omitempty" yaml:"smoking,omitempty"`
	PackYears            float64       `json:"pack_years,omitempty" yaml:"pack_years,omitempty"`
	AlcoholDrinksPerWeek float64       `json:"alcohol_drinks_per_week,omitempty" yaml:"alcohol_drinks_per_week,omitempty"`
	BMI                  float64       `json:"bmi,omitempty" yaml:"bmi,omitempty"`
	PhysicallyActive     *bool         `json:"physically_active,omitempty" yaml:"physically_active,omitempty"`
}

// Symptom is a currently reported symptom.
type Symptom struct {
	Name         string   `json:"name" yaml:"name"`
	Severity     Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	DurationDays int      `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
}

// ScreeningEvent is a prior screening test.
type ScreeningEvent struct {
	CancerType CancerType `json:"cancer_type" yaml:"cancer_type"`
	Test       string     `json:"test" yaml:"test"`
	Date       time.Time  `json:"date" yaml:"date"`
	Result     string     `json:"result,omitempty" yaml:"result,omitempty"`
}

// Mutations returns the confirmed mutations, or nil when genetics were not supplied.
func (p *PatientProfile) Mutations() []string {
	if p.Genetics == nil {
		return nil
	}
	return p.Genetics.ConfirmedMutations
}

// Variants returns the reported variants, or nil when genetics were not supplied.
func (p *PatientProfile) Variants() []GeneticVariant {
	if p.Genetics == nil {
		return nil
	}
	return p.Genetics.Variants
}

// Penetrance returns the reported per-gene penetrance scores, or nil when genetics were not supplied.
func (p *PatientProfile) Penetrance() map[string]float64 {
	if p.Genetics == nil {
		return nil
	}
	return p.Genetics.PenetranceScores
}

// Lifestyle returns the lifestyle factors, or the zero value when risk factors were not supplied.
func (p *PatientProfile) Lifestyle() Lifestyle {
	if p.RiskFactors == nil {
		return Lifestyle{}
	}
	return p.RiskFactors.Lifestyle
}

// Exposures returns environmental exposures, or nil.
func (p *PatientProfile) Exposures() []string {
	if p.RiskFactors == nil {
		return nil
	}
	return p.RiskFactors.Environmental
}

// History returns prior medical conditions, or nil.
func (p *PatientProfile) History() []string {
	if p.RiskFactors == nil {
		return nil
	}
	return p.RiskFactors.MedicalHistory
}

// AffectedRelatives returns the relatives diagnosed with the given cancer type.
func (p *PatientProfile) AffectedRelatives(ct CancerType) []Relative {
	var affected []Relative
	for _, r := range p.Demographics.FamilyHistory {
		if CancerType(strings.ToLower(string(r.CancerType))) == ct {
			affected = append(affected, r)
		}
	}
	return affected
}

// LastScreening returns the most recent screening of the given cancer type, if any.
func (p *PatientProfile) LastScreening(ct CancerType) (ScreeningEvent, bool) {
	var latest ScreeningEvent
	found := false
	for _, ev := range p.ScreeningHistory {
		if ev.CancerType != ct {
			continue
		}
		if !found || ev.Date.After(latest.Date) {
			latest = ev
			found = true
		}
	}
	return latest, found
}

// Validate checks the profile for malformed values. The scorer does not require a valid profile;
// this is for callers that want to reject bad input before assessment.
func (p *PatientProfile) Validate() error {
	if p.Demographics.Age < 0 || p.Demographics.Age > 130 {
		return NewValidationError("demographics.age", "age must be between 0 and 130", p.Demographics.Age)
	}

	if !p.Demographics.Sex.IsValid() {
		return NewValidationError("demographics.sex", "sex must be female, male or other", p.Demographics.Sex)
	}

	for i, r := range p.Demographics.FamilyHistory {
		if r.AgeAtDiagnosis < 0 {
			return NewValidationError(fmt.Sprintf("demographics.family_history[%d].age_at_diagnosis", i),
				"age at diagnosis cannot be negative", r.AgeAtDiagnosis)
		}
	}

	if rf := p.RiskFactors; rf != nil {
		if !rf.Lifestyle.Smoking.IsValid() {
			return NewValidationError("risk_factors.lifestyle.smoking", "smoking must be never, former or current", rf.Lifestyle.Smoking)
		}
		if rf.Lifestyle.BMI < 0 {
			return NewValidationError("risk_factors.lifestyle.bmi", "BMI cannot be negative", rf.Lifestyle.BMI)
		}
		if rf.Lifestyle.AlcoholDrinksPerWeek < 0 {
			return NewValidationError("risk_factors.lifestyle.alcohol_drinks_per_week", "alcohol intake cannot be negative", rf.Lifestyle.AlcoholDrinksPerWeek)
		}
	}

	for i, s := range p.Symptoms {
		if strings.TrimSpace(s.Name) == "" {
			return NewValidationError(fmt.Sprintf("symptoms[%d].name", i), "symptom name is required", s.Name)
		}
		if s.Severity != "" && !s.Severity.IsValid() {
			return NewValidationError(fmt.Sprintf("symptoms[%d].severity", i), ErrInvalidSeverity.Error(), s.Severity)
		}
		if s.DurationDays < 0 {
			return NewValidationError(fmt.Sprintf("symptoms[%d].duration_days", i), "duration cannot be negative", s.DurationDays)
		}
	}

	return nil
}
