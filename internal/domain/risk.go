package domain

import (
	"fmt"
	"math"
)

// ConfidenceHalfWidth is the half width of the confidence band around an absolute risk.
// It is a fixed placeholder, not a calibrated statistical interval.
const ConfidenceHalfWidth = 0.10

// RiskComponents breaks an absolute risk down into its four additive contributions.
type RiskComponents struct {
	Genetic       float64 `json:"genetic"`
	FamilyHistory float64 `json:"family_history"`
	Lifestyle     float64 `json:"lifestyle"`
	Symptoms      float64 `json:"symptoms"`
}

// Sum returns the unclamped total of the contributions.
func (c RiskComponents) Sum() float64 {
	return c.Genetic + c.FamilyHistory + c.Lifestyle + c.Symptoms
}

// RiskScore is the estimated risk of one cancer type for one patient.
type RiskScore struct {
	CancerType         CancerType     `json:"cancer_type"`
	AbsoluteRisk       float64        `json:"absolute_risk"`
	RiskLevel          RiskLevel      `json:"risk_level"`
	ConfidenceInterval [2]float64     `json:"confidence_interval"`
	Components         RiskComponents `json:"components"`
	Rationale          []string       `json:"rationale"`
	Genes              []string       `json:"genes,omitempty"`
}

// NewRiskScore builds a RiskScore from its components, applying rounding, clamping, the level
// thresholds and the placeholder confidence band.
func NewRiskScore(ct CancerType, components RiskComponents, rationale []string) RiskScore {
	risk := Clamp01(RoundRisk(components.Sum()))
	r := make([]string, len(rationale))
	copy(r, rationale)
	return RiskScore{
		CancerType:         ct,
		AbsoluteRisk:       risk,
		RiskLevel:          RiskLevelFor(risk),
		ConfidenceInterval: ConfidenceBand(risk),
		Components:         components,
		Rationale:          r,
	}
}

// ConfidenceBand returns [risk-0.1, risk+0.1] clamped to [0,1].
func ConfidenceBand(risk float64) [2]float64 {
	return [2]float64{
		Clamp01(RoundRisk(risk - ConfidenceHalfWidth)),
		Clamp01(RoundRisk(risk + ConfidenceHalfWidth)),
	}
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RoundRisk rounds to four decimals so additive float noise cannot cross a threshold.
func RoundRisk(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Brackets reports whether the confidence interval contains the absolute risk and stays in [0,1].
func (s RiskScore) Brackets() bool {
	lo, hi := s.ConfidenceInterval[0], s.ConfidenceInterval[1]
	return lo >= 0 && hi <= 1 && lo <= s.AbsoluteRisk && s.AbsoluteRisk <= hi
}

// Summary renders a one-line description for plans and reports.
func (s RiskScore) Summary() string {
	return fmt.Sprintf("%s: %s risk %.1f%% (band %.1f%%-%.1f%%)",
		s.CancerType, s.RiskLevel, s.AbsoluteRisk*100,
		s.ConfidenceInterval[0]*100, s.ConfidenceInterval[1]*100)
}

// LogFields returns structured logging fields for the score.
func (s RiskScore) LogFields() map[string]any {
	return map[string]any{
		"cancer_type":    string(s.CancerType),
		"absolute_risk":  s.AbsoluteRisk,
		"risk_level":     string(s.RiskLevel),
		"genetic":        s.Components.Genetic,
		"family_history": s.Components.FamilyHistory,
		"lifestyle":      s.Components.Lifestyle,
		"symptoms":       s.Components.Symptoms,
	}
}

// RiskMap indexes absolute risks by cancer type, the form the compliance validator consumes.
func RiskMap(scores []RiskScore) map[CancerType]float64 {
	m := make(map[CancerType]float64, len(scores))
	for _, s := range scores {
		m[s.CancerType] = s.AbsoluteRisk
	}
	return m
}
