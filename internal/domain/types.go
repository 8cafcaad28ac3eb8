// Package domain contains the core entities of the cancer screening decision pipeline:
// patient inputs, per-cancer risk scores, screening recommendations and their validation results.
//
// The pipeline runs PatientProfile -> RiskScore -> ScreeningPlan -> ValidationResult. Every stage
// degrades instead of failing, so callers must inspect plan errors and ValidationResult.Passed
// before presenting a recommendation as clinically endorsed.
package domain

import (
	"errors"
	"strings"
)

// CancerType identifies a cancer site assessed by the pipeline.
type CancerType string

const (
	CancerBreast      CancerType = "breast"
	CancerColorectal  CancerType = "colorectal"
	CancerLung        CancerType = "lung"
	CancerProstate    CancerType = "prostate"
	CancerEndometrial CancerType = "endometrial"
	CancerOvarian     CancerType = "ovarian"
	CancerPancreatic  CancerType = "pancreatic"
	CancerBladder     CancerType = "bladder"
	CancerLiver       CancerType = "liver"
)

// SupportedCancerTypes lists the cancer types scored by default, in report order.
var SupportedCancerTypes = []CancerType{
	CancerBreast,
	CancerColorectal,
	CancerLung,
	CancerProstate,
	CancerEndometrial,
	CancerOvarian,
	CancerPancreatic,
	CancerBladder,
	CancerLiver,
}

// RiskLevel is the ordinal category derived from an absolute risk.
type RiskLevel string

const (
	RiskLevelAverage  RiskLevel = "average"
	RiskLevelElevated RiskLevel = "elevated"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelVeryHigh RiskLevel = "very_high"
)

// Risk level thresholds. A score at or above VeryHighRiskThreshold is very_high, at or above
// HighRiskThreshold is high, strictly above ElevatedRiskThreshold is elevated.
const (
	VeryHighRiskThreshold = 0.5
	HighRiskThreshold     = 0.35
	ElevatedRiskThreshold = 0.15
)

// Urgency is the scheduling priority of a recommendation.
type Urgency string

const (
	UrgencyEmergent     Urgency = "emergent"
	UrgencyUrgent       Urgency = "urgent"
	UrgencySoon         Urgency = "soon"
	UrgencyRoutine      Urgency = "routine"
	UrgencyFuture       Urgency = "future"
	UrgencyNotIndicated Urgency = "not_indicated"
)

// EvidenceQuality grades the evidence behind a guideline recommendation.
type EvidenceQuality string

const (
	EvidenceHigh     EvidenceQuality = "high"
	EvidenceModerate EvidenceQuality = "moderate"
	EvidenceLow      EvidenceQuality = "low"
)

// Severity describes how severe a reported symptom is.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Sex is the patient's sex as recorded for screening eligibility.
type Sex string

const (
	SexFemale  Sex = "female"
	SexMale    Sex = "male"
	SexOther   Sex = "other"
	SexUnknown Sex = ""
)

// SmokingStatus records tobacco exposure.
type SmokingStatus string

const (
	SmokingNever   SmokingStatus = "never"
	SmokingFormer  SmokingStatus = "former"
	SmokingCurrent SmokingStatus = "current"
)

// Enumeration errors
var (
	ErrInvalidCancerType      = errors.New("invalid cancer type")
	ErrInvalidEvidenceQuality = errors.New("invalid evidence quality")
	ErrInvalidSeverity        = errors.New("invalid symptom severity")
)

// IsValid reports whether the cancer type is one the pipeline knows how to score.
func (c CancerType) IsValid() bool {
	for _, ct := range SupportedCancerTypes {
		if ct == c {
			return true
		}
	}
	return false
}

func (c CancerType) String() string {
	return string(c)
}

// ParseCancerType normalises free text such as "Colorectal" or " breast ".
func ParseCancerType(s string) (CancerType, error) {
	ct := CancerType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", ErrInvalidCancerType
	}
	return ct, nil
}

// RiskLevelFor maps an absolute risk onto its risk level. The mapping is monotonic.
func RiskLevelFor(absoluteRisk float64) RiskLevel {
	switch {
	case absoluteRisk >= VeryHighRiskThreshold:
		return RiskLevelVeryHigh
	case absoluteRisk >= HighRiskThreshold:
		return RiskLevelHigh
	case absoluteRisk > ElevatedRiskThreshold:
		return RiskLevelElevated
	default:
		return RiskLevelAverage
	}
}

// IsValid validates the risk level.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskLevelAverage, RiskLevelElevated, RiskLevelHigh, RiskLevelVeryHigh:
		return true
	default:
		return false
	}
}

func (r RiskLevel) String() string {
	return string(r)
}

// Rank orders risk levels from average (0) to very_high (3). Unknown levels rank -1.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLevelAverage:
		return 0
	case RiskLevelElevated:
		return 1
	case RiskLevelHigh:
		return 2
	case RiskLevelVeryHigh:
		return 3
	default:
		return -1
	}
}

// IsIncreased reports whether the level sits above average.
func (r RiskLevel) IsIncreased() bool {
	return r.Rank() > 0
}

// IsValid validates the urgency.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyEmergent, UrgencyUrgent, UrgencySoon, UrgencyRoutine, UrgencyFuture, UrgencyNotIndicated:
		return true
	default:
		return false
	}
}

func (u Urgency) String() string {
	return string(u)
}

// IsDeferred reports whether the urgency postpones action (routine or future).
// A deferred recommendation on a high absolute risk is an under-triage.
func (u Urgency) IsDeferred() bool {
	return u == UrgencyRoutine || u == UrgencyFuture
}

// IsValid validates the evidence quality grade.
func (q EvidenceQuality) IsValid() bool {
	switch q {
	case EvidenceHigh, EvidenceModerate, EvidenceLow:
		return true
	default:
		return false
	}
}

// IsValid validates the symptom severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// Rank orders severities from mild (1) to severe (3). Unknown severities rank 0.
func (s Severity) Rank() int {
	switch Severity(strings.ToLower(string(s))) {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min. An empty min is always satisfied.
func (s Severity) AtLeast(min Severity) bool {
	if min == "" {
		return true
	}
	return s.Rank() >= min.Rank()
}

// Normalized returns the sex lower-cased with surrounding space removed.
func (s Sex) Normalized() Sex {
	return Sex(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsValid validates the recorded sex, ignoring case. Unknown is allowed.
func (s Sex) IsValid() bool {
	switch s.Normalized() {
	case SexFemale, SexMale, SexOther, SexUnknown:
		return true
	default:
		return false
	}
}

// Normalized returns the status lower-cased with surrounding space removed.
func (s SmokingStatus) Normalized() SmokingStatus {
	return SmokingStatus(strings.ToLower(strings.TrimSpace(string(s))))
}

// IsValid validates the smoking status, ignoring case. An empty status means not recorded.
func (s SmokingStatus) IsValid() bool {
	switch s.Normalized() {
	case SmokingNever, SmokingFormer, SmokingCurrent, "":
		return true
	default:
		return false
	}
}

// LogFields returns structured logging fields for a risk level decision.
func (r RiskLevel) LogFields() map[string]any {
	return map[string]any{
		"risk_level":     string(r),
		"risk_rank":      r.Rank(),
		"is_valid":       r.IsValid(),
		"above_baseline": r.IsIncreased(),
	}
}
