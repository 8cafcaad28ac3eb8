package domain

import (
	"sort"
	"time"
)

// TestOther is the test name used for red-flag recommendations that route to clinical evaluation
// rather than a named screening test.
const TestOther = "other"

// RecommendationRationale references the evidence behind a recommendation.
type RecommendationRationale struct {
	GuidelineSource string          `json:"guideline_source"`
	Grade           string          `json:"recommendation_grade,omitempty"`
	KeyFactors      []string        `json:"key_factors"`
	Reasoning       string          `json:"reasoning"`
	EvidenceQuality EvidenceQuality `json:"evidence_quality,omitempty"`
}

// ClinicalRecommendation is one screening action for one cancer type.
type ClinicalRecommendation struct {
	ID                    string                  `json:"id"`
	CancerType            CancerType              `json:"cancer_type"`
	Urgency               Urgency                 `json:"urgency"`
	TestRecommended       string                  `json:"test_recommended"`
	Rationale             RecommendationRationale `json:"rationale"`
	AlternativeTests      []string                `json:"alternative_tests,omitempty"`
	GeneratedDate         time.Time               `json:"generated_date"`
	ReviewDate            time.Time               `json:"review_date"`
	SpecialConsiderations []string                `json:"special_considerations,omitempty"`
}

// IsRedFlag reports whether the recommendation came from a symptom-correlation override.
func (r ClinicalRecommendation) IsRedFlag() bool {
	return r.TestRecommended == TestOther
}

// TimelineEntry schedules one recommended action.
type TimelineEntry struct {
	Date             time.Time `json:"date"`
	RecommendationID string    `json:"recommendation_id"`
	Action           string    `json:"action"`
	Urgency          Urgency   `json:"urgency"`
}

// IntervalAdjustment records a review date shortened by interval optimisation.
type IntervalAdjustment struct {
	RecommendationID   string    `json:"recommendation_id"`
	PreviousReviewDate time.Time `json:"previous_review_date"`
	ReviewDate         time.Time `json:"review_date"`
	Reason             string    `json:"reason"`
}

// PlanContext carries the patient details that tailor a plan beyond the risk score. An Age of zero
// or less means the age is unknown and protocol age ranges are not applied.
type PlanContext struct {
	Age           int
	LastScreening *ScreeningEvent
}

// ScreeningPlan gathers the recommendations for one assessed cancer type.
type ScreeningPlan struct {
	CancerType      CancerType               `json:"cancer_type"`
	RiskLevel       RiskLevel                `json:"risk_level"`
	Recommendations []ClinicalRecommendation `json:"recommendations"`
	Rationale       []string                 `json:"rationale"`
	RiskSummary     string                   `json:"risk_summary"`
	Timeline        []TimelineEntry          `json:"timeline"`
	ActionItems     []string                 `json:"action_items"`
	Adjustments     []IntervalAdjustment     `json:"adjustments,omitempty"`
	Errors          []Issue                  `json:"errors,omitempty"`
}

// HasErrors reports whether synthesis degraded.
func (p *ScreeningPlan) HasErrors() bool {
	return len(p.Errors) > 0
}

// MostUrgent returns the highest-priority urgency in the plan, or not_indicated when empty.
func (p *ScreeningPlan) MostUrgent() Urgency {
	best := UrgencyNotIndicated
	for _, rec := range p.Recommendations {
		if urgencyRank(rec.Urgency) > urgencyRank(best) {
			best = rec.Urgency
		}
	}
	return best
}

func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyEmergent:
		return 5
	case UrgencyUrgent:
		return 4
	case UrgencySoon:
		return 3
	case UrgencyRoutine:
		return 2
	case UrgencyFuture:
		return 1
	default:
		return 0
	}
}

// SortTimeline orders timeline entries by date, then by urgency.
func SortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return urgencyRank(entries[i].Urgency) > urgencyRank(entries[j].Urgency)
	})
}
