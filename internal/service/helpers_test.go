package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
)

var testNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return testNow
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func newTestScorer(t *testing.T) *RiskScorer {
	t.Helper()
	return NewRiskScorer(knowledge.MustDefault(), newTestLogger())
}

func newTestEngine(t *testing.T, opts ...EngineOption) *ScreeningEngine {
	t.Helper()
	return NewScreeningEngine(knowledge.MustDefault(), newTestLogger(), append([]EngineOption{WithClock(fixedClock)}, opts...)...)
}

func newTestValidator(t *testing.T) *ComplianceValidator {
	t.Helper()
	return NewComplianceValidator(knowledge.MustDefault(), newTestLogger())
}

func scoreFor(t *testing.T, scores []domain.RiskScore, ct domain.CancerType) domain.RiskScore {
	t.Helper()
	for _, s := range scores {
		if s.CancerType == ct {
			return s
		}
	}
	t.Fatalf("no score for %s", ct)
	return domain.RiskScore{}
}

func scoreAt(ct domain.CancerType, risk float64) domain.RiskScore {
	return domain.NewRiskScore(ct, domain.RiskComponents{Genetic: risk}, []string{fmt.Sprintf("test risk %.2f", risk)})
}

// MockRiskScorer is a mock implementation of the RiskScorer interface
type MockRiskScorer struct {
	mock.Mock
}

func (m *MockRiskScorer) Score(patient domain.PatientProfile) []domain.RiskScore {
	args := m.Called(patient)
	return args.Get(0).([]domain.RiskScore)
}

// MockSynthesizer is a mock implementation of the RecommendationSynthesizer interface
type MockSynthesizer struct {
	mock.Mock
}

func (m *MockSynthesizer) Synthesize(score domain.RiskScore) *domain.ScreeningPlan {
	args := m.Called(score)
	return args.Get(0).(*domain.ScreeningPlan)
}

func (m *MockSynthesizer) SynthesizeFor(score domain.RiskScore, pc domain.PlanContext) *domain.ScreeningPlan {
	args := m.Called(score, pc)
	return args.Get(0).(*domain.ScreeningPlan)
}

// MockAuditRecorder is a mock implementation of the AuditRecorder interface
type MockAuditRecorder struct {
	mock.Mock
}

func (m *MockAuditRecorder) Log(message string) {
	m.Called(message)
}

func (m *MockAuditRecorder) RecordChange(change domain.Change) {
	m.Called(change)
}

func (m *MockAuditRecorder) ReportError(err error) {
	m.Called(err)
}

func (m *MockAuditRecorder) SetMetric(key string, value any) {
	m.Called(key, value)
}

var (
	generatorMutations = []string{"BRCA1", "brca2", "Lynch syndrome", "MLH1", "TP53", "APC", "PALB2", "XYZ9", "not a gene!"}
	generatorRelations = []string{"mother", "father", "sister", "aunt", "cousin", "son"}
	generatorSymptoms  = []string{"breast lump", "persistent cough", "rectal bleeding", "weight loss", "jaundice", "bloating", "headache"}
	generatorSeverity  = []domain.Severity{"", domain.SeverityMild, domain.SeverityModerate, domain.SeveritySevere}
	generatorSmoking   = []domain.SmokingStatus{"", domain.SmokingNever, domain.SmokingFormer, domain.SmokingCurrent}
	generatorExposures = []string{"asbestos", "radon", "benzene"}
	generatorHistory   = []string{"ulcerative colitis", "hepatitis B", "asthma"}
)

// generateProfile builds a random profile. Optional substructures are randomly omitted.
func generateProfile(r *rand.Rand) domain.PatientProfile {
	p := domain.PatientProfile{
		ID: fmt.Sprintf("gen-%d", r.Int63()),
		Demographics: domain.Demographics{
			Age: 18 + r.Intn(70),
			Sex: []domain.Sex{domain.SexFemale, domain.SexMale, domain.SexUnknown}[r.Intn(3)],
		},
	}

	for i := r.Intn(4); i > 0; i-- {
		p.Demographics.FamilyHistory = append(p.Demographics.FamilyHistory, domain.Relative{
			Relation:       generatorRelations[r.Intn(len(generatorRelations))],
			CancerType:     domain.SupportedCancerTypes[r.Intn(len(domain.SupportedCancerTypes))],
			AgeAtDiagnosis: r.Intn(90),
		})
	}

	if r.Intn(2) == 0 {
		p.Genetics = &domain.Genetics{}
		for i := r.Intn(4); i > 0; i-- {
			p.Genetics.ConfirmedMutations = append(p.Genetics.ConfirmedMutations, generatorMutations[r.Intn(len(generatorMutations))])
		}
	}

	if r.Intn(2) == 0 {
		active := r.Intn(2) == 0
		p.RiskFactors = &domain.RiskFactors{
			Lifestyle: domain.Lifestyle{
				Smoking:              generatorSmoking[r.Intn(len(generatorSmoking))],
				AlcoholDrinksPerWeek: float64(r.Intn(20)),
				BMI:                  18 + r.Float64()*22,
				PhysicallyActive:     &active,
			},
		}
		if r.Intn(2) == 0 {
			p.RiskFactors.Environmental = []string{generatorExposures[r.Intn(len(generatorExposures))]}
		}
		if r.Intn(2) == 0 {
			p.RiskFactors.MedicalHistory = []string{generatorHistory[r.Intn(len(generatorHistory))]}
		}
	}

	for i := r.Intn(4); i > 0; i-- {
		p.Symptoms = append(p.Symptoms, domain.Symptom{
			Name:         generatorSymptoms[r.Intn(len(generatorSymptoms))],
			Severity:     generatorSeverity[r.Intn(len(generatorSeverity))],
			DurationDays: r.Intn(120),
		})
	}

	return p
}
