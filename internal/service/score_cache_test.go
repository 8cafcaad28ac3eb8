package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cancer-risk-screening/internal/domain"
)

func TestCachingScorer_Score(t *testing.T) {
	logger := newTestLogger()

	t.Run("Second_Call_Hits_Cache", func(t *testing.T) {
		mockScorer := new(MockRiskScorer)
		expected := []domain.RiskScore{scoreAt(domain.CancerBreast, 0.6)}
		mockScorer.On("Score", mock.Anything).Return(expected)

		cache, err := NewScoreCache(8)
		require.NoError(t, err)
		scorer := NewCachingScorer(mockScorer, cache, logger)

		patient := domain.PatientProfile{
			ID:       "a",
			Genetics: &domain.Genetics{ConfirmedMutations: []string{"BRCA1"}},
		}
		first := scorer.Score(patient)

		patient.ID = "b"
		second := scorer.Score(patient)

		assert.Equal(t, expected, first)
		assert.Equal(t, expected, second)
		mockScorer.AssertNumberOfCalls(t, "Score", 1)

		stats := scorer.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, 1, stats.Entries)
		assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	})

	t.Run("Different_Profiles_Miss", func(t *testing.T) {
		mockScorer := new(MockRiskScorer)
		mockScorer.On("Score", mock.Anything).Return([]domain.RiskScore{scoreAt(domain.CancerLung, 0.1)})

		cache, err := NewScoreCache(8)
		require.NoError(t, err)
		scorer := NewCachingScorer(mockScorer, cache, logger)

		scorer.Score(domain.PatientProfile{Demographics: domain.Demographics{Age: 40}})
		scorer.Score(domain.PatientProfile{Demographics: domain.Demographics{Age: 41}})

		mockScorer.AssertNumberOfCalls(t, "Score", 2)
	})

	t.Run("Cached_Scores_Are_Copies", func(t *testing.T) {
		score := scoreAt(domain.CancerBreast, 0.6)
		score.Genes = []string{"BRCA1"}
		mockScorer := new(MockRiskScorer)
		mockScorer.On("Score", mock.Anything).Return([]domain.RiskScore{score})

		cache, err := NewScoreCache(8)
		require.NoError(t, err)
		scorer := NewCachingScorer(mockScorer, cache, logger)

		patient := domain.PatientProfile{ID: "a"}
		first := scorer.Score(patient)
		first[0].Rationale[0] = "tampered"
		first[0].Genes[0] = "tampered"
		first[0].AbsoluteRisk = 0

		second := scorer.Score(patient)
		assert.Equal(t, "test risk 0.60", second[0].Rationale[0])
		assert.Equal(t, []string{"BRCA1"}, second[0].Genes)
		assert.Equal(t, 0.6, second[0].AbsoluteRisk)
	})
}

func TestScoreCache_Eviction(t *testing.T) {
	cache, err := NewScoreCache(2)
	require.NoError(t, err)

	cache.Add("a", []domain.RiskScore{scoreAt(domain.CancerBreast, 0.1)})
	cache.Add("b", []domain.RiskScore{scoreAt(domain.CancerBreast, 0.2)})
	cache.Add("c", []domain.RiskScore{scoreAt(domain.CancerBreast, 0.3)})

	_, ok := cache.Get("a")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get("c")
	assert.True(t, ok)

	cache.Purge()
	assert.Equal(t, 0, cache.Stats().Entries)
}

func TestProfileKey(t *testing.T) {
	base := domain.PatientProfile{
		ID:           "one",
		Demographics: domain.Demographics{Age: 50, Sex: domain.SexFemale},
		Symptoms:     []domain.Symptom{{Name: "cough", DurationDays: 60}},
	}

	key1, err := ProfileKey(base)
	require.NoError(t, err)
	assert.Len(t, key1, 64)

	renamed := base
	renamed.ID = "two"
	key2, err := ProfileKey(renamed)
	require.NoError(t, err)
	assert.Equal(t, key1, key2, "patient ID must not affect the key")

	older := base
	older.Demographics.Age = 51
	key3, err := ProfileKey(older)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)

	assert.Equal(t, "one", base.ID)
}
