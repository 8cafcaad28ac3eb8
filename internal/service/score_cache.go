package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/cancer-risk-screening/internal/domain"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// ScoreCache memoises risk scores by profile content. The patient ID is not part of the key, so
// clinically identical profiles share an entry.
type ScoreCache struct {
	cache  *lru.Cache[string, []domain.RiskScore]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewScoreCache creates a cache holding up to maxEntries profiles.
func NewScoreCache(maxEntries int) (*ScoreCache, error) {
	cache, err := lru.New[string, []domain.RiskScore](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create score cache: %w", err)
	}
	return &ScoreCache{cache: cache}, nil
}

// Get returns a copy of the scores cached under key.
func (c *ScoreCache) Get(key string) ([]domain.RiskScore, bool) {
	scores, ok := c.cache.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cloneScores(scores), true
}

// Add stores a copy of the scores under key.
func (c *ScoreCache) Add(key string, scores []domain.RiskScore) {
	c.cache.Add(key, cloneScores(scores))
}

// Purge empties the cache. Statistics are kept.
func (c *ScoreCache) Purge() {
	c.cache.Purge()
}

// Stats returns cache performance statistics.
func (c *ScoreCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{Hits: hits, Misses: misses, Entries: c.cache.Len()}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// ProfileKey returns the SHA-256 of the profile's canonical JSON encoding, ignoring the patient ID.
func ProfileKey(patient domain.PatientProfile) (string, error) {
	patient.ID = ""
	data, err := json.Marshal(patient)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CachingScorer decorates a RiskScorer with a ScoreCache.
type CachingScorer struct {
	scorer domain.RiskScorer
	cache  *ScoreCache
	logger *logrus.Logger
}

// NewCachingScorer wraps scorer with cache.
func NewCachingScorer(scorer domain.RiskScorer, cache *ScoreCache, logger *logrus.Logger) *CachingScorer {
	return &CachingScorer{
		scorer: scorer,
		cache:  cache,
		logger: logger,
	}
}

// Score returns cached scores when available and scores the patient otherwise.
func (c *CachingScorer) Score(patient domain.PatientProfile) []domain.RiskScore {
	key, err := ProfileKey(patient)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to derive cache key, scoring uncached")
		return c.scorer.Score(patient)
	}

	if scores, ok := c.cache.Get(key); ok {
		c.logger.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"cache_key":  key[:12],
		}).Debug("Risk score cache hit")
		return scores
	}

	scores := c.scorer.Score(patient)
	c.cache.Add(key, scores)
	return cloneScores(scores)
}

// Stats returns the underlying cache statistics.
func (c *CachingScorer) Stats() CacheStats {
	return c.cache.Stats()
}

func cloneScores(scores []domain.RiskScore) []domain.RiskScore {
	if scores == nil {
		return nil
	}
	out := make([]domain.RiskScore, len(scores))
	for i, s := range scores {
		if s.Rationale != nil {
			rationale := make([]string, len(s.Rationale))
			copy(rationale, s.Rationale)
			s.Rationale = rationale
		}
		if s.Genes != nil {
			s.Genes = append([]string(nil), s.Genes...)
		}
		out[i] = s
	}
	return out
}
