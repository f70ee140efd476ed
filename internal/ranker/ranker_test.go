package ranker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/storage"
)

var testConfig = Config{MaxDomains: 6, DecayHours: 24}

func TestScoreFullScenario(t *testing.T) {
	// Three domains all weight 0.9, one recent signal, fresh cluster:
	// 3×2.0 + ln(2)×3.0 + 0.9×1.5 + 1.0×2.0 + 1.0 = 12.4294.
	now := time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

	view := &storage.ScoringView{
		Categories:   []domain.Category{domain.CategoryProductUpdate},
		LastSignalAt: now,
		SignalDomains: []string{
			"techcrunch.com", "theverge.com", "wired.com",
		},
		SignalCreatedAts: []time.Time{
			now.Add(-30 * time.Minute),
			now.Add(-3 * time.Hour),
			now.Add(-5 * time.Hour),
		},
	}

	weights := map[string]float64{
		"techcrunch.com": 0.9,
		"theverge.com":   0.9,
		"wired.com":      0.9,
	}

	score, breakdown := Score(view, weights, testConfig, now)

	assert.InDelta(t, 6.0, breakdown["sourceDiversity"], 1e-9)
	assert.InDelta(t, math.Log(2)*3.0, breakdown["velocity"], 1e-9)
	assert.InDelta(t, 1.35, breakdown["credibility"], 1e-9)
	assert.InDelta(t, 2.0, breakdown["category"], 1e-9)
	assert.InDelta(t, 1.0, breakdown["recency"], 1e-9)
	assert.Zero(t, breakdown["manual"])

	assert.Equal(t, int64(12429), ImportanceScore(score))
}

func TestDiversityCap(t *testing.T) {
	domains := []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com"}

	assert.InDelta(t, 12.0, diversity(domains, testConfig.MaxDomains), 1e-9)
}

func TestDiversityCountsDistinct(t *testing.T) {
	domains := []string{"a.com", "a.com", "b.com"}

	assert.InDelta(t, 4.0, diversity(domains, testConfig.MaxDomains), 1e-9)
}

func TestCategoryMaxNotSum(t *testing.T) {
	cats := []domain.Category{
		domain.CategorySafetyYouthRisk,
		domain.CategoryRegulatoryLegal,
		domain.CategoryProductUpdate,
	}

	assert.InDelta(t, 3.0, category(cats), 1e-9)
}

func TestCategoryDefaultWeight(t *testing.T) {
	assert.InDelta(t, 2.0, category([]domain.Category{domain.CategoryCulturalTrend}), 1e-9)
	assert.InDelta(t, 2.0, category(nil), 1e-9)
}

func TestRecencyDecay(t *testing.T) {
	now := time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, math.Exp(-1), recency(now.Add(-24*time.Hour), 24, now), 1e-9)
	assert.InDelta(t, 1.0, recency(now, 24, now), 1e-9)
	assert.Zero(t, recency(time.Time{}, 24, now))
}

func TestCredibilityDefaults(t *testing.T) {
	// Unknown domains default to 0.5; an empty cluster averages to 0.5.
	assert.InDelta(t, 0.75, credibilityAvg([]string{"unknown.example"}, nil), 1e-9)
	assert.InDelta(t, 0.75, credibilityAvg(nil, nil), 1e-9)

	mixed := credibilityAvg([]string{"a.com", "b.com"}, map[string]float64{"a.com": 1.0})
	assert.InDelta(t, 0.75*credibilityWeight, mixed, 1e-9)
}

func TestVelocityWindow(t *testing.T) {
	now := time.Date(2026, 8, 12, 12, 0, 0, 0, time.UTC)

	ats := []time.Time{
		now.Add(-10 * time.Minute),
		now.Add(-59 * time.Minute),
		now.Add(-2 * time.Hour),
	}

	assert.InDelta(t, math.Log(3)*3.0, velocity(ats, now), 1e-9)
	assert.Zero(t, velocity(nil, now))
}

func TestImportanceScoreRounding(t *testing.T) {
	assert.Equal(t, int64(12429), ImportanceScore(12.4294))
	assert.Equal(t, int64(0), ImportanceScore(0))
	assert.Equal(t, int64(1000), ImportanceScore(0.9999999))
}

func TestManualBoost(t *testing.T) {
	now := time.Now().UTC()

	view := &storage.ScoringView{ManualBoost: 2, LastSignalAt: now}

	_, breakdown := Score(view, nil, testConfig, now)
	assert.InDelta(t, 10.0, breakdown["manual"], 1e-9)
}

func TestScoreNeverNegative(t *testing.T) {
	now := time.Now().UTC()

	// A heavy demotion outweighs every other component.
	view := &storage.ScoringView{ManualBoost: -10, LastSignalAt: now}

	score, breakdown := Score(view, nil, testConfig, now)

	assert.InDelta(t, -50.0, breakdown["manual"], 1e-9)
	assert.Zero(t, score)
	assert.Equal(t, int64(0), ImportanceScore(score))
}
