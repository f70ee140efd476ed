// Package ranker computes cluster importance scores. The score is a sum of
// six components; only the integer importanceScore (score × 1000, rounded)
// is ever compared, so pagination never depends on float equality.
package ranker

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/storage"
)

const (
	diversityWeight   = 2.0
	velocityWeight    = 3.0
	credibilityWeight = 1.5
	categoryWeight    = 2.0
	recencyWeight     = 1.0
	manualWeight      = 5.0

	elevatedCategoryWeight = 1.5
	defaultCredibility     = 0.5

	velocityWindow = time.Hour
)

type Config struct {
	// MaxDomains caps the source diversity component.
	MaxDomains int
	// DecayHours scales the recency exponential.
	DecayHours float64
}

type Ranker struct {
	db     *storage.DB
	cfg    Config
	logger *zerolog.Logger
}

func New(db *storage.DB, cfg Config, logger *zerolog.Logger) *Ranker {
	return &Ranker{db: db, cfg: cfg, logger: logger}
}

// Score computes the raw score and its per-component breakdown for one
// cluster snapshot. Pure; the caller supplies now and the credibility map.
func Score(view *storage.ScoringView, credibility map[string]float64, cfg Config, now time.Time) (float64, map[string]float64) {
	breakdown := map[string]float64{
		"sourceDiversity": diversity(view.SignalDomains, cfg.MaxDomains),
		"velocity":        velocity(view.SignalCreatedAts, now),
		"credibility":     credibilityAvg(view.SignalDomains, credibility),
		"category":        category(view.Categories),
		"recency":         recency(view.LastSignalAt, cfg.DecayHours, now),
		"manual":          float64(view.ManualBoost) * manualWeight,
	}

	total := 0.0
	for _, v := range breakdown {
		total += v
	}

	// A manual demotion can outweigh everything else; the persisted score
	// still never goes negative.
	if total < 0 {
		total = 0
	}

	return total, breakdown
}

func diversity(domains []string, maxDomains int) float64 {
	distinct := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		distinct[d] = struct{}{}
	}

	n := len(distinct)
	if n > maxDomains {
		n = maxDomains
	}

	return float64(n) * diversityWeight
}

func velocity(createdAts []time.Time, now time.Time) float64 {
	recent := 0

	for _, at := range createdAts {
		if now.Sub(at) <= velocityWindow {
			recent++
		}
	}

	return math.Log(1+float64(recent)) * velocityWeight
}

func credibilityAvg(domains []string, weights map[string]float64) float64 {
	if len(domains) == 0 {
		return defaultCredibility * credibilityWeight
	}

	sum := 0.0

	for _, d := range domains {
		w, ok := weights[d]
		if !ok {
			w = defaultCredibility
		}

		sum += w
	}

	return sum / float64(len(domains)) * credibilityWeight
}

// category takes the maximum category weight, never the sum. Safety and
// regulatory stories rank above the rest at equal coverage.
func category(categories []domain.Category) float64 {
	best := 1.0

	for _, c := range categories {
		if c == domain.CategorySafetyYouthRisk || c == domain.CategoryRegulatoryLegal {
			best = elevatedCategoryWeight
		}
	}

	return best * categoryWeight
}

func recency(lastSignalAt time.Time, decayHours float64, now time.Time) float64 {
	if lastSignalAt.IsZero() || decayHours <= 0 {
		return 0
	}

	hours := now.Sub(lastSignalAt).Hours()
	if hours < 0 {
		hours = 0
	}

	return math.Exp(-hours/decayHours) * recencyWeight
}

// ImportanceScore converts the float score to the persisted integer.
func ImportanceScore(score float64) int64 {
	return int64(math.Round(score * 1000))
}

// Rescore recomputes and persists one cluster's score.
func (r *Ranker) Rescore(ctx context.Context, clusterID string) error {
	view, err := r.db.ClusterScoringView(ctx, clusterID)
	if err != nil {
		return err
	}

	weights, err := r.db.CredibilityWeights(ctx)
	if err != nil {
		return err
	}

	score, breakdown := Score(view, weights, r.cfg, time.Now().UTC())

	return r.db.UpdateClusterScore(ctx, clusterID, ImportanceScore(score), breakdown)
}

// RecomputeAll rescores every active cluster. Individual failures are logged
// and skipped; the batch never aborts.
func (r *Ranker) RecomputeAll(ctx context.Context) error {
	ids, err := r.db.ActiveClusterIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := r.Rescore(ctx, id); err != nil {
			r.logger.Warn().Err(err).Str("cluster_id", id).Msg("rescore failed")
		}
	}

	return nil
}
