// Package clusterer assigns accepted signals to story clusters. Matching runs
// in two phases: a trigram candidate search in Postgres, then TF-IDF cosine
// refinement in memory. The whole assignment of one signal happens inside a
// single transaction under a fingerprint advisory lock.
package clusterer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
	"github.com/lueurxax/companion-radar/internal/platform/observability"
	"github.com/lueurxax/companion-radar/internal/similarity"
	"github.com/lueurxax/companion-radar/internal/storage"
	"github.com/lueurxax/companion-radar/internal/textutil"
)

const (
	candidateLimit   = 10
	untitledHeadline = "Untitled Story"
)

type Config struct {
	// SimilarityThreshold is the phase-2 minimum adjusted cosine for a match.
	SimilarityThreshold float64
	// TrgmThreshold is the phase-1 session-local trigram cutoff.
	TrgmThreshold float64
	// ActiveWindow bounds how far back phase 1 looks for candidates.
	ActiveWindow time.Duration
}

type Clusterer struct {
	db     *storage.DB
	cfg    Config
	logger *zerolog.Logger
}

func New(db *storage.DB, cfg Config, logger *zerolog.Logger) *Clusterer {
	return &Clusterer{db: db, cfg: cfg, logger: logger}
}

// Assign attaches the signal to an existing cluster or creates a new one, and
// returns the cluster id.
func (c *Clusterer) Assign(ctx context.Context, sig *domain.Signal) (string, error) {
	headline := sig.SuggestedHeadline
	if headline == "" {
		headline = untitledHeadline
	}

	searchText := similarity.BuildSearchText(headline, sig.Summary)
	platforms := append(append([]string{}, sig.KnownPlatforms...), sig.UnknownPlatforms...)
	fingerprint := Fingerprint(platforms, sig.PublishedAt, sig.CreatedAt, sig.Title+" "+sig.Summary)

	var clusterID string

	err := c.db.WithTx(ctx, func(tx pgx.Tx) error {
		// Serializes only signals that share this fingerprint.
		if err := c.db.AcquireFingerprintLock(ctx, tx, textutil.LockKey(fingerprint)); err != nil {
			return err
		}

		now := time.Now().UTC()

		existing, err := c.db.ClusterByFingerprint(ctx, tx, fingerprint)
		if err == nil {
			clusterID = existing.ID

			return c.attach(ctx, tx, sig, existing.ID, now)
		}

		if !errors.Is(err, coreerrors.ErrNotFound) {
			return err
		}

		match, err := c.findSimilar(ctx, tx, searchText, platforms, now)
		if err != nil {
			return err
		}

		if match != "" {
			clusterID = match

			return c.attach(ctx, tx, sig, match, now)
		}

		created, err := c.create(ctx, tx, sig, fingerprint, headline, searchText, now)
		if err != nil {
			return err
		}

		clusterID = created

		return c.attach(ctx, tx, sig, created, now)
	})
	if err != nil {
		return "", err
	}

	return clusterID, nil
}

// findSimilar runs both matching phases and returns the best cluster id, or
// empty when nothing clears the threshold.
func (c *Clusterer) findSimilar(ctx context.Context, tx pgx.Tx, searchText string, platforms []string, now time.Time) (string, error) {
	activeSince := now.Add(-c.cfg.ActiveWindow)

	candidates, err := c.db.CandidateClusters(ctx, tx, searchText, c.cfg.TrgmThreshold, activeSince, candidateLimit)
	if err != nil {
		return "", err
	}

	if len(candidates) == 0 {
		return "", nil
	}

	queryTokens := textutil.Tokenize(searchText)

	docs := make([][]string, 0, len(candidates)+1)
	docs = append(docs, queryTokens)

	candidateTokens := make([][]string, len(candidates))
	for i, cand := range candidates {
		candidateTokens[i] = textutil.Tokenize(cand.Cluster.SearchText)
		docs = append(docs, candidateTokens[i])
	}

	idf := similarity.InverseDocFreq(docs)

	bestID := ""
	bestScore := 0.0

	for i, cand := range candidates {
		clusterPlatforms, err := c.db.ClusterPlatformSlugs(ctx, tx, cand.Cluster.ID)
		if err != nil {
			return "", err
		}

		score := similarity.Score(queryTokens, candidateTokens[i], idf, platforms, clusterPlatforms)
		if score > bestScore {
			bestScore = score
			bestID = cand.Cluster.ID
		}
	}

	if bestScore >= c.cfg.SimilarityThreshold {
		c.logger.Debug().Str("cluster_id", bestID).Float64("score", bestScore).Msg("similarity match")

		return bestID, nil
	}

	return "", nil
}

// create inserts a new cluster for the signal. A fingerprint race resolves by
// re-reading the winner and attaching to it.
func (c *Clusterer) create(ctx context.Context, tx pgx.Tx, sig *domain.Signal, fingerprint, headline, searchText string, now time.Time) (string, error) {
	firstSeen := sig.CreatedAt
	if !sig.PublishedAt.IsZero() {
		firstSeen = sig.PublishedAt
	}

	cluster := &domain.StoryCluster{
		Fingerprint:    fingerprint,
		Headline:       textutil.Truncate(headline, domain.MaxHeadlineLen),
		ContextSummary: textutil.Truncate(sig.Summary, domain.MaxContextLen),
		SearchText:     searchText,
		Categories:     sig.Categories,
		FirstSeenAt:    firstSeen,
		LastSeenAt:     now,
		LastSignalAt:   now,
	}

	// Savepoint, so a unique violation leaves the outer transaction usable
	// for the re-read.
	inner, err := tx.Begin(ctx)
	if err != nil {
		return "", err
	}

	if err := c.db.CreateCluster(ctx, inner, cluster); err != nil {
		_ = inner.Rollback(ctx)

		if errors.Is(err, coreerrors.ErrUniqueViolation) {
			winner, rerr := c.db.ClusterByFingerprint(ctx, tx, fingerprint)
			if rerr != nil {
				return "", rerr
			}

			return winner.ID, nil
		}

		return "", err
	}

	if err := inner.Commit(ctx); err != nil {
		return "", err
	}

	observability.ClustersCreated.Inc()

	if err := c.linkPlatforms(ctx, tx, cluster.ID, sig.KnownPlatforms); err != nil {
		return "", err
	}

	return cluster.ID, nil
}

func (c *Clusterer) linkPlatforms(ctx context.Context, tx pgx.Tx, clusterID string, slugs []string) error {
	if len(slugs) == 0 {
		return nil
	}

	platforms, err := c.db.PlatformsBySlugs(ctx, slugs)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(platforms))
	for _, p := range platforms {
		ids = append(ids, p.ID)
	}

	return c.db.LinkClusterPlatforms(ctx, tx, clusterID, ids)
}

func (c *Clusterer) attach(ctx context.Context, tx pgx.Tx, sig *domain.Signal, clusterID string, now time.Time) error {
	if err := c.db.AttachSignal(ctx, tx, sig.ID, clusterID, sig.Categories, now); err != nil {
		return err
	}

	// Keep the cluster's platform links growing as new signals arrive.
	return c.linkPlatforms(ctx, tx, clusterID, sig.KnownPlatforms)
}

// SweepStale demotes clusters that stopped receiving signals inside the
// active window.
func (c *Clusterer) SweepStale(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-c.cfg.ActiveWindow)

	n, err := c.db.SweepStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		c.logger.Info().Int64("count", n).Msg("swept stale clusters")
	}

	return n, nil
}
