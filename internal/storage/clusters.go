package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
)

const clusterSelect = `
	SELECT c.id, c.fingerprint, c.headline, c.context_summary, c.search_text,
	       c.categories, c.importance_score, c.score_breakdown, c.manual_boost,
	       c.first_seen_at, c.last_seen_at, c.last_signal_at, c.status,
	       (SELECT count(*) FROM signals s WHERE s.cluster_id = c.id) AS signal_count
	FROM story_clusters c`

func scanCluster(row pgx.Row) (*domain.StoryCluster, error) {
	var (
		c         domain.StoryCluster
		id        pgtype.UUID
		breakdown []byte
		cats      []string
	)

	err := row.Scan(
		&id, &c.Fingerprint, &c.Headline, &c.ContextSummary, &c.SearchText,
		&cats, &c.ImportanceScore, &breakdown, &c.ManualBoost,
		&c.FirstSeenAt, &c.LastSeenAt, &c.LastSignalAt, &c.Status, &c.SignalCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("scan cluster: %w", err)
	}

	c.ID = fromUUID(id)
	c.Categories = toCategories(cats)

	if len(breakdown) > 0 {
		_ = json.Unmarshal(breakdown, &c.ScoreBreakdown)
	}

	return &c, nil
}

// ClusterByFingerprint looks a cluster up by its unique fingerprint, inside
// or outside a transaction.
func (db *DB) ClusterByFingerprint(ctx context.Context, q querier, fingerprint string) (*domain.StoryCluster, error) {
	if q == nil {
		q = db.Pool
	}

	return scanCluster(q.QueryRow(ctx, clusterSelect+` WHERE c.fingerprint = $1`, fingerprint))
}

// GetCluster loads one cluster by id.
func (db *DB) GetCluster(ctx context.Context, id string) (*domain.StoryCluster, error) {
	return scanCluster(db.Pool.QueryRow(ctx, clusterSelect+` WHERE c.id = $1`, toUUID(id)))
}

// CreateCluster inserts a new cluster. A fingerprint collision surfaces as
// ErrUniqueViolation so the caller can recover by re-reading.
func (db *DB) CreateCluster(ctx context.Context, tx pgx.Tx, c *domain.StoryCluster) error {
	var id pgtype.UUID

	err := tx.QueryRow(ctx, `
		INSERT INTO story_clusters (fingerprint, headline, context_summary, search_text,
		                            categories, first_seen_at, last_seen_at, last_signal_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'ACTIVE')
		RETURNING id
	`,
		c.Fingerprint, c.Headline, c.ContextSummary, c.SearchText,
		fromCategories(c.Categories), c.FirstSeenAt, c.LastSeenAt, c.LastSignalAt,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("fingerprint %s: %w", c.Fingerprint, coreerrors.ErrUniqueViolation)
		}

		return fmt.Errorf("insert cluster: %w", err)
	}

	c.ID = fromUUID(id)
	c.Status = domain.ClusterActive

	return nil
}

// AttachSignal points the signal at the cluster, refreshes the cluster's
// recency timestamps, and unions the signal's categories into the cluster's
// list. Runs inside the assignment transaction; the row lock keeps the
// read-merge-write atomic.
func (db *DB) AttachSignal(ctx context.Context, tx pgx.Tx, signalID, clusterID string, categories []domain.Category, now time.Time) error {
	if _, err := tx.Exec(ctx, `
		UPDATE signals SET cluster_id = $2 WHERE id = $1
	`, toUUID(signalID), toUUID(clusterID)); err != nil {
		return fmt.Errorf("attach signal: %w", err)
	}

	var existing []string
	if err := tx.QueryRow(ctx, `
		SELECT categories FROM story_clusters WHERE id = $1 FOR UPDATE
	`, toUUID(clusterID)).Scan(&existing); err != nil {
		return fmt.Errorf("lock cluster for attach: %w", err)
	}

	merged := mergeCategoryLists(existing, fromCategories(categories))

	if _, err := tx.Exec(ctx, `
		UPDATE story_clusters
		SET last_signal_at = $2, last_seen_at = $2, categories = $3
		WHERE id = $1
	`, toUUID(clusterID), now, merged); err != nil {
		return fmt.Errorf("touch cluster: %w", err)
	}

	return nil
}

// mergeCategoryLists unions incoming into existing, keeping existing order
// and appending new entries in first-seen order.
func mergeCategoryLists(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	merged := make([]string, 0, len(existing)+len(incoming))

	for _, c := range existing {
		if _, dup := seen[c]; dup {
			continue
		}

		seen[c] = struct{}{}

		merged = append(merged, c)
	}

	for _, c := range incoming {
		if _, dup := seen[c]; dup {
			continue
		}

		seen[c] = struct{}{}

		merged = append(merged, c)
	}

	return merged
}

// Candidate is one phase-1 trigram candidate with its similarity.
type Candidate struct {
	Cluster    domain.StoryCluster
	Similarity float64
}

// CandidateClusters runs the phase-1 trigram search over ACTIVE clusters
// within the active window. The similarity threshold is set with SET LOCAL so
// it never bleeds across pooled connections.
func (db *DB) CandidateClusters(ctx context.Context, tx pgx.Tx, searchText string, threshold float64, activeSince time.Time, limit int) ([]Candidate, error) {
	// SET LOCAL does not support bind parameters; format the float directly.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL pg_trgm.similarity_threshold = %.3f", threshold)); err != nil {
		return nil, fmt.Errorf("set trigram threshold: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT c.id, c.fingerprint, c.headline, c.context_summary, c.search_text,
		       c.categories, c.importance_score, c.score_breakdown, c.manual_boost,
		       c.first_seen_at, c.last_seen_at, c.last_signal_at, c.status,
		       (SELECT count(*) FROM signals s WHERE s.cluster_id = c.id) AS signal_count,
		       similarity(c.search_text, $1) AS sim
		FROM story_clusters c
		WHERE c.status = 'ACTIVE'
		  AND c.last_signal_at >= $2
		  AND c.search_text % $1
		ORDER BY sim DESC
		LIMIT $3
	`, searchText, activeSince, limit)
	if err != nil {
		return nil, fmt.Errorf("candidate clusters: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate

	for rows.Next() {
		var (
			c         domain.StoryCluster
			id        pgtype.UUID
			breakdown []byte
			cats      []string
			sim       float64
		)

		if err := rows.Scan(
			&id, &c.Fingerprint, &c.Headline, &c.ContextSummary, &c.SearchText,
			&cats, &c.ImportanceScore, &breakdown, &c.ManualBoost,
			&c.FirstSeenAt, &c.LastSeenAt, &c.LastSignalAt, &c.Status, &c.SignalCount,
			&sim,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}

		c.ID = fromUUID(id)
		c.Categories = toCategories(cats)

		candidates = append(candidates, Candidate{Cluster: c, Similarity: sim})
	}

	return candidates, rows.Err()
}

// ClusterPlatformSlugs returns the slugs currently linked to a cluster.
func (db *DB) ClusterPlatformSlugs(ctx context.Context, q querier, clusterID string) ([]string, error) {
	if q == nil {
		q = db.Pool
	}

	rows, err := q.Query(ctx, `
		SELECT p.slug
		FROM cluster_platforms cp
		JOIN platforms p ON p.id = cp.platform_id
		WHERE cp.cluster_id = $1
		ORDER BY p.slug
	`, toUUID(clusterID))
	if err != nil {
		return nil, fmt.Errorf("cluster platform slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string

	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}

		slugs = append(slugs, slug)
	}

	return slugs, rows.Err()
}

// LinkClusterPlatforms appends platform links to a cluster. The mapping is
// append-only.
func (db *DB) LinkClusterPlatforms(ctx context.Context, tx pgx.Tx, clusterID string, platformIDs []string) error {
	for _, pid := range platformIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO cluster_platforms (cluster_id, platform_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, toUUID(clusterID), toUUID(pid)); err != nil {
			return fmt.Errorf("link cluster platform: %w", err)
		}
	}

	return nil
}

// SweepStale demotes ACTIVE clusters whose last signal predates the cutoff.
func (db *DB) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE story_clusters
		SET status = 'STALE'
		WHERE status = 'ACTIVE' AND last_signal_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stale clusters: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ActiveClusterIDs lists ids of all ACTIVE clusters for rescoring.
func (db *DB) ActiveClusterIDs(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id FROM story_clusters WHERE status = 'ACTIVE'`)
	if err != nil {
		return nil, fmt.Errorf("active cluster ids: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cluster id: %w", err)
		}

		ids = append(ids, fromUUID(id))
	}

	return ids, rows.Err()
}

// UpdateClusterScore persists the integer importance score and its breakdown.
func (db *DB) UpdateClusterScore(ctx context.Context, clusterID string, score int64, breakdown map[string]float64) error {
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, `
		UPDATE story_clusters
		SET importance_score = $2, score_breakdown = $3
		WHERE id = $1
	`, toUUID(clusterID), score, raw); err != nil {
		return fmt.Errorf("update cluster score: %w", err)
	}

	return nil
}

// ScoringView is everything the ranker needs about one cluster.
type ScoringView struct {
	ClusterID        string
	Categories       []domain.Category
	LastSignalAt     time.Time
	ManualBoost      int
	SignalDomains    []string
	SignalCreatedAts []time.Time
}

// ClusterScoringView loads the ranker inputs for one cluster.
func (db *DB) ClusterScoringView(ctx context.Context, clusterID string) (*ScoringView, error) {
	var (
		view ScoringView
		cats []string
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT categories, last_signal_at, manual_boost
		FROM story_clusters
		WHERE id = $1
	`, toUUID(clusterID)).Scan(&cats, &view.LastSignalAt, &view.ManualBoost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("cluster scoring row: %w", err)
	}

	view.ClusterID = clusterID
	view.Categories = toCategories(cats)

	rows, err := db.Pool.Query(ctx, `
		SELECT rs.source_domain, s.created_at
		FROM signals s
		JOIN raw_signals rs ON rs.id = s.raw_signal_id
		WHERE s.cluster_id = $1
	`, toUUID(clusterID))
	if err != nil {
		return nil, fmt.Errorf("cluster scoring signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dom       string
			createdAt time.Time
		)

		if err := rows.Scan(&dom, &createdAt); err != nil {
			return nil, fmt.Errorf("scan scoring signal: %w", err)
		}

		view.SignalDomains = append(view.SignalDomains, dom)
		view.SignalCreatedAts = append(view.SignalCreatedAts, createdAt)
	}

	return &view, rows.Err()
}
