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

// GetSignal loads one signal with its raw-signal source fields joined in.
func (db *DB) GetSignal(ctx context.Context, id string) (*domain.Signal, error) {
	return scanSignal(db.Pool.QueryRow(ctx, signalSelect+` WHERE s.id = $1`, toUUID(id)))
}

const signalSelect = `
	SELECT s.id, s.raw_signal_id, s.canonical_url, s.title, s.author, s.published_at,
	       s.language, s.summary, s.suggested_headline, s.categories, s.entities,
	       s.known_platforms, s.unknown_platforms, s.confidence, s.image_url,
	       s.llm_provider, s.llm_model, s.prompt_version, s.raw_response,
	       s.ingest_status, s.ingest_reason, s.normalized_at, s.cluster_id, s.created_at,
	       rs.source_name, rs.source_domain
	FROM signals s
	JOIN raw_signals rs ON rs.id = s.raw_signal_id`

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var (
		s            domain.Signal
		id, rawID    pgtype.UUID
		clusterID    pgtype.UUID
		publishedAt  pgtype.Timestamptz
		normalizedAt pgtype.Timestamptz
		categories   []string
		entities     []byte
	)

	err := row.Scan(
		&id, &rawID, &s.CanonicalURL, &s.Title, &s.Author, &publishedAt,
		&s.Language, &s.Summary, &s.SuggestedHeadline, &categories, &entities,
		&s.KnownPlatforms, &s.UnknownPlatforms, &s.Confidence, &s.ImageURL,
		&s.LLMProvider, &s.LLMModel, &s.PromptVersion, &s.RawResponse,
		&s.IngestStatus, &s.IngestReason, &normalizedAt, &clusterID, &s.CreatedAt,
		&s.SourceName, &s.SourceDomain,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coreerrors.ErrNotFound
		}

		return nil, fmt.Errorf("scan signal: %w", err)
	}

	s.ID = fromUUID(id)
	s.RawSignalID = fromUUID(rawID)
	s.ClusterID = fromUUID(clusterID)
	s.PublishedAt = fromTimestamptz(publishedAt)
	s.NormalizedAt = fromTimestamptz(normalizedAt)
	s.Categories = toCategories(categories)

	if len(entities) > 0 {
		_ = json.Unmarshal(entities, &s.Entities)
	}

	return &s, nil
}

func toCategories(raw []string) []domain.Category {
	cats := make([]domain.Category, 0, len(raw))
	for _, c := range raw {
		cats = append(cats, domain.Category(c))
	}

	return cats
}

func fromCategories(cats []domain.Category) []string {
	raw := make([]string, 0, len(cats))
	for _, c := range cats {
		raw = append(raw, string(c))
	}

	return raw
}

// FinishNormalization writes the terminal outcome of a normalization attempt.
// The status transition is guarded: only PENDING signals move.
func (db *DB) FinishNormalization(ctx context.Context, s *domain.Signal) error {
	entities, err := json.Marshal(s.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE signals
		SET title = $2, summary = $3, suggested_headline = $4, categories = $5,
		    entities = $6, known_platforms = $7, unknown_platforms = $8,
		    confidence = $9, image_url = $10, llm_provider = $11, llm_model = $12,
		    prompt_version = $13, raw_response = $14, ingest_status = $15,
		    ingest_reason = $16, language = $17, normalized_at = now()
		WHERE id = $1 AND ingest_status = 'PENDING'
	`,
		toUUID(s.ID), s.Title, s.Summary, s.SuggestedHeadline, fromCategories(s.Categories),
		entities, s.KnownPlatforms, s.UnknownPlatforms,
		s.Confidence, s.ImageURL, s.LLMProvider, s.LLMModel,
		s.PromptVersion, s.RawResponse, string(s.IngestStatus),
		s.IngestReason, s.Language,
	)
	if err != nil {
		return fmt.Errorf("finish normalization: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("signal %s: %w", s.ID, coreerrors.ErrNotFound)
	}

	return nil
}

// LinkSignalPlatforms records the signal → platform reference rows.
func (db *DB) LinkSignalPlatforms(ctx context.Context, signalID string, platformIDs []string) error {
	for _, pid := range platformIDs {
		if _, err := db.Pool.Exec(ctx, `
			INSERT INTO signal_platforms (signal_id, platform_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, toUUID(signalID), toUUID(pid)); err != nil {
			return fmt.Errorf("link signal platform: %w", err)
		}
	}

	return nil
}

// PendingSignal carries the fields needed to re-run normalization for a
// signal left PENDING by an earlier cycle.
type PendingSignal struct {
	ID           string
	Title        string
	SourceName   string
	CanonicalURL string
	PublishedAt  time.Time
	RawText      string
}

// PendingSignals lists signals still awaiting normalization, oldest first.
func (db *DB) PendingSignals(ctx context.Context, limit int) ([]PendingSignal, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id, s.title, rs.source_name, s.canonical_url, s.published_at, rs.raw_text
		FROM signals s
		JOIN raw_signals rs ON rs.id = s.raw_signal_id
		WHERE s.ingest_status = 'PENDING'
		ORDER BY s.created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending signals: %w", err)
	}
	defer rows.Close()

	var pending []PendingSignal

	for rows.Next() {
		var (
			ps          PendingSignal
			id          pgtype.UUID
			publishedAt pgtype.Timestamptz
			rawText     pgtype.Text
		)

		if err := rows.Scan(&id, &ps.Title, &ps.SourceName, &ps.CanonicalURL, &publishedAt, &rawText); err != nil {
			return nil, fmt.Errorf("scan pending signal: %w", err)
		}

		ps.ID = fromUUID(id)
		ps.PublishedAt = fromTimestamptz(publishedAt)
		ps.RawText = rawText.String

		pending = append(pending, ps)
	}

	return pending, rows.Err()
}

// UnclusteredAcceptedIDs lists accepted signals not yet assigned to a
// cluster, oldest first.
func (db *DB) UnclusteredAcceptedIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id FROM signals
		WHERE ingest_status = 'ACCEPTED' AND cluster_id IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unclustered signals: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id pgtype.UUID

		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unclustered signal id: %w", err)
		}

		ids = append(ids, fromUUID(id))
	}

	return ids, rows.Err()
}

// ClusterSignal is the presentation view of a signal attached to a cluster.
type ClusterSignal struct {
	ID           string
	Title        string
	CanonicalURL string
	ImageURL     string
	SourceName   string
	SourceDomain string
	PublishedAt  time.Time
	CreatedAt    time.Time
}

// SignalsForCluster returns the newest accepted signals of a cluster, newest
// first, capped at limit.
func (db *DB) SignalsForCluster(ctx context.Context, clusterID string, limit int) ([]ClusterSignal, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id, s.title, s.canonical_url, s.image_url, rs.source_name, rs.source_domain,
		       s.published_at, s.created_at
		FROM signals s
		JOIN raw_signals rs ON rs.id = s.raw_signal_id
		WHERE s.cluster_id = $1
		ORDER BY s.created_at DESC
		LIMIT $2
	`, toUUID(clusterID), limit)
	if err != nil {
		return nil, fmt.Errorf("signals for cluster: %w", err)
	}
	defer rows.Close()

	var signals []ClusterSignal

	for rows.Next() {
		var (
			cs          ClusterSignal
			id          pgtype.UUID
			publishedAt pgtype.Timestamptz
		)

		if err := rows.Scan(&id, &cs.Title, &cs.CanonicalURL, &cs.ImageURL,
			&cs.SourceName, &cs.SourceDomain, &publishedAt, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cluster signal: %w", err)
		}

		cs.ID = fromUUID(id)
		cs.PublishedAt = fromTimestamptz(publishedAt)

		signals = append(signals, cs)
	}

	return signals, rows.Err()
}
