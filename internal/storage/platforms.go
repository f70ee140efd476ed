package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/companion-radar/internal/core/domain"
)

// PlatformsBySlugs resolves the given slugs to platform rows. Unknown slugs
// are simply absent from the result.
func (db *DB) PlatformsBySlugs(ctx context.Context, slugs []string) ([]domain.Platform, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, slug, name, description, website
		FROM platforms
		WHERE slug = ANY($1)
	`, slugs)
	if err != nil {
		return nil, fmt.Errorf("platforms by slugs: %w", err)
	}
	defer rows.Close()

	var platforms []domain.Platform

	for rows.Next() {
		var (
			p  domain.Platform
			id pgtype.UUID
		)

		if err := rows.Scan(&id, &p.Slug, &p.Name, &p.Description, &p.Website); err != nil {
			return nil, fmt.Errorf("scan platform: %w", err)
		}

		p.ID = fromUUID(id)

		platforms = append(platforms, p)
	}

	return platforms, rows.Err()
}

// ClusterPlatforms returns the platform rows linked to a cluster.
func (db *DB) ClusterPlatforms(ctx context.Context, clusterID string) ([]domain.Platform, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT p.id, p.slug, p.name, p.description, p.website
		FROM cluster_platforms cp
		JOIN platforms p ON p.id = cp.platform_id
		WHERE cp.cluster_id = $1
		ORDER BY p.slug
	`, toUUID(clusterID))
	if err != nil {
		return nil, fmt.Errorf("cluster platforms: %w", err)
	}
	defer rows.Close()

	var platforms []domain.Platform

	for rows.Next() {
		var (
			p  domain.Platform
			id pgtype.UUID
		)

		if err := rows.Scan(&id, &p.Slug, &p.Name, &p.Description, &p.Website); err != nil {
			return nil, fmt.Errorf("scan cluster platform: %w", err)
		}

		p.ID = fromUUID(id)

		platforms = append(platforms, p)
	}

	return platforms, rows.Err()
}

// PlatformsWithActiveCounts lists all platforms together with the number of
// ACTIVE clusters linked to each, for the /platforms endpoint.
func (db *DB) PlatformsWithActiveCounts(ctx context.Context, activeSince time.Time) ([]domain.Platform, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT p.id, p.slug, p.name, p.description, p.website,
		       count(c.id) FILTER (WHERE c.status = 'ACTIVE' AND c.last_signal_at >= $1) AS active_clusters
		FROM platforms p
		LEFT JOIN cluster_platforms cp ON cp.platform_id = p.id
		LEFT JOIN story_clusters c ON c.id = cp.cluster_id
		GROUP BY p.id, p.slug, p.name, p.description, p.website
		ORDER BY active_clusters DESC, p.slug
	`, activeSince)
	if err != nil {
		return nil, fmt.Errorf("platforms with counts: %w", err)
	}
	defer rows.Close()

	var platforms []domain.Platform

	for rows.Next() {
		var (
			p  domain.Platform
			id pgtype.UUID
		)

		if err := rows.Scan(&id, &p.Slug, &p.Name, &p.Description, &p.Website, &p.ActiveClusters); err != nil {
			return nil, fmt.Errorf("scan platform count: %w", err)
		}

		p.ID = fromUUID(id)

		platforms = append(platforms, p)
	}

	return platforms, rows.Err()
}
