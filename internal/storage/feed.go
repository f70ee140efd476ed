package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lueurxax/companion-radar/internal/core/domain"
)

// FeedCursor is the keyset position of the last row a client saw. The API
// layer owns its wire encoding.
type FeedCursor struct {
	ImportanceScore int64
	LastSignalAt    time.Time
	ID              string
}

// FeedFilter selects and pages the cluster feed.
type FeedFilter struct {
	Category     string
	PlatformSlug string
	Window       time.Duration
	Cursor       *FeedCursor
	Limit        int
}

// FeedPage is one page of the cluster feed.
type FeedPage struct {
	Clusters []domain.StoryCluster
	HasMore  bool
}

// FeedClusters serves the paginated feed: ACTIVE clusters inside the window,
// ordered by (importance_score DESC, last_signal_at DESC, id DESC) with a
// strict keyset predicate. It fetches limit+1 rows to detect a next page.
// The ordering uses only the persisted integer score, so pagination is stable
// under concurrent writes.
func (db *DB) FeedClusters(ctx context.Context, f FeedFilter) (*FeedPage, error) {
	since := time.Now().Add(-f.Window)

	query := clusterSelect + `
		WHERE c.status = 'ACTIVE'
		  AND c.last_signal_at >= $1`
	args := []any{since}

	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(`
		  AND $%d = ANY(c.categories)`, len(args))
	}

	if f.PlatformSlug != "" {
		args = append(args, f.PlatformSlug)
		query += fmt.Sprintf(`
		  AND EXISTS (
		      SELECT 1 FROM cluster_platforms cp
		      JOIN platforms p ON p.id = cp.platform_id
		      WHERE cp.cluster_id = c.id AND p.slug = $%d
		  )`, len(args))
	}

	if f.Cursor != nil {
		args = append(args, f.Cursor.ImportanceScore, f.Cursor.LastSignalAt, toUUID(f.Cursor.ID))
		n := len(args)
		query += fmt.Sprintf(`
		  AND (c.importance_score < $%d
		       OR (c.importance_score = $%d AND c.last_signal_at < $%d)
		       OR (c.importance_score = $%d AND c.last_signal_at = $%d AND c.id < $%d))`,
			n-2, n-2, n-1, n-2, n-1, n)
	}

	args = append(args, f.Limit+1)
	query += fmt.Sprintf(`
		ORDER BY c.importance_score DESC, c.last_signal_at DESC, c.id DESC
		LIMIT $%d`, len(args))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("feed clusters: %w", err)
	}
	defer rows.Close()

	var clusters []domain.StoryCluster

	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}

		clusters = append(clusters, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	page := &FeedPage{Clusters: clusters}

	if len(clusters) > f.Limit {
		page.Clusters = clusters[:f.Limit]
		page.HasMore = true
	}

	return page, nil
}
