package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const credibilityCacheTTL = 5 * time.Minute

// credibilityCache keeps the read-mostly domain weight table hot for a short
// window. Stale reads are acceptable; the table changes rarely. The cache
// lives on the DB value so its lifetime is owned by whoever built the DB.
type credibilityCache struct {
	mu        sync.Mutex
	weights   map[string]float64
	fetchedAt time.Time
}

// CredibilityWeights returns the domain → weight map, served from a 5 minute
// cache.
func (db *DB) CredibilityWeights(ctx context.Context) (map[string]float64, error) {
	db.credCache.mu.Lock()
	defer db.credCache.mu.Unlock()

	if db.credCache.weights != nil && time.Since(db.credCache.fetchedAt) < credibilityCacheTTL {
		return db.credCache.weights, nil
	}

	rows, err := db.Pool.Query(ctx, `SELECT domain, weight FROM source_credibility`)
	if err != nil {
		return nil, fmt.Errorf("load credibility weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]float64)

	for rows.Next() {
		var (
			dom    string
			weight float64
		)

		if err := rows.Scan(&dom, &weight); err != nil {
			return nil, fmt.Errorf("scan credibility row: %w", err)
		}

		weights[dom] = weight
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	db.credCache.weights = weights
	db.credCache.fetchedAt = time.Now()

	return weights, nil
}
