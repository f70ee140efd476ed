package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
)

// StoreRawSignal persists a raw capture together with its companion PENDING
// signal in one transaction. The content hash unique index is the dedup
// barrier: a duplicate returns ErrDuplicate and writes nothing.
func (db *DB) StoreRawSignal(ctx context.Context, raw *domain.RawSignal, seed *domain.Signal) (string, error) {
	payload, err := json.Marshal(raw.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var signalID string

	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		var rawID pgtype.UUID

		err := tx.QueryRow(ctx, `
			INSERT INTO raw_signals (source_type, source_name, source_url, source_domain,
			                         external_id, fetched_at, content_type, payload, raw_text, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`,
			string(raw.SourceType), raw.SourceName, raw.SourceURL, raw.SourceDomain,
			toText(raw.ExternalID), raw.FetchedAt, raw.ContentType, payload,
			toText(raw.RawText), raw.ContentHash,
		).Scan(&rawID)
		if err != nil {
			if isUniqueViolation(err) {
				return coreerrors.ErrDuplicate
			}

			return fmt.Errorf("insert raw signal: %w", err)
		}

		raw.ID = fromUUID(rawID)

		var sigID pgtype.UUID

		err = tx.QueryRow(ctx, `
			INSERT INTO signals (raw_signal_id, canonical_url, title, author, published_at, ingest_status)
			VALUES ($1, $2, $3, $4, $5, 'PENDING')
			RETURNING id
		`,
			rawID, seed.CanonicalURL, seed.Title, seed.Author, toTimestamptz(seed.PublishedAt),
		).Scan(&sigID)
		if err != nil {
			return fmt.Errorf("insert pending signal: %w", err)
		}

		signalID = fromUUID(sigID)

		return nil
	})
	if err != nil {
		return "", err
	}

	return signalID, nil
}
