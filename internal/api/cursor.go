package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
	"github.com/lueurxax/companion-radar/internal/storage"
)

// wireCursor is the canonical JSON carried inside the opaque cursor string.
type wireCursor struct {
	ImportanceScore int64  `json:"importanceScore"`
	LastSignalAt    string `json:"lastSignalAt"`
	ID              string `json:"id"`
}

// EncodeCursor packs a keyset position into a URL-safe opaque string.
func EncodeCursor(c storage.FeedCursor) string {
	raw, _ := json.Marshal(wireCursor{
		ImportanceScore: c.ImportanceScore,
		LastSignalAt:    c.LastSignalAt.UTC().Format(time.RFC3339Nano),
		ID:              c.ID,
	})

	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor unpacks a cursor produced by EncodeCursor. Any malformed input
// maps to ErrBadCursor.
func DecodeCursor(s string) (*storage.FeedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", coreerrors.ErrBadCursor)
	}

	var wire wireCursor
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse cursor: %w", coreerrors.ErrBadCursor)
	}

	at, err := time.Parse(time.RFC3339Nano, wire.LastSignalAt)
	if err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", coreerrors.ErrBadCursor)
	}

	if wire.ID == "" {
		return nil, fmt.Errorf("cursor id: %w", coreerrors.ErrBadCursor)
	}

	return &storage.FeedCursor{
		ImportanceScore: wire.ImportanceScore,
		LastSignalAt:    at,
		ID:              wire.ID,
	}, nil
}
