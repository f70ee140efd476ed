package api

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
	"github.com/lueurxax/companion-radar/internal/storage"
)

func TestCursorRoundTrip(t *testing.T) {
	in := storage.FeedCursor{
		ImportanceScore: 12429,
		LastSignalAt:    time.Date(2026, 8, 12, 15, 4, 5, 123456000, time.UTC),
		ID:              "0b8f4a42-9c1d-4f3a-93e7-2a45f0d7b101",
	}

	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)

	assert.Equal(t, in.ImportanceScore, out.ImportanceScore)
	assert.True(t, in.LastSignalAt.Equal(out.LastSignalAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestCursorIsURLSafe(t *testing.T) {
	c := storage.FeedCursor{
		ImportanceScore: 9999999,
		LastSignalAt:    time.Now().UTC(),
		ID:              "a-b-c",
	}

	encoded := EncodeCursor(c)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!"},
		{"not json", "bm90IGpzb24"},
		{"missing id", `eyJpbXBvcnRhbmNlU2NvcmUiOjF9`},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, coreerrors.ErrBadCursor), "got %v", err)
		})
	}
}
