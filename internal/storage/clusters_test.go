package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeCategoryLists(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{
			name:     "new category appended",
			existing: []string{"PRODUCT_UPDATE"},
			incoming: []string{"SAFETY_YOUTH_RISK"},
			want:     []string{"PRODUCT_UPDATE", "SAFETY_YOUTH_RISK"},
		},
		{
			name:     "overlap deduplicated",
			existing: []string{"PRODUCT_UPDATE", "CULTURAL_TREND"},
			incoming: []string{"CULTURAL_TREND", "REGULATORY_LEGAL"},
			want:     []string{"PRODUCT_UPDATE", "CULTURAL_TREND", "REGULATORY_LEGAL"},
		},
		{
			name:     "existing order preserved",
			existing: []string{"B", "A"},
			incoming: []string{"A", "C", "B"},
			want:     []string{"B", "A", "C"},
		},
		{
			name:     "empty incoming",
			existing: []string{"PRODUCT_UPDATE"},
			incoming: nil,
			want:     []string{"PRODUCT_UPDATE"},
		},
		{
			name:     "empty existing",
			existing: nil,
			incoming: []string{"PRODUCT_UPDATE"},
			want:     []string{"PRODUCT_UPDATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mergeCategoryLists(tt.existing, tt.incoming))
		})
	}
}
