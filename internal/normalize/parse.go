package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
)

const (
	maxSummaryChars  = 500
	maxHeadlineChars = 120
)

// extractJSON returns the first balanced {...} block of s. Models sometimes
// wrap the object in prose or markdown fences.
func extractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}

// parseExtraction parses and validates a model response. A response that does
// not parse as JSON yields ErrBadJSON; a parsed response with a bad shape
// yields ErrValidation. Callers rely on the distinction for retry decisions.
func parseExtraction(raw string) (*Extraction, error) {
	block, ok := extractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response: %w", coreerrors.ErrBadJSON)
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(block), &ext); err != nil {
		return nil, fmt.Errorf("%v: %w", err, coreerrors.ErrBadJSON)
	}

	if err := validateExtraction(&ext); err != nil {
		return nil, err
	}

	return &ext, nil
}

func validateExtraction(ext *Extraction) error {
	if ext.Summary == "" {
		return fmt.Errorf("empty summary: %w", coreerrors.ErrValidation)
	}

	if len([]rune(ext.Summary)) > maxSummaryChars {
		return fmt.Errorf("summary over %d chars: %w", maxSummaryChars, coreerrors.ErrValidation)
	}

	if len([]rune(ext.SuggestedHeadline)) > maxHeadlineChars {
		return fmt.Errorf("suggestedHeadline over %d chars: %w", maxHeadlineChars, coreerrors.ErrValidation)
	}

	if len(ext.Categories) == 0 {
		return fmt.Errorf("empty categories: %w", coreerrors.ErrValidation)
	}

	for _, c := range ext.Categories {
		if !domain.ValidCategory(c) {
			return fmt.Errorf("unknown category %q: %w", c, coreerrors.ErrValidation)
		}
	}

	if ext.Confidence < 0 || ext.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]: %w", ext.Confidence, coreerrors.ErrValidation)
	}

	// Missing entity lists default to empty rather than failing validation.
	if ext.Entities.Platforms == nil {
		ext.Entities.Platforms = []string{}
	}

	if ext.Entities.Companies == nil {
		ext.Entities.Companies = []string{}
	}

	if ext.Entities.People == nil {
		ext.Entities.People = []string{}
	}

	if ext.Entities.Topics == nil {
		ext.Entities.Topics = []string{}
	}

	return nil
}
