package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/textutil"
)

const (
	// minTextLen is the summed title+content rune count below which a signal
	// is rejected without spending an LLM call.
	minTextLen = 50

	defaultLanguage = "en"
)

// Task couples a pending signal with the raw material the model needs.
type Task struct {
	SignalID    string
	Title       string
	SourceName  string
	URL         string
	PublishedAt time.Time
	RawText     string
}

// store is the persistence surface normalization needs. *storage.DB
// satisfies it.
type store interface {
	FinishNormalization(ctx context.Context, s *domain.Signal) error
	LinkSignalPlatforms(ctx context.Context, signalID string, platformIDs []string) error
	PlatformsBySlugs(ctx context.Context, slugs []string) ([]domain.Platform, error)
}

type Normalizer struct {
	db            store
	llm           Client
	images        *ImageFetcher
	minConfidence float64
	logger        *zerolog.Logger
}

func New(db store, llm Client, images *ImageFetcher, minConfidence float64, logger *zerolog.Logger) *Normalizer {
	return &Normalizer{
		db:            db,
		llm:           llm,
		images:        images,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Normalize drives one pending signal to a terminal status and persists the
// outcome. The returned status is the decision; the error is reserved for
// storage failures.
func (n *Normalizer) Normalize(ctx context.Context, t Task) (domain.IngestStatus, error) {
	sig := &domain.Signal{
		ID:       t.SignalID,
		Title:    textutil.Truncate(t.Title, domain.MaxTitleLen),
		Language: defaultLanguage,
	}

	// The separator between title and content does not count toward the
	// minimum.
	textLen := utf8.RuneCountInString(strings.TrimSpace(t.Title)) + utf8.RuneCountInString(strings.TrimSpace(t.RawText))
	if textLen < minTextLen {
		sig.IngestStatus = domain.StatusRejected
		sig.IngestReason = "text too short"

		return sig.IngestStatus, n.db.FinishNormalization(ctx, sig)
	}

	res, err := n.llm.Extract(ctx, Input{
		Title:       t.Title,
		SourceName:  t.SourceName,
		URL:         t.URL,
		PublishedAt: t.PublishedAt,
		Content:     t.RawText,
	})

	if res != nil {
		sig.LLMProvider = res.Provider
		sig.LLMModel = res.Model
		sig.PromptVersion = res.PromptVersion
		sig.RawResponse = textutil.Truncate(res.Raw, domain.MaxRawResponseLen)
	}

	if err != nil {
		n.logger.Warn().Err(err).Str("signal_id", t.SignalID).Msg("normalization failed")

		sig.IngestStatus = domain.StatusFailed
		sig.IngestReason = textutil.Truncate(err.Error(), domain.MaxContextLen)

		return sig.IngestStatus, n.db.FinishNormalization(ctx, sig)
	}

	ext := res.Extraction

	sig.Summary = textutil.Truncate(ext.Summary, domain.MaxSummaryLen)
	sig.SuggestedHeadline = textutil.Truncate(ext.SuggestedHeadline, domain.MaxHeadlineLen)
	sig.Categories = toCategories(ext.Categories)
	sig.Entities = ext.Entities
	sig.Confidence = ext.Confidence

	if ext.Confidence < n.minConfidence {
		// The raw response stays on the row for audit.
		sig.IngestStatus = domain.StatusRejected
		sig.IngestReason = fmt.Sprintf("confidence %.2f below threshold %.2f", ext.Confidence, n.minConfidence)

		return sig.IngestStatus, n.db.FinishNormalization(ctx, sig)
	}

	known, unknown, platformIDs, err := n.resolvePlatforms(ctx, ext.Entities.Platforms)
	if err != nil {
		return "", err
	}

	sig.KnownPlatforms = known
	sig.UnknownPlatforms = unknown
	sig.IngestStatus = domain.StatusAccepted

	if n.images != nil && t.URL != "" {
		sig.ImageURL = n.images.Fetch(ctx, t.URL)
	}

	if err := n.db.FinishNormalization(ctx, sig); err != nil {
		return "", err
	}

	if err := n.db.LinkSignalPlatforms(ctx, t.SignalID, platformIDs); err != nil {
		return "", err
	}

	return sig.IngestStatus, nil
}

// resolvePlatforms slugs the extracted platform names and splits them into
// known (present in the platforms table) and unknown.
func (n *Normalizer) resolvePlatforms(ctx context.Context, names []string) (known, unknown, ids []string, err error) {
	slugs := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		slug := Slugify(name)
		if slug == "" {
			continue
		}

		if _, dup := seen[slug]; dup {
			continue
		}

		seen[slug] = struct{}{}

		slugs = append(slugs, slug)
	}

	if len(slugs) == 0 {
		return []string{}, []string{}, nil, nil
	}

	platforms, err := n.db.PlatformsBySlugs(ctx, slugs)
	if err != nil {
		return nil, nil, nil, err
	}

	byslug := make(map[string]string, len(platforms))
	for _, p := range platforms {
		byslug[p.Slug] = p.ID
	}

	known = make([]string, 0, len(slugs))
	unknown = make([]string, 0)

	for _, slug := range slugs {
		if id, ok := byslug[slug]; ok {
			known = append(known, slug)
			ids = append(ids, id)
		} else {
			unknown = append(unknown, slug)
		}
	}

	return known, unknown, ids, nil
}

// Slugify lowercases a platform name and collapses whitespace runs to single
// hyphens.
func Slugify(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "-")
}

func toCategories(raw []string) []domain.Category {
	cats := make([]domain.Category, 0, len(raw))
	for _, c := range raw {
		cats = append(cats, domain.Category(c))
	}

	return cats
}
