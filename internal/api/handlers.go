package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	"github.com/lueurxax/companion-radar/internal/platform/observability"
	"github.com/lueurxax/companion-radar/internal/storage"
)

const (
	defaultLimit = 20
	maxLimit     = 50

	maxSignalsPerCluster = 10
	recentRunsLimit      = 10

	defaultWindow = 7 * 24 * time.Hour
)

var windows = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

type platformDTO struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type signalDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ImageURL     string `json:"imageUrl,omitempty"`
	SourceName   string `json:"sourceName"`
	SourceDomain string `json:"sourceDomain"`
	PublishedAt  string `json:"publishedAt,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

type clusterDTO struct {
	ID              string             `json:"id"`
	Headline        string             `json:"headline"`
	ContextSummary  string             `json:"contextSummary"`
	Categories      []domain.Category  `json:"categories"`
	Platforms       []platformDTO      `json:"platforms"`
	ImportanceScore int64              `json:"importanceScore"`
	ScoreBreakdown  map[string]float64 `json:"scoreBreakdown"`
	SignalCount     int                `json:"signalCount"`
	FirstSeenAt     string             `json:"firstSeenAt"`
	LastSignalAt    string             `json:"lastSignalAt"`
	Signals         []signalDTO        `json:"signals"`
}

type clustersResponse struct {
	Clusters   []clusterDTO `json:"clusters"`
	NextCursor *string      `json:"nextCursor"`
	HasMore    bool         `json:"hasMore"`
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := storage.FeedFilter{
		Window: defaultWindow,
		Limit:  defaultLimit,
	}

	if cat := q.Get("category"); cat != "" {
		if !domain.ValidCategory(cat) {
			s.writeError(w, http.StatusBadRequest, "unknown category")

			return
		}

		filter.Category = cat
	}

	filter.PlatformSlug = q.Get("platform")

	if win := q.Get("window"); win != "" {
		d, ok := windows[win]
		if !ok {
			s.writeError(w, http.StatusBadRequest, "window must be one of 24h, 7d, 30d")

			return
		}

		filter.Window = d
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 50")

			return
		}

		filter.Limit = n
	}

	if raw := q.Get("cursor"); raw != "" {
		cursor, err := DecodeCursor(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "malformed cursor")

			return
		}

		filter.Cursor = cursor
	}

	page, err := s.db.FeedClusters(r.Context(), filter)
	if err != nil {
		observability.FeedRequests.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Msg("feed query failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	resp := clustersResponse{
		Clusters: make([]clusterDTO, 0, len(page.Clusters)),
		HasMore:  page.HasMore,
	}

	for i := range page.Clusters {
		dto, err := s.clusterDTO(r, &page.Clusters[i])
		if err != nil {
			observability.FeedRequests.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Str("cluster_id", page.Clusters[i].ID).Msg("cluster hydration failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")

			return
		}

		resp.Clusters = append(resp.Clusters, dto)
	}

	if page.HasMore && len(page.Clusters) > 0 {
		last := page.Clusters[len(page.Clusters)-1]
		cursor := EncodeCursor(storage.FeedCursor{
			ImportanceScore: last.ImportanceScore,
			LastSignalAt:    last.LastSignalAt,
			ID:              last.ID,
		})
		resp.NextCursor = &cursor
	}

	observability.FeedRequests.WithLabelValues("ok").Inc()
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) clusterDTO(r *http.Request, c *domain.StoryCluster) (clusterDTO, error) {
	platforms, err := s.db.ClusterPlatforms(r.Context(), c.ID)
	if err != nil {
		return clusterDTO{}, err
	}

	signals, err := s.db.SignalsForCluster(r.Context(), c.ID, maxSignalsPerCluster)
	if err != nil {
		return clusterDTO{}, err
	}

	dto := clusterDTO{
		ID:              c.ID,
		Headline:        c.Headline,
		ContextSummary:  c.ContextSummary,
		Categories:      c.Categories,
		Platforms:       make([]platformDTO, 0, len(platforms)),
		ImportanceScore: c.ImportanceScore,
		ScoreBreakdown:  c.ScoreBreakdown,
		SignalCount:     c.SignalCount,
		FirstSeenAt:     isoUTC(c.FirstSeenAt),
		LastSignalAt:    isoUTC(c.LastSignalAt),
		Signals:         make([]signalDTO, 0, len(signals)),
	}

	for _, p := range platforms {
		dto.Platforms = append(dto.Platforms, platformDTO{Slug: p.Slug, Name: p.Name})
	}

	for _, sig := range signals {
		item := signalDTO{
			ID:           sig.ID,
			Title:        sig.Title,
			URL:          sig.CanonicalURL,
			ImageURL:     sig.ImageURL,
			SourceName:   sig.SourceName,
			SourceDomain: sig.SourceDomain,
			CreatedAt:    isoUTC(sig.CreatedAt),
		}

		if !sig.PublishedAt.IsZero() {
			item.PublishedAt = isoUTC(sig.PublishedAt)
		}

		dto.Signals = append(dto.Signals, item)
	}

	return dto, nil
}

type platformListItem struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Website        string `json:"website,omitempty"`
	ActiveClusters int    `json:"activeClusters"`
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	platforms, err := s.db.PlatformsWithActiveCounts(r.Context(), time.Now().Add(-defaultWindow))
	if err != nil {
		s.logger.Error().Err(err).Msg("platform listing failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	out := make([]platformListItem, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, platformListItem{
			Slug:           p.Slug,
			Name:           p.Name,
			Description:    p.Description,
			Website:        p.Website,
			ActiveClusters: p.ActiveClusters,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
}

type runDTO struct {
	ID              string            `json:"id"`
	StartedAt       string            `json:"startedAt"`
	FinishedAt      string            `json:"finishedAt,omitempty"`
	Status          domain.RunStatus  `json:"status"`
	SignalsFetched  int               `json:"signalsFetched"`
	SignalsAccepted int               `json:"signalsAccepted"`
	SignalsRejected int               `json:"signalsRejected"`
	Errors          []domain.RunError `json:"errors"`
}

func (s *Server) handleIngestRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.RecentIngestRuns(r.Context(), recentRunsLimit)
	if err != nil {
		s.logger.Error().Err(err).Msg("run listing failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	out := make([]runDTO, 0, len(runs))

	for _, run := range runs {
		dto := runDTO{
			ID:              run.ID,
			StartedAt:       isoUTC(run.StartedAt),
			Status:          run.Status,
			SignalsFetched:  run.SignalsFetched,
			SignalsAccepted: run.SignalsAccepted,
			SignalsRejected: run.SignalsRejected,
			Errors:          run.Errors,
		}

		if dto.Errors == nil {
			dto.Errors = []domain.RunError{}
		}

		if !run.FinishedAt.IsZero() {
			dto.FinishedAt = isoUTC(run.FinishedAt)
		}

		out = append(out, dto)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

type triggerResponse struct {
	RunID           string `json:"runId"`
	Status          string `json:"status"`
	Mode            string `json:"mode"`
	SignalsFetched  int    `json:"signalsFetched"`
	SignalsAccepted int    `json:"signalsAccepted"`
	SignalsRejected int    `json:"signalsRejected"`
	ErrorCount      int    `json:"errorCount"`
	DurationMS      int64  `json:"durationMs"`
}

func (s *Server) handleTriggerIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")

		return
	}

	result, err := s.runner.RunCycle(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("triggered ingest cycle failed")
		s.writeError(w, http.StatusInternalServerError, "ingest cycle failed")

		return
	}

	s.writeJSON(w, http.StatusOK, triggerResponse{
		RunID:           result.RunID,
		Status:          string(result.Status),
		Mode:            "direct",
		SignalsFetched:  result.SignalsFetched,
		SignalsAccepted: result.SignalsAccepted,
		SignalsRejected: result.SignalsRejected,
		ErrorCount:      result.ErrorCount,
		DurationMS:      result.Duration.Milliseconds(),
	})
}

// authorized accepts the ingest or scheduler secret as a bearer token, via
// the x-cron-secret header, or via the legacy ?secret= query param. With no
// secrets configured every trigger is refused.
func (s *Server) authorized(r *http.Request) bool {
	var presented []string

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		presented = append(presented, strings.TrimPrefix(auth, "Bearer "))
	}

	if v := r.Header.Get("X-Cron-Secret"); v != "" {
		presented = append(presented, v)
	}

	if v := r.URL.Query().Get("secret"); v != "" {
		presented = append(presented, v)
	}

	for _, candidate := range presented {
		for _, secret := range []string{s.ingestSecret, s.cronSecret} {
			if secret == "" {
				continue
			}

			if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
				return true
			}
		}
	}

	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("response encoding failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func isoUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
