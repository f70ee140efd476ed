// Package domain defines the entities shared across the ingest pipeline and
// the feed API. Storage owns persistence; everything here is plain data.
package domain

import "time"

// SourceType classifies where a raw signal came from.
type SourceType string

const (
	SourceMedia      SourceType = "MEDIA"
	SourceProduct    SourceType = "PRODUCT"
	SourceSocial     SourceType = "SOCIAL"
	SourceRegulatory SourceType = "REGULATORY"
)

// IngestStatus is the lifecycle of a signal. A signal is created PENDING and
// transitions exactly once to a terminal status after normalization.
type IngestStatus string

const (
	StatusPending  IngestStatus = "PENDING"
	StatusAccepted IngestStatus = "ACCEPTED"
	StatusRejected IngestStatus = "REJECTED"
	StatusFailed   IngestStatus = "FAILED"
)

// ClusterStatus marks whether a story cluster still receives signals.
type ClusterStatus string

const (
	ClusterActive ClusterStatus = "ACTIVE"
	ClusterStale  ClusterStatus = "STALE"
)

// RunStatus is the lifecycle of one ingest cycle audit row.
type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
)

// Category is a wire-level story category.
type Category string

const (
	CategoryProductUpdate      Category = "PRODUCT_UPDATE"
	CategoryMonetizationChange Category = "MONETIZATION_CHANGE"
	CategorySafetyYouthRisk    Category = "SAFETY_YOUTH_RISK"
	CategoryNSFWContentPolicy  Category = "NSFW_CONTENT_POLICY"
	CategoryCulturalTrend      Category = "CULTURAL_TREND"
	CategoryRegulatoryLegal    Category = "REGULATORY_LEGAL"
	CategoryBusinessFunding    Category = "BUSINESS_FUNDING"
)

// Categories lists every valid category in wire order.
var Categories = []Category{
	CategoryProductUpdate,
	CategoryMonetizationChange,
	CategorySafetyYouthRisk,
	CategoryNSFWContentPolicy,
	CategoryCulturalTrend,
	CategoryRegulatoryLegal,
	CategoryBusinessFunding,
}

// ValidCategory reports whether s is a known category wire string.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if string(c) == s {
			return true
		}
	}

	return false
}

// Field length limits shared by normalizer, clusterer, and storage.
const (
	MaxTitleLen       = 500
	MaxSummaryLen     = 2000
	MaxHeadlineLen    = 200
	MaxContextLen     = 1000
	MaxRawTextLen     = 20000
	MaxRawResponseLen = 20000
)

// RawSignal is the immutable capture of a single fetched item.
type RawSignal struct {
	ID           string
	SourceType   SourceType
	SourceName   string
	SourceURL    string
	SourceDomain string
	ExternalID   string
	FetchedAt    time.Time
	ContentType  string
	Payload      map[string]any
	RawText      string
	ContentHash  string
}

// Entities holds the named entities the normalizer extracted from a signal.
type Entities struct {
	Platforms []string `json:"platforms"`
	Companies []string `json:"companies"`
	People    []string `json:"people"`
	Topics    []string `json:"topics"`
}

// Signal is the interpreted view of a RawSignal.
type Signal struct {
	ID                string
	RawSignalID       string
	CanonicalURL      string
	Title             string
	Author            string
	PublishedAt       time.Time
	Language          string
	Summary           string
	SuggestedHeadline string
	Categories        []Category
	Entities          Entities
	KnownPlatforms    []string
	UnknownPlatforms  []string
	Confidence        float64
	ImageURL          string
	LLMProvider       string
	LLMModel          string
	PromptVersion     string
	RawResponse       string
	IngestStatus      IngestStatus
	IngestReason      string
	NormalizedAt      time.Time
	ClusterID         string
	CreatedAt         time.Time

	// Denormalized from the raw signal for presentation and scoring.
	SourceName   string
	SourceDomain string
}

// StoryCluster groups signals that report the same underlying event.
type StoryCluster struct {
	ID              string
	Fingerprint     string
	Headline        string
	ContextSummary  string
	SearchText      string
	Categories      []Category
	ImportanceScore int64
	ScoreBreakdown  map[string]float64
	ManualBoost     int
	FirstSeenAt     time.Time
	LastSeenAt      time.Time
	LastSignalAt    time.Time
	Status          ClusterStatus
	SignalCount     int
}

// Platform is a reference row for a known companion platform.
type Platform struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Website     string

	// ActiveClusters is populated by the platform listing query only.
	ActiveClusters int
}

// SourceCredibility maps a source domain to an editorial weight in [0,1].
type SourceCredibility struct {
	Domain string
	Weight float64
}

// RunError is one captured error inside an ingest run.
type RunError struct {
	Kind    string `json:"kind"`
	Source  string `json:"source,omitempty"`
	Message string `json:"message"`
}

// IngestRun is the audit row for one pipeline cycle.
type IngestRun struct {
	ID              string
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          RunStatus
	SignalsFetched  int
	SignalsAccepted int
	SignalsRejected int
	Errors          []RunError
}
