// Package connectors retrieves raw items from configured sources. Connectors
// are a closed set of variants registered in an ordered list; the registry
// dispatches to the first connector whose CanHandle accepts the source.
package connectors

import (
	"context"
	"fmt"
	"time"

	"github.com/lueurxax/companion-radar/internal/core/domain"
	coreerrors "github.com/lueurxax/companion-radar/internal/core/errors"
)

// SourceConfig describes one configured source.
type SourceConfig struct {
	Name    string
	Type    domain.SourceType
	FeedURL string
	Enabled bool
}

// Item is one fetched raw item before hashing and storage.
type Item struct {
	ExternalID  string
	SourceURL   string
	Title       string
	Author      string
	PublishedAt time.Time
	Text        string
	Payload     map[string]any
	ContentType string
}

// FetchResult carries the items of one fetch plus per-item errors. A fetch
// error never aborts the cycle; it is recorded and the cycle moves on.
type FetchResult struct {
	Items    []Item
	Errors   []error
	Metadata map[string]string
}

// Connector is the contract every source variant implements.
type Connector interface {
	CanHandle(cfg SourceConfig) bool
	Fetch(ctx context.Context, cfg SourceConfig) (*FetchResult, error)
}

// Registry holds connectors in registration order.
type Registry struct {
	connectors []Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	return &Registry{connectors: connectors}
}

// Resolve returns the first connector that can handle cfg.
func (r *Registry) Resolve(cfg SourceConfig) (Connector, error) {
	for _, c := range r.connectors {
		if c.CanHandle(cfg) {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", coreerrors.ErrNotImplemented, cfg.Name)
}

// Fetch resolves and runs the connector for cfg.
func (r *Registry) Fetch(ctx context.Context, cfg SourceConfig) (*FetchResult, error) {
	c, err := r.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	return c.Fetch(ctx, cfg)
}
