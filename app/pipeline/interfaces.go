package pipeline

import (
	"context"

	"github.com/lysyi3m/awesome-comb/app/catalog"
	"github.com/lysyi3m/awesome-comb/app/fetcher"
	"github.com/lysyi3m/awesome-comb/app/github"
	"github.com/lysyi3m/awesome-comb/app/registry"
)

// Prober resolves remote timestamps for source ids.
type Prober interface {
	Run(ctx context.Context, ids []string) map[string]github.ProbeResult
}

// Fetcher retrieves raw documents for stale sources.
type Fetcher interface {
	Run(ctx context.Context, sources []registry.Source) map[string]fetcher.Result
}

// Parser turns a raw document into an ordered item list. It must be a pure
// function: no side effects, no network.
type Parser interface {
	Run(data []byte) []catalog.Item
}

// Enricher attaches provider metadata to candidate items in place.
type Enricher interface {
	Run(ctx context.Context, candidates []*catalog.Item) github.EnrichStats
}
