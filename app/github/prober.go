package github

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

// ProbeOutcome is the three-way result of one remote-timestamp lookup.
type ProbeOutcome int

const (
	// ProbeUnknown covers everything that could not be resolved this cycle:
	// invalid ids, transport failures and ambiguous null responses. Unknown
	// sources are treated as stale, never as dead.
	ProbeUnknown ProbeOutcome = iota
	ProbeResolved
	ProbeNotFound
)

type ProbeResult struct {
	Outcome  ProbeOutcome
	PushedAt *time.Time
}

// Prober batches source ids into combined remote-timestamp queries and
// classifies each source fresh or stale against the previous snapshot.
type Prober struct {
	client    *Client
	batchSize int
}

func NewProber(client *Client, batchSize int) *Prober {
	return &Prober{client: client, batchSize: batchSize}
}

// Run probes every source id and returns one result per id. Ids that fail
// validation or whose batch failed come back as ProbeUnknown; the batch
// itself never crashes on a bad id. Without a token every id is Unknown,
// which downstream means "stale", so an unauthenticated run still refreshes
// everything.
func (p *Prober) Run(ctx context.Context, ids []string) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(ids))
	for _, id := range ids {
		results[id] = ProbeResult{Outcome: ProbeUnknown}
	}

	if !p.client.HasToken() {
		slog.Debug("No GitHub token, skipping freshness probe")
		return results
	}

	var keys []RepoKey
	var keyIDs []string
	for _, id := range ids {
		key, ok := ParseRepoID(id)
		if !ok || !key.Valid() {
			slog.Warn("Invalid source id excluded from probe", "id", id)
			continue
		}
		keys = append(keys, key)
		keyIDs = append(keyIDs, id)
	}

	for start := 0; start < len(keys); start += p.batchSize {
		end := min(start+p.batchSize, len(keys))
		batch := keys[start:end]

		query := BuildRepoQuery(batch, "pushedAt")
		result, err := p.client.Query(ctx, query)
		if err != nil {
			slog.Warn("Freshness probe batch failed", "size", len(batch), "error", err)
			continue
		}

		for i := range batch {
			id := keyIDs[start+i]
			alias := Alias(i)

			if repo, ok := result.Repos[alias]; ok {
				results[id] = ProbeResult{Outcome: ProbeResolved, PushedAt: repo.PushedAt}
			} else if result.NotFound[alias] {
				results[id] = ProbeResult{Outcome: ProbeNotFound}
			}
			// Null without error stays ProbeUnknown for a future cycle.
		}
	}

	return results
}

// IsStale classifies one source against its previous snapshot entry. A source
// is fresh only when a prior entry exists, the remote timestamp resolved, and
// the upstream has not pushed since the entry was parsed.
func IsStale(result ProbeResult, entry *catalog.ListEntry) bool {
	if entry == nil {
		return true
	}
	if result.Outcome != ProbeResolved {
		return true
	}
	if result.PushedAt == nil {
		return true
	}
	return result.PushedAt.After(entry.LastParsed)
}
