package github

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

const (
	defaultMinDelay   = 1 * time.Second
	defaultMaxDelay   = 2 * time.Minute
	defaultBackoffCap = 5 * time.Minute

	// Below this remaining-quota mark the inter-batch cadence doubles.
	defaultQuotaLowWater = 200

	// A batch rejected with a rate-limit signal is retried this many times
	// before being abandoned for the run.
	defaultMaxAttempts = 4
)

// EnrichStats summarizes one enrichment pass for the run report.
type EnrichStats struct {
	Candidates int
	Entities   int
	Batches    int
	Resolved   int
	NotFound   int
	Deferred   int
	Abandoned  int
}

// candidateGroup collects every catalog item whose URL resolves to the same
// repository, so one entity lookup serves all of them.
type candidateGroup struct {
	key   RepoKey
	items []*catalog.Item
}

// Enricher performs rate-limited, batched metadata lookups. Batches are
// deliberately serialized: the provider enforces a shared quota, so the
// enrichment stage shapes its rate instead of fanning out.
type Enricher struct {
	client    *Client
	batchSize int

	delay       time.Duration
	minDelay    time.Duration
	maxDelay    time.Duration
	backoffCap  time.Duration
	lowWater    int
	maxAttempts int

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration)
	jitter func() float64
}

func NewEnricher(client *Client, batchSize int) *Enricher {
	return &Enricher{
		client:      client,
		batchSize:   batchSize,
		delay:       defaultMinDelay,
		minDelay:    defaultMinDelay,
		maxDelay:    defaultMaxDelay,
		backoffCap:  defaultBackoffCap,
		lowWater:    defaultQuotaLowWater,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		sleep:       sleepCtx,
		jitter:      rand.Float64,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run enriches the candidate items in place. Without a token it is a no-op
// passthrough: the items are left exactly as given and the pipeline proceeds.
func (e *Enricher) Run(ctx context.Context, candidates []*catalog.Item) EnrichStats {
	stats := EnrichStats{Candidates: len(candidates)}

	if !e.client.HasToken() {
		slog.Info("No GitHub token, skipping metadata enrichment", "candidates", len(candidates))
		return stats
	}

	groups := e.groupCandidates(candidates)
	stats.Entities = len(groups)
	if len(groups) == 0 {
		return stats
	}

	slog.Info("Starting metadata enrichment", "candidates", len(candidates), "entities", len(groups), "batch_size", e.batchSize)

	for start := 0; start < len(groups); start += e.batchSize {
		if ctx.Err() != nil {
			stats.Deferred += countItems(groups[start:])
			break
		}

		end := min(start+e.batchSize, len(groups))
		batch := groups[start:end]
		stats.Batches++

		e.enrichBatch(ctx, batch, &stats)

		if end < len(groups) {
			e.sleep(ctx, e.delay)
		}
	}

	slog.Info("Metadata enrichment finished",
		"batches", stats.Batches,
		"resolved", stats.Resolved,
		"not_found", stats.NotFound,
		"deferred", stats.Deferred,
		"abandoned", stats.Abandoned)

	return stats
}

// groupCandidates deduplicates candidates by the repository their URL
// resolves to. Items whose URL does not resolve to a valid repository are
// excluded before anything is sent, so response slots can only ever map
// through the sent set.
func (e *Enricher) groupCandidates(candidates []*catalog.Item) []candidateGroup {
	var groups []candidateGroup
	index := make(map[RepoKey]int)

	for _, item := range candidates {
		key, ok := ParseRepoURL(item.URL)
		if !ok || !key.Valid() {
			slog.Debug("Candidate excluded from enrichment", "url", item.URL)
			continue
		}
		if i, ok := index[key]; ok {
			groups[i].items = append(groups[i].items, item)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, candidateGroup{key: key, items: []*catalog.Item{item}})
	}

	return groups
}

// enrichBatch issues one combined query for the batch, retrying the same
// batch on rate-limit signals with exponential jittered backoff up to the
// attempt ceiling. Entities absent from the response without an error remain
// untouched and stay candidates for the next run.
func (e *Enricher) enrichBatch(ctx context.Context, batch []candidateGroup, stats *EnrichStats) {
	keys := make([]RepoKey, len(batch))
	for i, group := range batch {
		keys[i] = group.key
	}
	query := BuildRepoQuery(keys, "stargazerCount primaryLanguage { name } pushedAt")

	for attempt := 1; ; attempt++ {
		result, err := e.client.Query(ctx, query)
		if err != nil {
			if attempt >= e.maxAttempts || ctx.Err() != nil {
				slog.Error("Enrichment batch abandoned", "size", len(batch), "attempts", attempt, "error", err)
				stats.Abandoned += countItems(batch)
				return
			}

			backoff := e.delay
			if errors.Is(err, ErrRateLimited) {
				backoff = e.rateLimitBackoff(attempt)
				slog.Warn("Rate limited, backing off", "attempt", attempt, "backoff", backoff.String())
			} else {
				slog.Warn("Enrichment batch failed, retrying", "attempt", attempt, "error", err)
			}
			e.sleep(ctx, backoff)
			continue
		}

		e.applyResult(batch, result, stats)
		e.adaptDelay(result.Remaining)
		return
	}
}

// rateLimitBackoff grows exponentially with the attempt number, plus random
// jitter, capped so a retry never stalls the run indefinitely.
func (e *Enricher) rateLimitBackoff(attempt int) time.Duration {
	backoff := e.minDelay * time.Duration(1<<uint(attempt))
	backoff += time.Duration(e.jitter() * float64(e.minDelay))
	if backoff > e.backoffCap {
		backoff = e.backoffCap
	}
	return backoff
}

// adaptDelay shapes the inter-batch cadence: multiplicative shrink toward the
// floor while the quota holds, multiplicative growth once the provider's
// remaining-quota signal drops below the low-water mark.
func (e *Enricher) adaptDelay(remaining int) {
	if remaining >= 0 && remaining < e.lowWater {
		e.delay *= 2
		if e.delay > e.maxDelay {
			e.delay = e.maxDelay
		}
		slog.Debug("Quota low, slowing down", "remaining", remaining, "delay", e.delay.String())
		return
	}

	e.delay = e.delay * 3 / 4
	if e.delay < e.minDelay {
		e.delay = e.minDelay
	}
}

// applyResult writes the three-way per-entity outcome back onto the catalog
// items. Response slots are mapped by alias through the sent batch slice, so
// pre-send exclusions can never shift attribution.
func (e *Enricher) applyResult(batch []candidateGroup, result *QueryResult, stats *EnrichStats) {
	checkedAt := e.now().UTC()

	for i, group := range batch {
		alias := Alias(i)

		if repo, ok := result.Repos[alias]; ok {
			language := ""
			if repo.PrimaryLanguage != nil {
				language = repo.PrimaryLanguage.Name
			}
			for _, item := range group.items {
				item.Metadata = catalog.NewResolved(repo.StargazerCount, language, repo.PushedAt)
				stamp := checkedAt
				item.LastEnriched = &stamp
			}
			stats.Resolved += len(group.items)
			continue
		}

		if result.NotFound[alias] {
			for _, item := range group.items {
				item.Metadata = catalog.NewNotFound(checkedAt)
				stamp := checkedAt
				item.LastEnriched = &stamp
			}
			stats.NotFound += len(group.items)
			continue
		}

		// Absent with no error: leave the items untouched either way.
		stats.Deferred += len(group.items)
	}
}

func countItems(groups []candidateGroup) int {
	n := 0
	for _, group := range groups {
		n += len(group.items)
	}
	return n
}
