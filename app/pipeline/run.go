package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
	"github.com/lysyi3m/awesome-comb/app/fetcher"
	"github.com/lysyi3m/awesome-comb/app/github"
	"github.com/lysyi3m/awesome-comb/app/registry"
)

// Summary is the user-visible result of one run: what was processed, what
// was carried over, and what failed after every retry pass.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Selected  int
	Processed int
	Carried   int
	Preserved int

	Added     int
	Removed   int
	Updated   int
	Unchanged int

	Enrich github.EnrichStats
	Reaped int

	Failed []string

	ListCount int
	ItemCount int
}

func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Run owns the whole mutable state of one pipeline invocation: the previous
// snapshot, the blocklist, the collaborators and the snapshot under
// construction. It is built once in main and threaded through every stage;
// nothing here is a package-level global.
type Run struct {
	prober   Prober
	fetcher  Fetcher
	parser   Parser
	enricher Enricher

	prev      *catalog.Snapshot
	blocklist *catalog.Blocklist
	selection registry.Selection

	retryPasses  int
	rotationSize int

	now func() time.Time
}

func NewRun(prober Prober, docFetcher Fetcher, docParser Parser, enricher Enricher,
	prev *catalog.Snapshot, blocklist *catalog.Blocklist, selection registry.Selection,
	retryPasses, rotationSize int) *Run {
	return &Run{
		prober:       prober,
		fetcher:      docFetcher,
		parser:       docParser,
		enricher:     enricher,
		prev:         prev,
		blocklist:    blocklist,
		selection:    selection,
		retryPasses:  retryPasses,
		rotationSize: rotationSize,
		now:          time.Now,
	}
}

// Execute drives one full pipeline run over the selected sources and returns
// the merged snapshot ready for persistence. Per-source failures are isolated
// and reported in the summary; Execute itself never fails.
func (r *Run) Execute(ctx context.Context, sources []registry.Source) (*catalog.Snapshot, *Summary) {
	summary := &Summary{StartedAt: r.now().UTC(), Selected: len(sources)}
	snapshot := catalog.NewSnapshot()

	ids := make([]string, len(sources))
	for i, source := range sources {
		ids[i] = source.ID
	}

	probes := r.prober.Run(ctx, ids)

	var stale []registry.Source
	for _, source := range sources {
		entry := r.prevEntry(source.ID)
		if github.IsStale(probes[source.ID], entry) {
			stale = append(stale, source)
		} else {
			// Fresh: the prior entry is carried over unchanged.
			snapshot.Lists[source.ID] = entry
			summary.Carried++
		}
	}
	slog.Info("Sources classified", "selected", len(sources), "stale", len(stale), "fresh", summary.Carried)

	failing := r.processPass(ctx, stale, probes, snapshot, summary)

	for pass := 1; pass <= r.retryPasses && len(failing) > 0; pass++ {
		slog.Info("Retrying failed sources", "pass", pass, "count", len(failing))
		failing = r.processPass(ctx, failing, probes, snapshot, summary)
	}

	// Exhausted failures keep their previous entry so a flaky upstream does
	// not wipe data already harvested.
	for _, source := range failing {
		summary.Failed = append(summary.Failed, source.ID)
		if entry := r.prevEntry(source.ID); entry != nil {
			snapshot.Lists[source.ID] = entry
		}
	}
	sort.Strings(summary.Failed)
	if len(summary.Failed) > 0 {
		slog.Warn("Sources excluded after retries", "count", len(summary.Failed), "sources", summary.Failed)
	}

	if r.selection.Active() && r.prev != nil {
		selected := make(map[string]bool, len(sources))
		for _, source := range sources {
			selected[source.ID] = true
		}
		for id, entry := range r.prev.Lists {
			if !selected[id] {
				snapshot.Lists[id] = entry
				summary.Preserved++
			}
		}
		slog.Info("Merge mode: untouched sources preserved", "count", summary.Preserved)
	}

	summary.Enrich = r.enricher.Run(ctx, r.collectCandidates(snapshot))
	summary.Reaped = Reap(snapshot, r.blocklist)

	snapshot.GeneratedAt = r.now().UTC()
	snapshot.Recount()

	summary.ListCount = snapshot.ListCount
	summary.ItemCount = snapshot.ItemCount
	summary.FinishedAt = r.now().UTC()

	return snapshot, summary
}

// processPass runs fetch -> parse -> filter -> diff for one set of sources
// and returns the subset that failed.
func (r *Run) processPass(ctx context.Context, sources []registry.Source,
	probes map[string]github.ProbeResult, snapshot *catalog.Snapshot, summary *Summary) []registry.Source {

	if len(sources) == 0 {
		return nil
	}

	var failing []registry.Source
	results := r.fetcher.Run(ctx, sources)

	for _, source := range sources {
		if err := r.processSource(source, results[source.ID], probes[source.ID], snapshot, summary); err != nil {
			slog.Warn("Source processing failed", "source", source.ID, "error", err)
			failing = append(failing, source)
		}
	}

	return failing
}

func (r *Run) processSource(source registry.Source, result fetcher.Result,
	probe github.ProbeResult, snapshot *catalog.Snapshot, summary *Summary) error {

	if result.Err != nil {
		return result.Err
	}

	items := r.parser.Run(result.Data)
	if len(items) == 0 {
		// A well-formed awesome list never parses to nothing; treat this as
		// a parse failure rather than wiping the previous entry.
		return fmt.Errorf("document parsed to zero items")
	}

	items = r.blocklist.Filter(items)

	var prevItems []catalog.Item
	if entry := r.prevEntry(source.ID); entry != nil {
		prevItems = entry.Items
	}

	diff := Diff(prevItems, items)

	snapshot.Lists[source.ID] = &catalog.ListEntry{
		LastParsed: r.now().UTC(),
		PushedAt:   probe.PushedAt,
		Items:      diff.Merged,
	}

	summary.Processed++
	summary.Added += len(diff.Added)
	summary.Removed += len(diff.Removed)
	summary.Updated += len(diff.Updated)
	summary.Unchanged += len(diff.Unchanged)

	slog.Info("Source processed", "source", source.ID,
		"items", len(diff.Merged),
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"updated", len(diff.Updated))

	return nil
}

// collectCandidates merges the three enrichment origins: items with no
// record yet (newly added ones included), plus the bounded oldest-first
// rotation slice. Source order is sorted so the candidate queue is
// deterministic.
func (r *Run) collectCandidates(snapshot *catalog.Snapshot) []*catalog.Item {
	var candidates []*catalog.Item

	sourceIDs := make([]string, 0, len(snapshot.Lists))
	for id := range snapshot.Lists {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	for _, id := range sourceIDs {
		entry := snapshot.Lists[id]
		for i := range entry.Items {
			if entry.Items[i].Metadata == nil {
				candidates = append(candidates, &entry.Items[i])
			}
		}
	}

	rotated := RotationCandidates(snapshot, r.rotationSize)
	candidates = append(candidates, rotated...)

	slog.Debug("Enrichment candidates collected", "missing_record", len(candidates)-len(rotated), "rotated", len(rotated))

	return candidates
}

func (r *Run) prevEntry(sourceID string) *catalog.ListEntry {
	if r.prev == nil {
		return nil
	}
	return r.prev.Lists[sourceID]
}
