package github

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/awesome-comb/app/catalog"
)

func newTestEnricher(handler http.HandlerFunc, batchSize int) (*Enricher, func()) {
	client, server := newTestClient(handler)
	enricher := NewEnricher(client, batchSize)
	enricher.sleep = func(ctx context.Context, d time.Duration) {}
	enricher.now = func() time.Time { return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC) }
	return enricher, server.Close
}

func TestEnricherThreeWayOutcomes(t *testing.T) {
	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": {
				"rateLimit": {"remaining": 4500},
				"r0": {"stargazerCount": 1200, "primaryLanguage": {"name": "Go"}, "pushedAt": "2025-06-01T00:00:00Z"},
				"r1": null,
				"r2": null
			},
			"errors": [{"type": "NOT_FOUND", "message": "gone", "path": ["r1"]}]
		}`))
	}, 10)
	defer closeServer()

	items := []*catalog.Item{
		{Name: "alive", URL: "https://github.com/a/alive"},
		{Name: "gone", URL: "https://github.com/b/gone"},
		{Name: "ambiguous", URL: "https://github.com/c/ambiguous"},
	}

	stats := enricher.Run(context.Background(), items)

	meta, ok := items[0].Metadata.Resolved()
	if !ok {
		t.Fatal("Expected resolved metadata on first item")
	}
	if meta.Stars != 1200 || meta.Language != "Go" {
		t.Errorf("Unexpected metadata: %+v", meta)
	}
	if items[0].LastEnriched == nil {
		t.Error("Expected lastEnriched stamp on resolved item")
	}

	if !items[1].Metadata.IsNotFound() {
		t.Error("Expected explicit not-found marker on second item")
	}
	if items[1].LastEnriched == nil {
		t.Error("Expected lastEnriched stamp on not-found item")
	}

	// Silently absent entity stays untouched and distinguishable from dead.
	if items[2].Metadata != nil {
		t.Errorf("Expected ambiguous item untouched, got %+v", items[2].Metadata)
	}
	if items[2].LastEnriched != nil {
		t.Error("Expected no lastEnriched stamp on ambiguous item")
	}

	if stats.Resolved != 1 || stats.NotFound != 1 || stats.Deferred != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestEnricherIndexSafety(t *testing.T) {
	// Candidate #2 fails validation pre-send; the response has two slots and
	// they must map to candidates #1 and #3, never by original position.
	var gotQuery string
	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		decodeBody(t, r, &req)
		gotQuery = req.Query
		w.Write([]byte(`{
			"data": {
				"rateLimit": {"remaining": 4500},
				"r0": {"stargazerCount": 11, "pushedAt": "2025-06-01T00:00:00Z"},
				"r1": {"stargazerCount": 33, "pushedAt": "2025-06-01T00:00:00Z"}
			}
		}`))
	}, 10)
	defer closeServer()

	items := []*catalog.Item{
		{Name: "one", URL: "https://github.com/a/one"},
		{Name: "two", URL: "https://example.com/not-a-repo"},
		{Name: "three", URL: "https://github.com/c/three"},
	}

	enricher.Run(context.Background(), items)

	if !strings.Contains(gotQuery, `r0: repository(owner: "a", name: "one")`) {
		t.Errorf("Expected r0 to be a/one, got:\n%s", gotQuery)
	}
	if !strings.Contains(gotQuery, `r1: repository(owner: "c", name: "three")`) {
		t.Errorf("Expected r1 to be c/three, got:\n%s", gotQuery)
	}

	meta, ok := items[0].Metadata.Resolved()
	if !ok || meta.Stars != 11 {
		t.Errorf("Expected candidate #1 to get 11 stars, got %+v", items[0].Metadata)
	}

	if items[1].Metadata != nil {
		t.Error("Excluded candidate must remain unenriched")
	}

	meta, ok = items[2].Metadata.Resolved()
	if !ok || meta.Stars != 33 {
		t.Errorf("Expected candidate #3 to get 33 stars, got %+v", items[2].Metadata)
	}
}

func TestEnricherDeduplicatesEntities(t *testing.T) {
	calls := 0
	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{
			"data": {
				"rateLimit": {"remaining": 4500},
				"r0": {"stargazerCount": 77, "pushedAt": "2025-06-01T00:00:00Z"}
			}
		}`))
	}, 10)
	defer closeServer()

	// Two catalog items from different categories pointing at one repository.
	items := []*catalog.Item{
		{Name: "tool", URL: "https://github.com/a/tool", Category: "CLI"},
		{Name: "tool", URL: "https://github.com/a/tool", Category: "Utilities"},
	}

	stats := enricher.Run(context.Background(), items)

	if calls != 1 {
		t.Errorf("Expected 1 external call for a shared entity, got %d", calls)
	}
	if stats.Entities != 1 {
		t.Errorf("Expected 1 entity group, got %d", stats.Entities)
	}
	for i, item := range items {
		meta, ok := item.Metadata.Resolved()
		if !ok || meta.Stars != 77 {
			t.Errorf("Expected item %d to share the resolved record, got %+v", i, item.Metadata)
		}
	}
}

func TestEnricherRateLimitRetrySameBatch(t *testing.T) {
	calls := 0
	var slept []time.Duration

	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{
			"data": {
				"rateLimit": {"remaining": 4500},
				"r0": {"stargazerCount": 5, "pushedAt": "2025-06-01T00:00:00Z"}
			}
		}`))
	}, 10)
	defer closeServer()

	enricher.sleep = func(ctx context.Context, d time.Duration) { slept = append(slept, d) }
	enricher.jitter = func() float64 { return 0.5 }

	items := []*catalog.Item{{Name: "tool", URL: "https://github.com/a/tool"}}
	stats := enricher.Run(context.Background(), items)

	if calls != 2 {
		t.Fatalf("Expected the same batch retried once, got %d calls", calls)
	}
	if stats.Resolved != 1 {
		t.Errorf("Expected the retried batch to resolve, got %+v", stats)
	}

	// First sleep is the rate-limit backoff: exponential base plus jitter.
	if len(slept) != 1 {
		t.Fatalf("Expected exactly 1 backoff sleep, got %v", slept)
	}
	expected := enricher.minDelay*2 + time.Duration(0.5*float64(enricher.minDelay))
	if slept[0] != expected {
		t.Errorf("Expected backoff %v, got %v", expected, slept[0])
	}

	// Cadence resumed: success adaptation runs from the pre-backoff delay.
	if enricher.delay != enricher.minDelay {
		t.Errorf("Expected cadence back at the floor, got %v", enricher.delay)
	}
}

func TestEnricherAbandonsBatchAfterRetryCeiling(t *testing.T) {
	calls := 0
	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}, 10)
	defer closeServer()

	items := []*catalog.Item{{Name: "tool", URL: "https://github.com/a/tool"}}
	stats := enricher.Run(context.Background(), items)

	if calls != enricher.maxAttempts {
		t.Errorf("Expected %d attempts before abandoning, got %d", enricher.maxAttempts, calls)
	}
	if stats.Abandoned != 1 {
		t.Errorf("Expected 1 abandoned item, got %+v", stats)
	}
	if items[0].Metadata != nil {
		t.Error("Abandoned item must remain untouched so it stays a candidate")
	}
}

func TestEnricherQuotaLowWaterSlowsCadence(t *testing.T) {
	enricher, closeServer := newTestEnricher(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"data": {
				"rateLimit": {"remaining": 50},
				"r0": {"stargazerCount": 5, "pushedAt": "2025-06-01T00:00:00Z"}
			}
		}`))
	}, 10)
	defer closeServer()

	before := enricher.delay
	items := []*catalog.Item{{Name: "tool", URL: "https://github.com/a/tool"}}
	enricher.Run(context.Background(), items)

	if enricher.delay != before*2 {
		t.Errorf("Expected delay to double below the low-water mark, got %v (was %v)", enricher.delay, before)
	}
}

func TestEnricherWithoutTokenIsNoOp(t *testing.T) {
	client := NewClient(http.DefaultClient, "", "", "Test Agent", time.Second)
	enricher := NewEnricher(client, 10)

	items := []*catalog.Item{{Name: "tool", URL: "https://github.com/a/tool"}}
	stats := enricher.Run(context.Background(), items)

	if items[0].Metadata != nil || items[0].LastEnriched != nil {
		t.Error("No-op passthrough must leave items unmodified")
	}
	if stats.Batches != 0 {
		t.Errorf("Expected no batches without a token, got %d", stats.Batches)
	}
}
