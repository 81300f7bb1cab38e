package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/awesome-comb/app/registry"
)

const defaultBaseURL = "https://raw.githubusercontent.com"

// Fallback order: the symbolic default branch first, then the two common
// default-branch names, crossed with the README spellings seen in the wild.
var (
	branches  = []string{"HEAD", "main", "master"}
	filenames = []string{"README.md", "readme.md", "README.markdown", "readme.markdown"}
)

// Result is the outcome of fetching one source's document. Err is set when
// every (branch, filename) combination was exhausted; that is a per-source
// failure, never a pipeline abort.
type Result struct {
	Source registry.Source
	Data   []byte
	Err    error
}

// Fetcher retrieves raw documents for stale sources with a fixed worker
// width, so a large stale set never fans out into unbounded parallel
// requests.
type Fetcher struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	workerCount int
	timeout     time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, workerCount int, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient:  httpClient,
		baseURL:     defaultBaseURL,
		userAgent:   userAgent,
		workerCount: workerCount,
		timeout:     timeout,
	}
}

// Run fetches every source's document and returns one result per source id.
func (f *Fetcher) Run(ctx context.Context, sources []registry.Source) map[string]Result {
	results := make(map[string]Result, len(sources))
	if len(sources) == 0 {
		return results
	}

	jobs := make(chan registry.Source)
	resultCh := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < f.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for source := range jobs {
				resultCh <- f.fetchSource(ctx, source)
			}
		}()
	}

	go func() {
		for _, source := range sources {
			jobs <- source
		}
		close(jobs)
		wg.Wait()
		close(resultCh)
	}()

	for result := range resultCh {
		results[result.Source.ID] = result
	}

	return results
}

// fetchSource walks the ordered (branch, filename) combinations; the first
// success wins. A timeout or network error counts as a failed attempt and
// falls through to the next combination.
func (f *Fetcher) fetchSource(ctx context.Context, source registry.Source) Result {
	var lastErr error

	for _, branch := range branches {
		for _, filename := range filenames {
			url := fmt.Sprintf("%s/%s/%s/%s", f.baseURL, source.ID, branch, filename)

			data, err := f.fetchURL(ctx, url)
			if err != nil {
				lastErr = err
				continue
			}

			slog.Debug("Document fetched", "source", source.ID, "branch", branch, "file", filename, "bytes", len(data))
			return Result{Source: source, Data: data}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no document found")
	}
	return Result{Source: source, Err: fmt.Errorf("all fetch attempts failed for %s: %w", source.ID, lastErr)}
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
