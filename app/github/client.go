package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const DefaultEndpoint = "https://api.github.com/graphql"

// ErrRateLimited marks a provider rejection caused by quota exhaustion. The
// enrichment client escalates its backoff and retries the same batch when it
// sees this error.
var ErrRateLimited = errors.New("rate limited by GitHub API")

// Owner and name must match this pattern before being embedded in a composed
// query; anything else is excluded pre-send and treated as unresolved.
var identRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// RepoKey identifies one GitHub repository.
type RepoKey struct {
	Owner string
	Name  string
}

func (k RepoKey) String() string {
	return k.Owner + "/" + k.Name
}

// Valid reports whether both parts are safe to embed in a query.
func (k RepoKey) Valid() bool {
	return identRe.MatchString(k.Owner) && identRe.MatchString(k.Name)
}

// ParseRepoID splits an "owner/name" source id into a key.
func ParseRepoID(id string) (RepoKey, bool) {
	owner, name, ok := strings.Cut(id, "/")
	if !ok || owner == "" || name == "" {
		return RepoKey{}, false
	}
	return RepoKey{Owner: owner, Name: name}, true
}

// ParseRepoURL extracts the repository key from a canonical item URL.
// Non-GitHub URLs and deep links below the repository root do not resolve to
// an enrichable entity.
func ParseRepoURL(url string) (RepoKey, bool) {
	rest, found := strings.CutPrefix(url, "https://github.com/")
	if !found {
		rest, found = strings.CutPrefix(url, "http://github.com/")
	}
	if !found {
		return RepoKey{}, false
	}

	parts := strings.Split(strings.TrimSuffix(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return RepoKey{}, false
	}

	return RepoKey{Owner: parts[0], Name: strings.TrimSuffix(parts[1], ".git")}, true
}

// RepoData is the per-repository payload shared by freshness probes and
// metadata enrichment.
type RepoData struct {
	StargazerCount  int `json:"stargazerCount"`
	PrimaryLanguage *struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	PushedAt *time.Time `json:"pushedAt"`
}

// QueryResult is the decoded outcome of one combined repository query.
// Every alias that was sent falls into exactly one of three states: present
// in Repos with a payload, present in NotFound (explicit provider error), or
// null with no accompanying error - the ambiguous case callers must leave
// untouched.
type QueryResult struct {
	Repos    map[string]*RepoData
	NotFound map[string]bool

	// Remaining is the provider's remaining-quota signal, -1 when the
	// response did not carry one.
	Remaining int
}

// Client is the shared GraphQL transport for the GitHub API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	userAgent  string
	timeout    time.Duration
}

func NewClient(httpClient *http.Client, endpoint, token, userAgent string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		token:      token,
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// HasToken reports whether authenticated calls are possible at all.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// BuildRepoQuery composes one combined query over the given keys. The alias
// of keys[i] is exactly "r<i>", so response slots always map back through the
// slice that was actually sent - callers must pass the post-validation set.
func BuildRepoQuery(keys []RepoKey, fields string) string {
	var b strings.Builder
	b.WriteString("query {\n")
	b.WriteString("  rateLimit { remaining }\n")
	for i, key := range keys {
		fmt.Fprintf(&b, "  r%d: repository(owner: %q, name: %q) { %s }\n", i, key.Owner, key.Name, fields)
	}
	b.WriteString("}")
	return b.String()
}

// Alias returns the query alias for slot i of the sent set.
func Alias(i int) string {
	return fmt.Sprintf("r%d", i)
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

type graphQLEnvelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphQLError             `json:"errors"`
}

// Query posts one combined repository query and decodes the envelope into a
// three-way per-alias result. Rate-limit rejections surface as ErrRateLimited.
func (c *Client) Query(ctx context.Context, query string) (*QueryResult, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &QueryResult{
		Repos:     make(map[string]*RepoData),
		NotFound:  make(map[string]bool),
		Remaining: -1,
	}

	for _, gqlErr := range envelope.Errors {
		if gqlErr.Type == "RATE_LIMITED" {
			return nil, fmt.Errorf("%s: %w", gqlErr.Message, ErrRateLimited)
		}
		if gqlErr.Type == "NOT_FOUND" && len(gqlErr.Path) > 0 {
			if alias, ok := gqlErr.Path[0].(string); ok {
				result.NotFound[alias] = true
			}
		}
	}

	for alias, raw := range envelope.Data {
		if alias == "rateLimit" {
			var limit struct {
				Remaining int `json:"remaining"`
			}
			if err := json.Unmarshal(raw, &limit); err == nil {
				result.Remaining = limit.Remaining
			}
			continue
		}

		if string(raw) == "null" {
			// A null slot without an explicit error stays out of both maps:
			// the ambiguous case is deferred, never classified.
			continue
		}

		var repo RepoData
		if err := json.Unmarshal(raw, &repo); err != nil {
			return nil, fmt.Errorf("failed to decode repository %s: %w", alias, err)
		}
		result.Repos[alias] = &repo
	}

	return result, nil
}
