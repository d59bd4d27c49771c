package squad

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"squadutils/internal/logging"
)

// DefaultURL is the public Linaro SQUAD instance.
const DefaultURL = "https://qa-reports.linaro.org"

// Client is a read-only client for the SQUAD API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	limiter    *rate.Limiter
}

// New creates a new Client for the given SQUAD instance.
// A non-empty token is sent as "Authorization: Token <token>" on every request.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("squad: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
		limiter:    cfg.limiter,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithRateLimit paces requests to at most perSecond, with the given burst.
// A zero perSecond disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *clientConfig) error {
		if perSecond < 0 || burst < 0 {
			return fmt.Errorf("squad: invalid rate limit %v/%d", perSecond, burst)
		}
		if perSecond == 0 {
			cfg.limiter = nil
			return nil
		}
		if burst == 0 {
			burst = 1
		}
		cfg.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// BaseURL returns the instance URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// endpoint builds an absolute API URL for path (relative to /api/).
func (c *Client) endpoint(path string, params url.Values) string {
	u := fmt.Sprintf("%s/api/%s", c.baseURL, strings.TrimPrefix(path, "/"))
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// getJSON executes a GET request and decodes the JSON response into dst.
// If the response has an error status, it returns an *APIError.
func (c *Client) getJSON(ctx context.Context, u, operation string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", operation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")

	c.logger.InfoContext(ctx, "API request", "operation", operation, "url", u, "request_id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode, "request_id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		var errRS struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &errRS) == nil && errRS.Detail != "" {
			return newAPIError(operation, resp.StatusCode, errRS.Detail)
		}
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return newAPIError(operation, resp.StatusCode, msg)
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// page is the Django REST framework list envelope.
type page[T any] struct {
	Count    int    `json:"count"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Results  []T    `json:"results"`
}

// listAll follows "next" links until the listing is exhausted or limit
// results were collected. limit <= 0 means no limit.
func listAll[T any](ctx context.Context, c *Client, u, operation string, limit int) ([]T, error) {
	var all []T
	for u != "" {
		var p page[T]
		if err := c.getJSON(ctx, u, operation, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		u = p.Next
	}
	return all, nil
}

// first returns the single result of a lookup, or ErrNoSuchEntity.
func first[T any](ctx context.Context, c *Client, u, operation, what string) (*T, error) {
	items, err := listAll[T](ctx, c, u, operation, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s %s: %w", operation, what, ErrNoSuchEntity)
	}
	return &items[0], nil
}

// Group returns the group with the given slug.
func (c *Client) Group(ctx context.Context, slug string) (*Group, error) {
	u := c.endpoint("groups/", url.Values{"slug": {slug}})
	return first[Group](ctx, c, u, "get group", slug)
}

// Build returns a single build by id.
func (c *Client) Build(ctx context.Context, id int) (*Build, error) {
	var b Build
	if err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("builds/%d/", id), nil), "get build", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// BuildMetadata returns the metadata attached to a build.
func (c *Client) BuildMetadata(ctx context.Context, id int) (BuildMetadata, error) {
	var md BuildMetadata
	err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("builds/%d/metadata/", id), nil), "get build metadata", &md)
	return md, err
}

// TestRun returns a single test run by id.
func (c *Client) TestRun(ctx context.Context, id int) (*TestRun, error) {
	var r TestRun
	if err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("testruns/%d/", id), nil), "get testrun", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TestRunMetadata returns the metadata attached to a test run.
func (c *Client) TestRunMetadata(ctx context.Context, id int) (TestRunMetadata, error) {
	var md TestRunMetadata
	err := c.getJSON(ctx, c.endpoint(fmt.Sprintf("testruns/%d/metadata/", id), nil), "get testrun metadata", &md)
	return md, err
}

// TestRuns lists the test runs of a build, restricted to the given
// environments when envIDs is non-empty.
func (c *Client) TestRuns(ctx context.Context, buildID int, envIDs []int) ([]TestRun, error) {
	params := url.Values{"build": {itoa(buildID)}}
	if len(envIDs) > 0 {
		params.Set("environment__id__in", joinInts(envIDs))
	}
	return listAll[TestRun](ctx, c, c.endpoint("testruns/", params), "list testruns", 0)
}

// Tests lists the tests of a single test run matching filter.
func (c *Client) Tests(ctx context.Context, testRunID int, filter TestFilter) ([]Test, error) {
	params := filter.values()
	params.Set("test_run", itoa(testRunID))
	return listAll[Test](ctx, c, c.endpoint("tests/", params), "list tests", filter.Limit)
}

// TestsMatching lists tests across runs and builds matching filter.
func (c *Client) TestsMatching(ctx context.Context, filter TestFilter) ([]Test, error) {
	return listAll[Test](ctx, c, c.endpoint("tests/", filter.values()), "search tests", filter.Limit)
}

// BuildMetrics lists every metric recorded under the build's test runs,
// ordered by name.
func (c *Client) BuildMetrics(ctx context.Context, buildID int) ([]Metric, error) {
	params := url.Values{
		"test_run__build": {itoa(buildID)},
		"ordering":        {"name"},
		"fields":          {"id,name,short_name,result,test_run,suite"},
	}
	return listAll[Metric](ctx, c, c.endpoint("metrics/", params), "list metrics", 0)
}

// GroupSuites lists the suites with the given slugs in every project of
// the group.
func (c *Client) GroupSuites(ctx context.Context, groupSlug string, slugs ...string) ([]Suite, error) {
	if len(slugs) == 0 {
		return nil, fmt.Errorf("list group suites: at least one slug is required")
	}
	params := url.Values{
		"project__group__slug": {groupSlug},
		"slug__in":             {strings.Join(slugs, ",")},
	}
	return listAll[Suite](ctx, c, c.endpoint("suites/", params), "list group suites", 0)
}

// Projects lists the projects with the given ids, ordered by slug.
func (c *Client) Projects(ctx context.Context, ids []int) ([]Project, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{
		"id__in":   {joinInts(ids)},
		"ordering": {"slug"},
	}
	return listAll[Project](ctx, c, c.endpoint("projects/", params), "list projects", 0)
}

// ReadToken reads the first line of a token file and returns it trimmed.
func ReadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Split(string(data), "\n")[0]), nil
}
