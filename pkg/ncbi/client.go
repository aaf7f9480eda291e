// Package ncbi is a small client for the NCBI E-utilities esearch and
// esummary endpoints.
package ncbi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/prisma-miner/internal/domain"
)

const (
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	DefaultTool    = "prisma-miner"

	defaultBatchSize  = 500
	defaultMaxResults = 10000
)

// StatusError is returned when E-utilities answers with a non-200 status
// after retries are exhausted.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.Code)
}

// Retryable reports whether the status is worth retrying.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// RequestObserver is called after every HTTP round trip. status is 0 when
// the request failed before a response was read.
type RequestObserver func(endpoint, db string, status int, elapsed time.Duration)

// SearchResult is the outcome of a paged esearch.
type SearchResult struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

// Client issues rate-limited E-utilities requests.
type Client struct {
	baseURL    string
	apiKey     string
	email      string
	tool       string
	batchSize  int
	maxResults int
	maxRetries int
	backoff    time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	observe    RequestObserver
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithObserver(fn RequestObserver) Option {
	return func(c *Client) { c.observe = fn }
}

// WithLimiter replaces the token bucket derived from the configured rate.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient creates a client from NCBI configuration. Zero values fall back
// to the E-utilities defaults.
func NewClient(cfg domain.NCBIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		email:      cfg.Email,
		tool:       cfg.Tool,
		batchSize:  cfg.BatchSize,
		maxResults: cfg.MaxResults,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.EffectiveRate()), 1),
		logger:     logrus.StandardLogger(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.baseURL, "/") {
		c.baseURL += "/"
	}
	if c.tool == "" {
		c.tool = DefaultTool
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.maxResults <= 0 {
		c.maxResults = defaultMaxResults
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BatchSize returns the number of ids requested per page or batch.
func (c *Client) BatchSize() int { return c.batchSize }

type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	RetMax  int      `xml:"RetMax"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
	Error string `xml:"ERROR"`
}

// Search runs esearch for term and pages through the matching ids, up to the
// configured maximum. If a later page fails it returns the ids retrieved so
// far together with the error.
func (c *Client) Search(ctx context.Context, db, term string) (SearchResult, error) {
	first, err := c.esearch(ctx, db, term, 0, 0)
	if err != nil {
		return SearchResult{}, err
	}
	result := SearchResult{Count: first.Count}
	total := min(first.Count, c.maxResults)

	for start := 0; start < total; start += c.batchSize {
		page, err := c.esearch(ctx, db, term, start, min(c.batchSize, total-start))
		if err != nil {
			return result, fmt.Errorf("page at %d: %w", start, err)
		}
		result.IDs = append(result.IDs, page.IDList.IDs...)
		if len(page.IDList.IDs) < min(c.batchSize, total-start) {
			break
		}
	}

	c.logger.WithFields(logrus.Fields{
		"db":        db,
		"count":     result.Count,
		"retrieved": len(result.IDs),
	}).Info("esearch complete")
	return result, nil
}

func (c *Client) esearch(ctx context.Context, db, term string, retstart, retmax int) (*eSearchResult, error) {
	params := url.Values{
		"db":       {db},
		"term":     {term},
		"retstart": {strconv.Itoa(retstart)},
		"retmax":   {strconv.Itoa(retmax)},
	}
	body, err := c.get(ctx, "esearch", db, params)
	if err != nil {
		return nil, err
	}

	var res eSearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse esearch response: %w", err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("esearch %s: %s", db, res.Error)
	}
	return &res, nil
}

// Summary fetches one esummary batch as raw JSON.
func (c *Client) Summary(ctx context.Context, db string, ids []string) ([]byte, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("ids", "at least one id is required", ids)
	}
	params := url.Values{
		"db":      {db},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"json"},
	}
	return c.get(ctx, "esummary", db, params)
}

// Summaries fetches esummary documents in batches. A failed batch is logged
// and skipped; cancellation stops the loop.
func (c *Client) Summaries(ctx context.Context, db string, ids []string) ([][]byte, error) {
	return fetchBatches(ctx, c.logger, db, ids, c.batchSize, c.Summary)
}

type summaryFunc func(ctx context.Context, db string, ids []string) ([]byte, error)

func fetchBatches(ctx context.Context, logger *logrus.Logger, db string, ids []string, size int, fetch summaryFunc) ([][]byte, error) {
	var docs [][]byte
	for i, batch := 0, 1; i < len(ids); i, batch = i+size, batch+1 {
		end := min(i+size, len(ids))
		doc, err := fetch(ctx, db, ids[i:end])
		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			logger.WithError(err).WithFields(logrus.Fields{
				"db":    db,
				"batch": batch,
			}).Warn("esummary batch failed, skipping")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// get performs one rate-limited GET with retries on 429, 5xx and transport
// errors.
func (c *Client) get(ctx context.Context, endpoint, db string, params url.Values) ([]byte, error) {
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}
	params.Set("tool", c.tool)
	fullURL := fmt.Sprintf("%s%s.fcgi?%s", c.baseURL, endpoint, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(attempt)
			c.logger.WithFields(logrus.Fields{
				"endpoint": endpoint,
				"db":       db,
				"attempt":  attempt,
				"wait":     wait,
			}).WithError(lastErr).Warn("retrying E-utilities request")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := c.do(ctx, endpoint, db, fullURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint, db, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	start := time.Now()
	status := 0
	defer func() {
		if c.observe != nil {
			c.observe(endpoint, db, status, time.Since(start))
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	return body, nil
}
