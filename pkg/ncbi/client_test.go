package ncbi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/prisma-miner/internal/domain"
)

func testClient(t *testing.T, srv *httptest.Server, cfg domain.NCBIConfig) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg.BaseURL = srv.URL
	return NewClient(cfg,
		WithHTTPClient(srv.Client()),
		WithLogger(logger),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
}

// esearchServer serves count ids ("1".."count") in pages.
func esearchServer(t *testing.T, count int, seen *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/esearch.fcgi", r.URL.Path)
		q := r.URL.Query()
		*seen = append(*seen, q.Get("retstart")+"/"+q.Get("retmax"))

		start, _ := strconv.Atoi(q.Get("retstart"))
		n, _ := strconv.Atoi(q.Get("retmax"))
		var ids strings.Builder
		for i := start; i < min(start+n, count); i++ {
			fmt.Fprintf(&ids, "<Id>%d</Id>", i+1)
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8" ?>
<eSearchResult><Count>%d</Count><RetMax>%d</RetMax><RetStart>%d</RetStart><IdList>%s</IdList></eSearchResult>`,
			count, n, start, ids.String())
	}))
}

func TestSearchPagesThroughResults(t *testing.T) {
	var seen []string
	srv := esearchServer(t, 5, &seen)
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{BatchSize: 2})
	result, err := c.Search(context.Background(), "sra", "salt")
	require.NoError(t, err)

	assert.Equal(t, 5, result.Count)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, result.IDs)
	assert.Equal(t, []string{"0/0", "0/2", "2/2", "4/1"}, seen)
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	var seen []string
	srv := esearchServer(t, 50, &seen)
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{BatchSize: 4, MaxResults: 6})
	result, err := c.Search(context.Background(), "sra", "salt")
	require.NoError(t, err)

	assert.Equal(t, 50, result.Count)
	assert.Len(t, result.IDs, 6)
	assert.Equal(t, []string{"0/0", "0/4", "4/2"}, seen)
}

func TestSearchNoResults(t *testing.T) {
	var seen []string
	srv := esearchServer(t, 0, &seen)
	defer srv.Close()

	result, err := testClient(t, srv, domain.NCBIConfig{}).Search(context.Background(), "gds", "nothing")
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, result.IDs)
	assert.Len(t, seen, 1)
}

// failingPageServer serves five ids in pages and rejects the page at retstart 2.
func failingPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	var seen []string
	pages := esearchServer(t, 5, &seen)
	t.Cleanup(pages.Close)
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("retstart") == "2" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		pages.Config.Handler.ServeHTTP(w, r)
	}))
}

func TestSearchKeepsIDsWhenLaterPageFails(t *testing.T) {
	srv := failingPageServer(t)
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{BatchSize: 2})
	result, err := c.Search(context.Background(), "sra", "salt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page at 2")
	assert.Equal(t, 5, result.Count)
	assert.Equal(t, []string{"1", "2"}, result.IDs)
}

func TestSearchReportsEsearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<eSearchResult><ERROR>Invalid db name specified: nope</ERROR></eSearchResult>`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, domain.NCBIConfig{}).Search(context.Background(), "nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid db name")
}

func TestRequestsCarryCredentials(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		fmt.Fprint(w, `{"result":{"uids":[]}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{Email: "me@example.org", APIKey: "secret"})
	_, err := c.Summary(context.Background(), "bioproject", []string{"1", "2"})
	require.NoError(t, err)

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"me@example.org"}, q["email"])
	assert.Equal(t, []string{"secret"}, q["api_key"])
	assert.Equal(t, []string{DefaultTool}, q["tool"])
	assert.Equal(t, []string{"json"}, q["retmode"])
	assert.Equal(t, []string{"1,2"}, q["id"])
}

func TestRetriesOnThrottling(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"result":{"uids":[]}}`)
	}))
	defer srv.Close()

	var statuses []int
	c := testClient(t, srv, domain.NCBIConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})
	c.observe = func(endpoint, db string, status int, _ time.Duration) {
		statuses = append(statuses, status)
	}

	doc, err := c.Summary(context.Background(), "sra", []string{"1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"uids":[]}}`, string(doc))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{429, 429, 200}, statuses)
}

func TestRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{MaxRetries: 2, RetryBackoff: time.Millisecond})
	_, err := c.Summary(context.Background(), "sra", []string{"1"})

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := testClient(t, srv, domain.NCBIConfig{MaxRetries: 3, RetryBackoff: time.Millisecond})
	_, err := c.Summary(context.Background(), "sra", []string{"1"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSummaryRequiresIDs(t *testing.T) {
	c := NewClient(domain.NCBIConfig{})
	_, err := c.Summary(context.Background(), "sra", nil)
	assert.True(t, domain.IsValidationError(err))
}

func TestSummariesSkipsFailedBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Query().Get("id"), "3") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"result":{"uids":[%q]}}`, r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	logger, hook := test.NewNullLogger()
	c := NewClient(domain.NCBIConfig{BaseURL: srv.URL, BatchSize: 2},
		WithLogger(logger), WithLimiter(rate.NewLimiter(rate.Inf, 1)))

	docs, err := c.Summaries(context.Background(), "sra", []string{"1", "2", "3", "4", "5"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, string(docs[0]), "1,2")
	assert.Contains(t, string(docs[1]), `"5"`)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, 2, hook.LastEntry().Data["batch"])
}

func TestCancelledContextStopsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"uids":[]}}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs, err := testClient(t, srv, domain.NCBIConfig{}).Summaries(ctx, "sra", []string{"1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, docs)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(domain.NCBIConfig{BaseURL: "http://localhost:9999/eutils"})
	assert.Equal(t, "http://localhost:9999/eutils/", c.baseURL)
	assert.Equal(t, defaultBatchSize, c.BatchSize())
	assert.Equal(t, defaultMaxResults, c.maxResults)
	assert.Equal(t, rate.Limit(3), c.limiter.Limit())

	keyed := NewClient(domain.NCBIConfig{APIKey: "k"})
	assert.Equal(t, rate.Limit(10), keyed.limiter.Limit())
	assert.Equal(t, DefaultBaseURL, keyed.baseURL)
}
