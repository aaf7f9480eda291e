package ncbi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-miner/internal/domain"
)

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var transitions []string
	rc := NewResilientClient(testClient(t, srv, domain.NCBIConfig{}),
		domain.CircuitBreakerConfig{MinRequests: 3, FailureRatio: 0.5, Timeout: time.Minute},
		WithStateObserver(func(db string, from, to gobreaker.State) {
			transitions = append(transitions, db+":"+to.String())
		}),
	)

	for i := 0; i < 3; i++ {
		_, err := rc.Search(context.Background(), "sra", "salt")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, gobreaker.StateOpen, rc.State("sra"))
	assert.Equal(t, []string{"sra:open"}, transitions)

	_, err := rc.Search(context.Background(), "sra", "salt")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())

	assert.Equal(t, gobreaker.StateClosed, rc.State("gds"), "breakers are per database")
}

func TestResilientSearchPassesPartialIDs(t *testing.T) {
	srv := failingPageServer(t)
	defer srv.Close()

	rc := NewResilientClient(testClient(t, srv, domain.NCBIConfig{BatchSize: 2}), domain.CircuitBreakerConfig{})
	result, err := rc.Search(context.Background(), "sra", "salt")
	require.Error(t, err)
	assert.Equal(t, []string{"1", "2"}, result.IDs)
}

func TestValidationErrorsDoNotTrip(t *testing.T) {
	rc := NewResilientClient(NewClient(domain.NCBIConfig{}),
		domain.CircuitBreakerConfig{MinRequests: 1, FailureRatio: 0.1})

	for i := 0; i < 5; i++ {
		_, err := rc.Summary(context.Background(), "sra", nil)
		assert.True(t, domain.IsValidationError(err))
	}
	assert.Equal(t, gobreaker.StateClosed, rc.State("sra"))
}

func TestSummaryUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"result":{"uids":[%q]}}`, r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	cache := NewMemoryCache(8, time.Hour)
	rc := NewResilientClient(testClient(t, srv, domain.NCBIConfig{}), domain.CircuitBreakerConfig{}, WithCache(cache))

	first, err := rc.Summary(context.Background(), "sra", []string{"2", "1"})
	require.NoError(t, err)
	second, err := rc.Summary(context.Background(), "sra", []string{"1", "2"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Len())

	_, err = rc.Summary(context.Background(), "gds", []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResilientSummariesBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":{"uids":[%q]}}`, r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	rc := NewResilientClient(testClient(t, srv, domain.NCBIConfig{BatchSize: 2}), domain.CircuitBreakerConfig{})
	docs, err := rc.Summaries(context.Background(), "pubmed", []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.JSONEq(t, `{"result":{"uids":["3"]}}`, string(docs[1]))
}
