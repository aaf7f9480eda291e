package ncbi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/prisma-miner/internal/domain"
)

// ErrCircuitOpen is returned while a database's breaker rejects requests.
var ErrCircuitOpen = errors.New("ncbi circuit breaker open")

// StateObserver is notified when a database breaker changes state.
type StateObserver func(db string, from, to gobreaker.State)

// ResilientClient wraps Client with one circuit breaker per database and an
// optional esummary cache.
type ResilientClient struct {
	client   *Client
	cache    SummaryCache
	settings domain.CircuitBreakerConfig
	logger   *logrus.Logger
	onState  StateObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// ResilientOption configures a ResilientClient.
type ResilientOption func(*ResilientClient)

// WithCache enables esummary caching. A nil cache disables it.
func WithCache(cache SummaryCache) ResilientOption {
	return func(r *ResilientClient) { r.cache = cache }
}

func WithStateObserver(fn StateObserver) ResilientOption {
	return func(r *ResilientClient) { r.onState = fn }
}

// NewResilientClient wraps client. Zero breaker settings take defaults.
func NewResilientClient(client *Client, cfg domain.CircuitBreakerConfig, opts ...ResilientOption) *ResilientClient {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 3
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}

	r := &ResilientClient{
		client:   client,
		settings: cfg,
		logger:   client.logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ResilientClient) breaker(db string) *gobreaker.CircuitBreaker {
	db = strings.ToLower(db)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[db]; ok {
		return cb
	}
	cfg := r.settings
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        db,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			r.logger.WithFields(logrus.Fields{
				"db":   name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("circuit breaker state changed")
			if r.onState != nil {
				r.onState(name, from, to)
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsValidationError(err) || errors.Is(err, context.Canceled)
		},
	})
	r.breakers[db] = cb
	return cb
}

// State returns the breaker state for db.
func (r *ResilientClient) State(db string) gobreaker.State {
	return r.breaker(db).State()
}

func (r *ResilientClient) execute(db string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := r.breaker(db).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, db)
	}
	return result, err
}

// Search runs Client.Search through the database breaker. Partial ids from
// a failed later page are passed through with the error.
func (r *ResilientClient) Search(ctx context.Context, db, term string) (SearchResult, error) {
	result, err := r.execute(db, func() (interface{}, error) {
		return r.client.Search(ctx, db, term)
	})
	found, _ := result.(SearchResult)
	return found, err
}

// Summary fetches one batch, consulting the cache first.
func (r *ResilientClient) Summary(ctx context.Context, db string, ids []string) ([]byte, error) {
	key := SummaryKey(db, ids)
	if r.cache != nil {
		if doc, found, err := r.cache.Get(ctx, key); err == nil && found {
			return doc, nil
		} else if err != nil {
			r.logger.WithError(err).WithField("db", db).Warn("esummary cache read failed")
		}
	}

	result, err := r.execute(db, func() (interface{}, error) {
		return r.client.Summary(ctx, db, ids)
	})
	if err != nil {
		return nil, err
	}
	doc := result.([]byte)

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, doc); err != nil {
			r.logger.WithError(err).WithField("db", db).Warn("esummary cache write failed")
		}
	}
	return doc, nil
}

// Summaries fetches all ids in batches; failed batches are logged and
// skipped.
func (r *ResilientClient) Summaries(ctx context.Context, db string, ids []string) ([][]byte, error) {
	return fetchBatches(ctx, r.logger, db, ids, r.client.batchSize, r.Summary)
}
