// Package catalog provides per-namespace snapshots of existing indexes.
package catalog

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/indexscout/index-scout/internal/config"
	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/pkg/logger"
)

// ErrVerificationDisabled marks a catalog running without store access.
// Every shape is then reported unmatched and becomes a recommendation.
var ErrVerificationDisabled = stderrors.New("index verification disabled")

var errFetchThrottled = stderrors.New("index fetch rate exceeded")

// IndexKey is one component of a compound index specification.
type IndexKey struct {
	Field string

	// Order is 1 or -1 for orderable keys. Non-orderable specs (text,
	// hashed, geo) carry 0 and never satisfy ordering rules.
	Order int
}

// IndexDefinition is one existing index, as declared in the store.
type IndexDefinition struct {
	NS   string
	Name string
	Keys []IndexKey
}

// Fetcher retrieves the raw index list for a namespace from the store.
type Fetcher interface {
	FetchIndexes(ctx context.Context, ns string) ([]IndexDefinition, error)
}

// Catalog caches per-namespace index snapshots. A snapshot is replaced
// wholesale on refresh and never edited in place, so a matching decision
// always observes a complete, consistent list.
type Catalog struct {
	fetcher  Fetcher
	cache    *expirable.LRU[string, []IndexDefinition]
	limiter  *rate.Limiter
	disabled bool
	log      *logger.Logger
}

// New creates a catalog over a fetcher. RefreshSec bounds snapshot lifetime
// in watch mode; 0 caches for the whole run.
func New(fetcher Fetcher, cfg config.CatalogConfig, log *logger.Logger) *Catalog {
	if log == nil {
		log = logger.Default()
	}

	size := cfg.CacheSize
	if size < 1 {
		size = 256
	}
	perSec := cfg.FetchPerSec
	if perSec < 1 {
		perSec = 5
	}

	ttl := time.Duration(cfg.RefreshSec) * time.Second

	return &Catalog{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, []IndexDefinition](size, nil, ttl),
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		log:     log,
	}
}

// NewDisabled creates a catalog with verification turned off.
func NewDisabled() *Catalog {
	return &Catalog{disabled: true}
}

// Disabled reports whether verification is off.
func (c *Catalog) Disabled() bool {
	return c.disabled
}

// IndexesFor returns the index snapshot for a namespace, fetching and
// caching it on first use. Fetch failures surface as a per-namespace
// catalog-unavailable error; callers degrade that namespace to unmatched
// rather than aborting the run.
func (c *Catalog) IndexesFor(ctx context.Context, ns string) ([]IndexDefinition, error) {
	if c.disabled {
		return nil, ErrVerificationDisabled
	}

	if defs, ok := c.cache.Get(ns); ok {
		return defs, nil
	}

	if !c.limiter.Allow() {
		return nil, errors.CatalogUnavailable(ns, errFetchThrottled)
	}

	defs, err := c.fetcher.FetchIndexes(ctx, ns)
	if err != nil {
		c.log.WithNamespace(ns).WithError(err).Warn("index fetch failed")
		return nil, errors.CatalogUnavailable(ns, err)
	}

	c.cache.Add(ns, defs)
	return defs, nil
}
