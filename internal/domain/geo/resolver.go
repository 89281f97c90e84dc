package geo

import (
	"context"
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 5 * time.Second

// Provider looks up the location of an address over the network.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (model.GeoResponse, error)
}

// Request carries what is known about the client.
type Request struct {
	ClientIP string
	Timezone string
}

// Resolver answers location queries. Resolve never fails; callers get the
// Unknown location when nothing else works.
type Resolver struct {
	cache     *Cache
	providers []Provider
	timeout   time.Duration
	group     singleflight.Group
	logger    logger.Logger
}

// NewResolver creates a resolver over cache and the ordered providers.
func NewResolver(cache *Cache, providers []Provider, opts ...Option) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	r := &Resolver{
		cache:     cache,
		providers: providers,
		timeout:   DefaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("geo")
	}
	return r
}

// Cache returns the backing cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve tries the cache, the timezone table and then each provider in
// order. The first success wins and is written through to the cache.
func (r *Resolver) Resolve(ctx context.Context, req Request) model.GeoResponse {
	ip := strings.TrimSpace(req.ClientIP)

	if ip != "" {
		if g, ok := r.cache.Get(ip); ok {
			metrics.RecordGeoLookup(metrics.GeoSourceCache)
			return g
		}
	}

	if g, ok := LookupTimezone(req.Timezone); ok {
		r.cache.Put(ip, g)
		metrics.RecordGeoLookup(metrics.GeoSourceTimezone)
		return g
	}

	if ip != "" && len(r.providers) > 0 {
		v, _, _ := r.group.Do(ip, func() (interface{}, error) {
			g, ok := r.lookup(ctx, ip)
			if !ok {
				return nil, nil
			}
			r.cache.Put(ip, g)
			return g, nil
		})
		if g, ok := v.(model.GeoResponse); ok {
			metrics.RecordGeoLookup(metrics.GeoSourceProvider)
			return g
		}
	}

	metrics.RecordGeoLookup(metrics.GeoSourceDefault)
	return model.UnknownLocation()
}

func (r *Resolver) lookup(ctx context.Context, ip string) (model.GeoResponse, bool) {
	for _, p := range r.providers {
		g, err := r.call(ctx, p, ip)
		if err != nil {
			metrics.RecordGeoProviderFailure(p.Name())
			r.logger.Debug(ctx, "geo provider failed",
				logger.String("provider", p.Name()),
				logger.String("ip", ip),
				logger.Error(err))
			continue
		}
		if g.Country == "" {
			metrics.RecordGeoProviderFailure(p.Name())
			continue
		}
		return g, true
	}
	r.logger.Warn(ctx, "all geo providers failed", logger.String("ip", ip))
	return model.GeoResponse{}, false
}

func (r *Resolver) call(ctx context.Context, p Provider, ip string) (model.GeoResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RecordGeoProviderLatency(p.Name(), float64(time.Since(start).Microseconds())/1000)
	}()

	type result struct {
		geo model.GeoResponse
		err error
	}
	done := make(chan result, 1)
	go func() {
		g, err := p.Lookup(ctx, ip)
		done <- result{g, err}
	}()

	select {
	case res := <-done:
		return res.geo, res.err
	case <-ctx.Done():
		return model.GeoResponse{}, ctx.Err()
	}
}
