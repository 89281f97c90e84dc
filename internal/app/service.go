// Package service wires feature extraction, identification, anomaly
// scoring, geolocation and pattern analysis into the operations the HTTP
// API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/footprint/internal/adapters/mq/publisher"
	eventqueue "github.com/okian/footprint/internal/adapters/mq/queue"
	workerpool "github.com/okian/footprint/internal/adapters/mq/worker"
	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/config"
	"github.com/okian/footprint/internal/domain/anomaly"
	"github.com/okian/footprint/internal/domain/dedupe"
	"github.com/okian/footprint/internal/domain/features"
	"github.com/okian/footprint/internal/domain/fingerprint"
	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/internal/domain/patterns"
	"github.com/okian/footprint/internal/domain/registry"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"

	"golang.org/x/sync/singleflight"
)

const shutdownTimeout = 30 * time.Second

// VisitRequest is one visit as handed over by the API layer.
type VisitRequest struct {
	// EventID makes client retries idempotent. Empty ids are never deduplicated.
	EventID string
	// EventIDGenerated marks an EventID minted by the server. It is carried
	// to the outbox but never deduplicated, since no client can retry it.
	EventIDGenerated bool
	// VisitorID skips fingerprinting when the client already holds an id.
	VisitorID   string
	ClientIP    string
	Timezone    string
	Raw         model.RawObservation
	Preferences *model.Preferences
	// IncrementVisit defaults to true when nil.
	IncrementVisit *bool
}

// VisitResult is the outcome of ProcessVisit.
type VisitResult struct {
	VisitorID string               `json:"visitorId"`
	Visitor   model.VisitorRecord  `json:"visitor"`
	Anomaly   model.AnomalyScore   `json:"anomaly"`
	Patterns  model.PatternSummary `json:"patterns"`
	Duplicate bool                 `json:"duplicate"`
}

// Service implements the API dependencies for visitor identification.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	extractor   *features.Extractor
	registry    *registry.Registry
	fingerprint *fingerprint.Model
	detector    *anomaly.Detector
	analyzer    *patterns.Analyzer
	resolver    *geo.Resolver
	store       repository.Store
	deduper     dedupe.Deduper
	eventQueue  *eventqueue.InMemoryQueue
	workerPool  *workerpool.Pool
	publisher   publisher.Publisher

	// writes holds one in-flight ingest per event id.
	writes singleflight.Group

	// Injected before construction completes
	providers []geo.Provider
	snapshots registry.SnapshotStore

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc

	now    func() time.Time
	logger logger.Logger
}

// New builds a Service from cfg. Components not supplied through options
// fall back to in-process implementations: memory store, no geo providers
// and a publisher that only logs.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.publisher == nil {
		s.publisher = publisher.NewNoopPublisher()
	}

	loc := cfg.Location()
	extractor, err := features.New(cfg.VectorSize,
		features.WithGeoFeature(cfg.IncludeGeoFeature),
		features.WithLocation(loc),
	)
	if err != nil {
		return nil, fmt.Errorf("feature extractor: %w", err)
	}
	s.extractor = extractor

	s.registry = registry.New(cfg.VectorSize,
		registry.WithSeed(cfg.ModelSeed),
		registry.WithSnapshotStore(s.snapshots),
		registry.WithLogger(s.logger.Named("registry")),
	)
	s.fingerprint = fingerprint.New(s.registry)
	s.detector = anomaly.New(s.registry,
		anomaly.WithThreshold(cfg.AnomalyThreshold),
		anomaly.WithLogger(s.logger.Named("anomaly")),
	)
	s.analyzer = patterns.New(
		patterns.WithLocation(loc),
		patterns.WithPeakMultipliers(cfg.PeakStdMultiplier, cfg.PeakMeanMultiplier),
		patterns.WithSessionTimeout(config.Millis(cfg.SessionTimeoutMS), config.Millis(cfg.MinSessionMS)),
		patterns.WithSpikeMultiplier(cfg.SpikeMultiplier),
		patterns.WithHighFrequency(cfg.HighFrequencyVisits, config.Millis(cfg.HighFrequencyWindowMS), cfg.HighFrequencyScore),
	)
	s.resolver = geo.NewResolver(
		geo.NewCache(geo.WithTTL(config.Millis(cfg.GeoCacheTTLMS))),
		s.providers,
		geo.WithProviderTimeout(config.Millis(cfg.GeoProviderTimeoutMS)),
		geo.WithLogger(s.logger.Named("geo")),
	)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(cfg.DedupeSize),
		dedupe.WithTTL(config.Millis(cfg.DedupeTTLMS)),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.EventQueueSize))
	s.workerPool = workerpool.NewPool(cfg.WorkerCount, s.eventQueue, s.publisher,
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	return s, nil
}

// Start initializes the models and starts background components. Model
// initialization errors are configuration errors and must abort startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting footprint service...")

	if err := s.registry.Init(ctx); err != nil {
		return fmt.Errorf("initialize models: %w", err)
	}

	// Background work outlives the caller's context and ends on Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.resolver.Cache().Run(runCtx)
	s.workerPool.Start(runCtx)
	metrics.UpdateWorkerCount(s.workerPool.Size())

	s.started = true
	s.logger.Info(ctx, "footprint service started",
		logger.Int("vector_size", s.extractor.Size()),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queue_capacity", s.eventQueue.Capacity()),
		logger.Int("geo_providers", len(s.providers)),
		logger.String("store", s.cfg.StoreBackend),
	)
	return nil
}

// Stop drains the outbox and releases every component. It also releases
// the backends of a service whose Start failed. A stopped service cannot
// be restarted.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping footprint service...")

	if s.started {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "outbox drain incomplete", logger.Error(err))
		}
		s.cancel()
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "error closing publisher", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "error closing store", logger.Error(err))
	}
	s.registry.Close()

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "footprint service stopped")
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.Millis(s.cfg.StoreTimeoutMS))
}

// ProcessVisit identifies, scores and records one visit, then summarizes
// the visitor population around it. Only fingerprint and store write
// failures are returned; geo, anomaly and history failures degrade.
func (s *Service) ProcessVisit(ctx context.Context, req VisitRequest) (VisitResult, error) {
	if !s.isStarted() {
		return VisitResult{}, ErrNotStarted
	}

	now := s.now()
	obs := model.NewVisitObservation(req.Raw, now)
	if obs.Country == model.DefaultCountry || obs.CountryCode == model.DefaultCountryCode {
		obs = obs.WithGeo(s.resolver.Resolve(ctx, geo.Request{ClientIP: req.ClientIP, Timezone: req.Timezone}))
	}

	vec := s.extractor.Extract(obs)

	visitorID := strings.TrimSpace(req.VisitorID)
	if visitorID == "" {
		id, err := s.fingerprint.Predict(ctx, vec)
		if err != nil {
			metrics.RecordErrorByComponent("service", "fingerprint")
			return VisitResult{}, fmt.Errorf("%w: %w", ErrFingerprint, err)
		}
		visitorID = id
	}

	score := s.detector.Score(ctx, vec)

	if req.EventID == "" || req.EventIDGenerated {
		return s.ingest(ctx, visitorID, obs, req, score, now)
	}

	// Concurrent deliveries of one event share the first caller's write.
	leader := false
	v, err, _ := s.writes.Do(req.EventID, func() (interface{}, error) {
		leader = true
		if s.deduper.SeenAndRecord(ctx, req.EventID) {
			if res, ok := s.duplicate(ctx, visitorID, req.EventID, score); ok {
				return res, nil
			}
		}
		res, err := s.ingest(ctx, visitorID, obs, req, score, now)
		if err != nil {
			s.deduper.Unrecord(ctx, req.EventID)
		}
		return res, err
	})
	if err != nil {
		return VisitResult{}, err
	}
	res, _ := v.(VisitResult)
	if !leader && !res.Duplicate {
		metrics.RecordVisitDuplicate()
		res.Anomaly = score
		res.Patterns = model.EmptyPatternSummary()
		res.Duplicate = true
	}
	return res, nil
}

// ingest records one visit and summarizes the population around it.
func (s *Service) ingest(ctx context.Context, visitorID string, obs model.VisitObservation, req VisitRequest, score model.AnomalyScore, now time.Time) (VisitResult, error) {
	rec, err := s.record(ctx, visitorID, obs, req)
	if err != nil {
		metrics.RecordErrorByComponent("service", "store_write")
		return VisitResult{}, fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}

	summary := s.analyzer.Analyze(rec, s.history(ctx), now)
	if score.IsAnomaly {
		summary.Anomalies = append([]model.AnomalyScore{score}, summary.Anomalies...)
	}

	s.enqueue(ctx, model.ScoredVisit{
		EventID:     req.EventID,
		VisitorID:   visitorID,
		Browser:     rec.Browser,
		CountryCode: rec.CountryCode,
		VisitCount:  rec.VisitCount,
		Anomaly:     score,
		TimestampMs: obs.Timestamp.UnixMilli(),
	})
	metrics.RecordVisitProcessed()

	return VisitResult{
		VisitorID: visitorID,
		Visitor:   rec,
		Anomaly:   score,
		Patterns:  summary,
	}, nil
}

// duplicate answers a retried event from the stored record without
// writing. It reports false when nothing is stored yet.
func (s *Service) duplicate(ctx context.Context, visitorID, eventID string, score model.AnomalyScore) (VisitResult, bool) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.FindByVisitorID(sctx, visitorID)
	if err != nil {
		return VisitResult{}, false
	}
	metrics.RecordVisitDuplicate()
	s.logger.Debug(ctx, "duplicate visit event",
		logger.String("event_id", eventID),
		logger.String("visitor_id", visitorID),
	)
	return VisitResult{
		VisitorID: visitorID,
		Visitor:   rec,
		Anomaly:   score,
		Patterns:  model.EmptyPatternSummary(),
		Duplicate: true,
	}, true
}

func (s *Service) record(ctx context.Context, visitorID string, obs model.VisitObservation, req VisitRequest) (model.VisitorRecord, error) {
	u := model.VisitorUpdate{
		At:             obs.Timestamp,
		Preferences:    req.Preferences,
		IncrementVisit: req.IncrementVisit == nil || *req.IncrementVisit,
	}
	// Defaults must not overwrite what an earlier visit already learned.
	if obs.Browser != model.BrowserUnknown {
		u.Browser = obs.Browser
	}
	if obs.Country != model.DefaultCountry {
		u.Country = obs.Country
	}
	if obs.CountryCode != model.DefaultCountryCode {
		u.CountryCode = obs.CountryCode
	}
	if _, _, ok := model.ParseResolution(req.Raw.ScreenResolution); ok {
		u.ScreenResolution = obs.ScreenResolution
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.UpsertVisitor(sctx, visitorID, u)
}

// history returns recent visitors for pattern analysis, or nothing when
// the store cannot answer in time.
func (s *Service) history(ctx context.Context) []model.VisitorRecord {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	records, err := s.store.ListRecentVisitors(sctx, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Warn(ctx, "visitor history unavailable", logger.Error(err))
		metrics.RecordErrorByComponent("service", "history")
		return nil
	}
	return records
}

func (s *Service) enqueue(ctx context.Context, v model.ScoredVisit) {
	if !s.eventQueue.Enqueue(ctx, v) {
		s.logger.Warn(ctx, "scored visit dropped",
			logger.String("visitor_id", v.VisitorID),
			logger.Int("queue_length", s.eventQueue.Len(ctx)),
		)
	}
}

// Visitor returns the stored record for id.
func (s *Service) Visitor(ctx context.Context, id string) (model.VisitorRecord, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.FindByVisitorID(sctx, id)
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
		return model.VisitorRecord{}, fmt.Errorf("%w: %s", ErrVisitorNotFound, id)
	case err != nil:
		return model.VisitorRecord{}, err
	}
	return rec, nil
}

// VisitorInsight describes one visitor's behavior against the current
// population and re-scores the stored observation. Records keep no user
// agent, so the re-score sees a neutral agent block and can differ from
// the score returned when the visit was ingested. Visitors whose stored
// fields match get the same insight score.
func (s *Service) VisitorInsight(ctx context.Context, id string) (model.VisitorInsight, error) {
	rec, err := s.Visitor(ctx, id)
	if err != nil {
		return model.VisitorInsight{}, err
	}

	now := s.now()
	summary := s.analyzer.Analyze(rec, s.history(ctx), now)

	obs := model.NewVisitObservation(model.RawObservation{
		ScreenResolution: rec.ScreenResolution,
		Browser:          string(rec.Browser),
		Country:          rec.Country,
		CountryCode:      rec.CountryCode,
		TimestampMs:      rec.TimestampMs,
	}, now)
	score := s.detector.Score(ctx, s.extractor.Extract(obs))

	return model.VisitorInsight{
		VisitorID:        rec.VisitorID,
		BehaviorPatterns: s.analyzer.Describe(rec, summary),
		AnomalyScore: model.InsightScore{
			IsAnomaly:  score.IsAnomaly,
			Confidence: score.Confidence(),
		},
	}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"vectorSize":    s.extractor.Size(),
		"storeBackend":  s.cfg.StoreBackend,
		"workerCount":   s.workerPool.Size(),
		"queueCapacity": s.eventQueue.Capacity(),
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["published"] = s.workerPool.Processed()
		stats["dedupeSize"] = s.deduper.Size()
		stats["geoCacheSize"] = s.resolver.Cache().Len()
		stats["modelGeneration"] = s.registry.Generation()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateGeoCacheSize(s.resolver.Cache().Len())
	}

	return stats
}
