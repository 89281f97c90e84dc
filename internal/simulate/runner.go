package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/footprint/pkg/logger"
)

// ErrVerification is returned when the service answers inconsistently
// with the traffic that was sent.
var ErrVerification = errors.New("verification failed")

// Run executes a full simulation: health check, generation, submission,
// analytics fetch and verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Devices <= 0 || cfg.Visits <= 0 {
		return nil, errors.New("devices and visits must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting visit simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("devices", cfg.Devices),
		logger.Int("visits", cfg.Visits),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", int64(cfg.Seed)), //nolint:gosec // seed is logged, not used for arithmetic
		logger.Duration("timeout", cfg.Timeout))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg.Seed)
	devices := gen.Devices(cfg.Devices, cfg.BotShare)
	visits := gen.Visits(devices, cfg.Visits, time.Now(), cfg.RetryShare)
	stats.VisitsGenerated = len(visits)

	ids, err := submit(ctx, cfg, client, visits, stats)
	if err != nil {
		return nil, fmt.Errorf("visit submission failed: %w", err)
	}

	report, err := client.Analytics(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics retrieval failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats, report)

	if err := verify(stats, ids, report); err != nil {
		return stats, err
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

// submit posts visits with one goroutine per device queue at a time so a
// device always sends its visits in order and can reuse the visitor id it
// was given, the way a browser keeps it in storage.
func submit(ctx context.Context, cfg *Config, client *Client, visits []Visit, stats *Stats) (map[int]string, error) {
	byDevice := make(map[int][]Visit)
	order := make([]int, 0)
	for i := range visits {
		d := visits[i].Device
		if _, ok := byDevice[d]; !ok {
			order = append(order, d)
		}
		byDevice[d] = append(byDevice[d], visits[i])
	}

	var (
		submitted, successful, duplicate, failed, anomalous atomic.Int64
		mu                                                  sync.Mutex
		ids                                                 = make(map[int]string, len(order))
	)

	log := logger.Get().Named("simulate")
	queue := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			for d := range queue {
				visitorID := ""
				for _, v := range byDevice[d] {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					v.VisitorID = visitorID
					submitted.Add(1)
					resp, err := client.PostVisit(gctx, v)
					if err != nil {
						failed.Add(1)
						if cfg.Verbose {
							log.Warn(gctx, "visit failed", logger.String("eventId", v.EventID), logger.Error(err))
						}
						continue
					}
					if resp.Duplicate {
						duplicate.Add(1)
					} else {
						successful.Add(1)
					}
					if resp.Anomaly.IsAnomaly {
						anomalous.Add(1)
					}
					visitorID = resp.VisitorID
				}
				if visitorID != "" {
					mu.Lock()
					ids[d] = visitorID
					mu.Unlock()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		for _, d := range order {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case queue <- d:
			}
		}
		return nil
	})

	err := g.Wait()

	stats.VisitsSubmitted = int(submitted.Load())
	stats.VisitsSuccessful = int(successful.Load())
	stats.VisitsDuplicate = int(duplicate.Load())
	stats.VisitsFailed = int(failed.Load())
	stats.Anomalous = int(anomalous.Load())

	distinct := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		distinct[id] = struct{}{}
	}
	stats.VisitorIDs = len(distinct)

	return ids, err
}

func verify(stats *Stats, ids map[int]string, report AnalyticsResponse) error {
	var problems []error
	if stats.VisitsFailed > 0 {
		problems = append(problems, fmt.Errorf("%d visits failed", stats.VisitsFailed))
	}
	retries := stats.VisitsGenerated - (stats.VisitsSuccessful + stats.VisitsFailed)
	if stats.VisitsDuplicate != retries {
		problems = append(problems, fmt.Errorf("expected %d duplicates, got %d", retries, stats.VisitsDuplicate))
	}
	if report.UniqueVisitors < stats.VisitorIDs && !report.Partial {
		problems = append(problems, fmt.Errorf("analytics reports %d unique visitors, saw %d ids", report.UniqueVisitors, stats.VisitorIDs))
	}
	if len(ids) > 0 && report.TotalVisits < int64(stats.VisitsSuccessful) && !report.Partial {
		problems = append(problems, fmt.Errorf("analytics reports %d visits, submitted %d", report.TotalVisits, stats.VisitsSuccessful))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrVerification, errors.Join(problems...))
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats, report AnalyticsResponse) {
	var visitsPerSecond float64
	if stats.Duration > 0 {
		visitsPerSecond = float64(stats.VisitsSubmitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("visitsGenerated", stats.VisitsGenerated),
		logger.Int("visitsSubmitted", stats.VisitsSubmitted),
		logger.Int("visitsSuccessful", stats.VisitsSuccessful),
		logger.Int("visitsDuplicate", stats.VisitsDuplicate),
		logger.Int("visitsFailed", stats.VisitsFailed),
		logger.Int("visitorIds", stats.VisitorIDs),
		logger.Int("anomalous", stats.Anomalous),
		logger.Int64("reportedVisits", report.TotalVisits),
		logger.Int("reportedUnique", report.UniqueVisitors),
		logger.Int("reportedReturning", report.Returning),
		logger.Duration("duration", stats.Duration),
		logger.Float64("visitsPerSecond", visitsPerSecond))
}
