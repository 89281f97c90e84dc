package service

import (
	"context"
	"sort"
	"time"

	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

const (
	topLimit    = 10
	recentLimit = 5
	hourlyRange = 24 * time.Hour
)

// Bucket is one labeled count in a ranking.
type Bucket struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AnalyticsReport is the site-wide dashboard view.
type AnalyticsReport struct {
	TotalVisits       int64                 `json:"totalVisits"`
	UniqueVisitors    int                   `json:"uniqueVisitors"`
	ReturningVisitors int                   `json:"returningVisitors"`
	ActiveToday       int                   `json:"activeToday"`
	HourlyVisits      [24]int               `json:"hourlyVisits"`
	TopBrowsers       []Bucket              `json:"topBrowsers"`
	TopCountries      []Bucket              `json:"topCountries"`
	RecentVisitors    []model.VisitorRecord `json:"recentVisitors"`
	Patterns          model.PatternSummary  `json:"patterns"`
	GeneratedAt       time.Time             `json:"generatedAt"`
	// Partial is set when some store reads failed and their figures are zero.
	Partial bool `json:"partial"`
}

// Analytics aggregates visitor counts and population patterns. Store read
// failures leave the affected figures at zero and mark the report partial.
func (s *Service) Analytics(ctx context.Context) (AnalyticsReport, error) {
	if err := ctx.Err(); err != nil {
		return AnalyticsReport{}, err
	}

	now := s.now()
	report := AnalyticsReport{
		TopBrowsers:    []Bucket{},
		TopCountries:   []Bucket{},
		RecentVisitors: []model.VisitorRecord{},
		GeneratedAt:    now,
	}

	failed := func(what string, err error) {
		report.Partial = true
		metrics.RecordErrorByComponent("service", "analytics")
		s.logger.Warn(ctx, "analytics figure unavailable", logger.String("figure", what), logger.Error(err))
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if total, err := s.store.TotalVisits(sctx); err != nil {
		failed("total_visits", err)
	} else {
		report.TotalVisits = total
	}
	if n, err := s.store.CountByPredicate(sctx, repository.Predicate{}); err != nil {
		failed("unique_visitors", err)
	} else {
		report.UniqueVisitors = n
	}
	if n, err := s.store.CountByPredicate(sctx, repository.Predicate{MinVisitCount: 2}); err != nil {
		failed("returning_visitors", err)
	} else {
		report.ReturningVisitors = n
	}
	if n, err := s.store.CountByPredicate(sctx, repository.Predicate{LastVisitSince: midnight(now, s.cfg.Location())}); err != nil {
		failed("active_today", err)
	} else {
		report.ActiveToday = n
	}

	records, err := s.store.ListRecentVisitors(sctx, s.cfg.HistoryLimit)
	if err != nil {
		failed("recent_visitors", err)
		records = nil
	}

	report.HourlyVisits = s.analyzer.HourlyCounts(records, now, hourlyRange)
	report.TopBrowsers = topN(records, topLimit, func(r model.VisitorRecord) string { return string(r.Browser) })
	report.TopCountries = topN(records, topLimit, func(r model.VisitorRecord) string { return r.Country })
	if len(records) > 0 {
		report.RecentVisitors = records[:min(recentLimit, len(records))]
	}
	report.Patterns = s.analyzer.AnalyzeHourly(report.HourlyVisits, records, now)
	return report, nil
}

func midnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// topN ranks records by label, busiest first; ties sort by name.
func topN(records []model.VisitorRecord, limit int, label func(model.VisitorRecord) string) []Bucket {
	counts := make(map[string]int)
	for _, r := range records {
		name := label(r)
		if name == "" {
			name = string(model.BrowserUnknown)
		}
		counts[name]++
	}

	buckets := make([]Bucket, 0, len(counts))
	for name, n := range counts {
		buckets = append(buckets, Bucket{Name: name, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Name < buckets[j].Name
	})
	if len(buckets) > limit {
		buckets = buckets[:limit]
	}
	return buckets
}
