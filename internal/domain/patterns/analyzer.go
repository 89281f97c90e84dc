// Package patterns derives population statistics from visitor records:
// hourly distribution, peak hours, browser mix, return rate, session
// length and traffic anomalies.
package patterns

import (
	"fmt"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// Anomaly reasons.
const (
	ReasonTrafficSpike  = "Unusual spike in traffic detected"
	ReasonHighFrequency = "High frequency of visits from same visitor ID"
)

// Analyzer computes PatternSummaries. It is stateless and safe for
// concurrent use.
type Analyzer struct {
	location            *time.Location
	peakStdMultiplier   float64
	peakMeanMultiplier  float64
	sessionTimeout      time.Duration
	minSession          time.Duration
	spikeMultiplier     float64
	highFrequencyVisits int
	highFrequencyWindow time.Duration
	highFrequencyScore  float64
}

// New creates an Analyzer with defaults overridden by opts.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		location:            time.UTC,
		peakStdMultiplier:   1.0,
		peakMeanMultiplier:  1.5,
		sessionTimeout:      30 * time.Minute,
		minSession:          5 * time.Minute,
		spikeMultiplier:     3.0,
		highFrequencyVisits: 100,
		highFrequencyWindow: 24 * time.Hour,
		highFrequencyScore:  0.8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze folds current into history and summarizes the population using
// per-visit granularity: peaks exceed mean plus k standard deviations.
func (a *Analyzer) Analyze(current model.VisitorRecord, history []model.VisitorRecord, now time.Time) model.PatternSummary {
	start := time.Now()
	defer func() {
		metrics.RecordPatternAnalysisLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	population := Merge(current, history)
	visits := VisitsFromRecords(population)
	counts := HourlyHistogram(visits, a.location)

	return a.summarize(counts, PeakHoursStdDev(counts, a.peakStdMultiplier), population, visits, now)
}

// AnalyzeHourly summarizes when only hourly counts are trusted for peak
// detection: peaks exceed mean × m.
func (a *Analyzer) AnalyzeHourly(counts [24]int, records []model.VisitorRecord, now time.Time) model.PatternSummary {
	start := time.Now()
	defer func() {
		metrics.RecordPatternAnalysisLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	return a.summarize(counts, PeakHoursMean(counts, a.peakMeanMultiplier), records, VisitsFromRecords(records), now)
}

func (a *Analyzer) summarize(counts [24]int, peaks []int, records []model.VisitorRecord, visits []Visit, now time.Time) model.PatternSummary {
	summary := model.EmptyPatternSummary()
	summary.HourlyDistribution = counts
	summary.PeakHours = peaks
	summary.BrowserPatterns = BrowserDistribution(records)
	summary.ReturningVisitorRate = ReturningVisitorRate(records)
	summary.AverageVisitDuration = float64(AverageSessionDuration(visits, a.sessionTimeout, a.minSession).Milliseconds())

	if s, ok := DetectSpike(counts, a.spikeMultiplier); ok {
		metrics.RecordAnomaly(metrics.AnomalyKindSpike)
		summary.Anomalies = append(summary.Anomalies, s)
	}
	if s, ok := DetectHighFrequency(records, now, a.highFrequencyWindow, a.highFrequencyVisits, a.highFrequencyScore); ok {
		metrics.RecordAnomaly(metrics.AnomalyKindHighFrequency)
		summary.Anomalies = append(summary.Anomalies, s)
	}
	return summary
}

// HourlyCounts buckets records by last visit hour over the window ending at now.
func (a *Analyzer) HourlyCounts(records []model.VisitorRecord, now time.Time, window time.Duration) [24]int {
	var counts [24]int
	since := now.Add(-window)
	for _, r := range records {
		if r.LastVisit.Before(since) || r.LastVisit.After(now) {
			continue
		}
		counts[r.LastVisit.In(a.location).Hour()]++
	}
	return counts
}

// Merge returns history with every record of current's visitor replaced by current.
func Merge(current model.VisitorRecord, history []model.VisitorRecord) []model.VisitorRecord {
	out := make([]model.VisitorRecord, 0, len(history)+1)
	if current.VisitorID != "" {
		out = append(out, current)
	}
	for _, r := range history {
		if current.VisitorID != "" && r.VisitorID == current.VisitorID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DetectSpike flags traffic when the busiest hour exceeds multiplier × the
// hourly mean. The score is the busiest count over that threshold.
func DetectSpike(counts [24]int, multiplier float64) (model.AnomalyScore, bool) {
	mean, _ := meanStd(counts)
	threshold := mean * multiplier
	if threshold <= 0 {
		return model.AnomalyScore{}, false
	}

	peak := 0
	for _, c := range counts {
		peak = max(peak, c)
	}
	if float64(peak) <= threshold {
		return model.AnomalyScore{}, false
	}
	return model.AnomalyScore{
		Score:     float64(peak) / threshold,
		Threshold: threshold,
		IsAnomaly: true,
		Reasons:   []string{ReasonTrafficSpike},
	}, true
}

// DetectHighFrequency flags any visitor with more than limit visits whose
// last visit falls within window of now.
func DetectHighFrequency(records []model.VisitorRecord, now time.Time, window time.Duration, limit int, score float64) (model.AnomalyScore, bool) {
	since := now.Add(-window)
	for _, r := range records {
		if r.VisitCount > limit && !r.LastVisit.Before(since) {
			return model.AnomalyScore{
				Score:     score,
				Threshold: float64(limit),
				IsAnomaly: true,
				Reasons:   []string{ReasonHighFrequency},
			}, true
		}
	}
	return model.AnomalyScore{}, false
}

// Describe renders short behavior labels for one visitor.
func (a *Analyzer) Describe(r model.VisitorRecord, summary model.PatternSummary) []string {
	labels := []string{}
	if r.IsReturning() {
		labels = append(labels, fmt.Sprintf("Returning visitor (%d visits)", r.VisitCount))
	} else {
		labels = append(labels, "New visitor")
	}
	if r.VisitCount > a.highFrequencyVisits {
		labels = append(labels, "Very high visit frequency")
	} else if r.VisitCount >= 10 {
		labels = append(labels, "Frequent visitor")
	}

	if len(summary.PeakHours) > 0 && !r.LastVisit.IsZero() {
		hour := r.LastVisit.In(a.location).Hour()
		peak := false
		for _, h := range summary.PeakHours {
			if h == hour {
				peak = true
				break
			}
		}
		if peak {
			labels = append(labels, "Visits during peak hours")
		} else {
			labels = append(labels, "Visits outside peak hours")
		}
	}

	if r.Browser != "" && r.Browser != model.BrowserUnknown {
		labels = append(labels, fmt.Sprintf("Uses %s", r.Browser))
	}
	return labels
}
