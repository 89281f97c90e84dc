package patterns_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/internal/domain/patterns"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)

func record(id string, count int, last time.Time, browser model.Browser) model.VisitorRecord {
	return model.VisitorRecord{
		VisitorID:   id,
		FirstVisit:  last,
		LastVisit:   last,
		VisitCount:  count,
		Browser:     browser,
		TimestampMs: last.UnixMilli(),
	}
}

func TestPeakHours(t *testing.T) {
	Convey("Given a single busy hour", t, func() {
		var counts [24]int
		counts[14] = 50

		Convey("Then only that hour is a peak on both paths", func() {
			So(patterns.PeakHoursMean(counts, 1.5), ShouldResemble, []int{14})
			So(patterns.PeakHoursStdDev(counts, 1.0), ShouldResemble, []int{14})
		})
	})

	Convey("Given a count exactly at mean × 1.5", t, func() {
		var counts [24]int
		counts[0] = 3  // mean is 48/24 = 2, threshold 3
		counts[1] = 45 // carries the rest of the total

		Convey("Then the boundary hour is not a peak", func() {
			So(patterns.PeakHoursMean(counts, 1.5), ShouldResemble, []int{1})
		})
	})

	Convey("Given a flat distribution", t, func() {
		var counts [24]int
		for i := range counts {
			counts[i] = 4
		}

		Convey("Then counts equal to mean + 0·std are not peaks", func() {
			So(patterns.PeakHoursStdDev(counts, 1.0), ShouldBeEmpty)
			So(patterns.PeakHoursMean(counts, 1.0), ShouldBeEmpty)
		})
	})

	Convey("Given no traffic", t, func() {
		var counts [24]int
		So(patterns.PeakHoursStdDev(counts, 1.0), ShouldBeEmpty)
		So(patterns.PeakHoursMean(counts, 1.5), ShouldBeEmpty)
		_, spiked := patterns.DetectSpike(counts, 3)
		So(spiked, ShouldBeFalse)
	})
}

func TestReturningVisitorRate(t *testing.T) {
	Convey("Given visitor populations", t, func() {
		So(patterns.ReturningVisitorRate(nil), ShouldEqual, 0.0)

		ones := []model.VisitorRecord{
			record("a", 1, now, model.BrowserChrome),
			record("b", 1, now, model.BrowserChrome),
		}
		So(patterns.ReturningVisitorRate(ones), ShouldEqual, 0.0)

		mixed := append(ones, record("c", 3, now, model.BrowserFirefox), record("d", 2, now, ""))
		So(patterns.ReturningVisitorRate(mixed), ShouldEqual, 0.5)

		all := []model.VisitorRecord{record("a", 5, now, ""), record("b", 2, now, "")}
		So(patterns.ReturningVisitorRate(all), ShouldEqual, 1.0)

		Convey("Then duplicated visitors count once with their highest count", func() {
			dup := []model.VisitorRecord{record("a", 1, now, ""), record("a", 4, now, ""), record("b", 1, now, "")}
			So(patterns.ReturningVisitorRate(dup), ShouldEqual, 0.5)
		})
	})
}

func TestBrowserDistribution(t *testing.T) {
	Convey("Given records with missing browsers", t, func() {
		dist := patterns.BrowserDistribution([]model.VisitorRecord{
			record("a", 1, now, model.BrowserChrome),
			record("b", 1, now, model.BrowserChrome),
			record("c", 1, now, ""),
			record("d", 1, now, model.BrowserSafari),
		})
		So(dist, ShouldResemble, map[model.Browser]int{
			model.BrowserChrome:  2,
			model.BrowserUnknown: 1,
			model.BrowserSafari:  1,
		})
	})
}

func TestAverageSessionDuration(t *testing.T) {
	t0 := now.Add(-6 * time.Hour)

	Convey("Given no visits", t, func() {
		So(patterns.AverageSessionDuration(nil, 30*time.Minute, 5*time.Minute), ShouldEqual, time.Duration(0))
	})

	Convey("Given visits split into sessions", t, func() {
		visits := []patterns.Visit{
			{VisitorID: "a", At: t0.Add(20 * time.Minute)},
			{VisitorID: "a", At: t0},
			{VisitorID: "a", At: t0.Add(10 * time.Minute)},
			{VisitorID: "a", At: t0.Add(2 * time.Hour)},
			{VisitorID: "b", At: t0},
		}

		Convey("Then spans are floored and averaged per session", func() {
			// a: 20m session and a single-visit 5m session; b: single 5m session.
			got := patterns.AverageSessionDuration(visits, 30*time.Minute, 5*time.Minute)
			So(got, ShouldEqual, 10*time.Minute)
		})
	})

	Convey("Given a gap exactly equal to the timeout", t, func() {
		visits := []patterns.Visit{
			{VisitorID: "a", At: t0},
			{VisitorID: "a", At: t0.Add(30 * time.Minute)},
		}
		So(patterns.AverageSessionDuration(visits, 30*time.Minute, 5*time.Minute), ShouldEqual, 30*time.Minute)
	})
}

func TestAnomalyAggregation(t *testing.T) {
	Convey("Given a visitor with 150 visits in the last day", t, func() {
		records := []model.VisitorRecord{record("bot", 150, now.Add(-time.Hour), model.BrowserUnknown)}
		s, ok := patterns.DetectHighFrequency(records, now, 24*time.Hour, 100, 0.8)

		Convey("Then the high frequency anomaly is reported with score 0.8", func() {
			So(ok, ShouldBeTrue)
			So(s.Score, ShouldEqual, 0.8)
			So(s.IsAnomaly, ShouldBeTrue)
			So(s.Reasons, ShouldResemble, []string{patterns.ReasonHighFrequency})
		})
	})

	Convey("Given the same visitor last seen two days ago", t, func() {
		records := []model.VisitorRecord{record("bot", 150, now.Add(-48*time.Hour), model.BrowserUnknown)}
		_, ok := patterns.DetectHighFrequency(records, now, 24*time.Hour, 100, 0.8)
		So(ok, ShouldBeFalse)
	})

	Convey("Given a traffic spike", t, func() {
		var counts [24]int
		counts[14] = 50
		s, ok := patterns.DetectSpike(counts, 3)

		Convey("Then the score is the ratio of the peak to three times the mean", func() {
			So(ok, ShouldBeTrue)
			So(s.Score, ShouldAlmostEqual, 50/(3*50.0/24))
			So(s.Reasons, ShouldResemble, []string{patterns.ReasonTrafficSpike})
		})
	})
}

func TestAnalyze(t *testing.T) {
	Convey("Given a population with a spike and a heavy visitor", t, func() {
		a := patterns.New()
		var history []model.VisitorRecord
		for i := 0; i < 50; i++ {
			at := time.Date(2026, 5, 10, 14, i, 0, 0, time.UTC)
			history = append(history, record(fmt.Sprintf("v%d", i), 1, at, model.BrowserChrome))
		}
		history = append(history, record("heavy", 120, now.Add(-time.Hour), model.BrowserFirefox))
		current := record("v0", 2, now, model.BrowserChrome)
		current.FirstVisit = time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

		summary := a.Analyze(current, history, now)

		Convey("Then the current visit replaces its stale record", func() {
			So(summary.BrowserPatterns[model.BrowserChrome], ShouldEqual, 50)
			So(summary.BrowserPatterns[model.BrowserFirefox], ShouldEqual, 1)
			So(summary.ReturningVisitorRate, ShouldAlmostEqual, 2.0/51.0)
		})

		Convey("Then hour 14 is the only peak", func() {
			So(summary.PeakHours, ShouldResemble, []int{14})
			So(summary.HourlyDistribution[14], ShouldEqual, 50)
		})

		Convey("Then both population anomalies are reported", func() {
			So(len(summary.Anomalies), ShouldEqual, 2)
			So(summary.Anomalies[0].Reasons, ShouldResemble, []string{patterns.ReasonTrafficSpike})
			So(summary.Anomalies[1].Score, ShouldEqual, 0.8)
		})

		Convey("Then durations are non-negative", func() {
			So(summary.AverageVisitDuration, ShouldBeGreaterThanOrEqualTo, 0)
		})
	})

	Convey("Given an empty population", t, func() {
		summary := patterns.New().Analyze(model.VisitorRecord{}, nil, now)
		So(summary.PeakHours, ShouldBeEmpty)
		So(summary.ReturningVisitorRate, ShouldEqual, 0.0)
		So(summary.AverageVisitDuration, ShouldEqual, 0.0)
		So(summary.Anomalies, ShouldBeEmpty)
	})
}

func TestAnalyzeHourly(t *testing.T) {
	Convey("Given hourly counts and a configurable multiplier", t, func() {
		var counts [24]int
		counts[9] = 6
		counts[10] = 4
		counts[11] = 2 // mean is 0.5

		Convey("Then peaks follow mean × m", func() {
			strict := patterns.New(patterns.WithPeakMultipliers(1, 7)).AnalyzeHourly(counts, nil, now)
			So(strict.PeakHours, ShouldResemble, []int{9, 10})

			loose := patterns.New(patterns.WithPeakMultipliers(1, 1.5)).AnalyzeHourly(counts, nil, now)
			So(loose.PeakHours, ShouldResemble, []int{9, 10, 11})
		})
	})
}

func TestHourlyCountsAndDescribe(t *testing.T) {
	Convey("Given records inside and outside the window", t, func() {
		a := patterns.New()
		records := []model.VisitorRecord{
			record("a", 1, now.Add(-time.Hour), ""),
			record("b", 1, now.Add(-2*time.Hour), ""),
			record("c", 1, now.Add(-30*time.Hour), ""),
		}
		counts := a.HourlyCounts(records, now, 24*time.Hour)
		So(counts[17], ShouldEqual, 1)
		So(counts[16], ShouldEqual, 1)
		So(counts[12], ShouldEqual, 0)

		Convey("Then descriptions reflect history and peaks", func() {
			summary := model.PatternSummary{PeakHours: []int{17}}
			labels := a.Describe(record("a", 12, now.Add(-time.Hour), model.BrowserEdge), summary)
			So(labels, ShouldResemble, []string{
				"Returning visitor (12 visits)",
				"Frequent visitor",
				"Visits during peak hours",
				"Uses Edge",
			})

			first := a.Describe(record("n", 1, now.Add(-5*time.Hour), ""), summary)
			So(first, ShouldResemble, []string{"New visitor", "Visits outside peak hours"})
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given history containing the current visitor", t, func() {
		current := record("x", 3, now, "")
		merged := patterns.Merge(current, []model.VisitorRecord{record("x", 2, now.Add(-time.Hour), ""), record("y", 1, now, "")})
		So(len(merged), ShouldEqual, 2)
		So(merged[0].VisitCount, ShouldEqual, 3)
	})
}
