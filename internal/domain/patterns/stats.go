package patterns

import (
	"math"
	"sort"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Visit is one timestamped observation of a visitor.
type Visit struct {
	VisitorID string
	At        time.Time
}

// VisitsFromRecords expands records into visits: the last visit always,
// and the first visit when it differs.
func VisitsFromRecords(records []model.VisitorRecord) []Visit {
	visits := make([]Visit, 0, len(records)*2)
	for _, r := range records {
		last := r.LastVisit
		if last.IsZero() && r.TimestampMs > 0 {
			last = time.UnixMilli(r.TimestampMs)
		}
		if last.IsZero() {
			continue
		}
		visits = append(visits, Visit{VisitorID: r.VisitorID, At: last})
		if !r.FirstVisit.IsZero() && !r.FirstVisit.Equal(last) {
			visits = append(visits, Visit{VisitorID: r.VisitorID, At: r.FirstVisit})
		}
	}
	return visits
}

// HourlyHistogram counts visits per hour of day in loc.
func HourlyHistogram(visits []Visit, loc *time.Location) [24]int {
	var counts [24]int
	for _, v := range visits {
		counts[v.At.In(loc).Hour()]++
	}
	return counts
}

func meanStd(counts [24]int) (mean, std float64) {
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean = sum / float64(len(counts))

	var sq float64
	for _, c := range counts {
		d := float64(c) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(counts)))
}

// PeakHoursStdDev returns hours whose count is strictly greater than
// mean + k standard deviations.
func PeakHoursStdDev(counts [24]int, k float64) []int {
	mean, std := meanStd(counts)
	return above(counts, mean+k*std)
}

// PeakHoursMean returns hours whose count is strictly greater than mean × m.
func PeakHoursMean(counts [24]int, m float64) []int {
	mean, _ := meanStd(counts)
	return above(counts, mean*m)
}

func above(counts [24]int, threshold float64) []int {
	peaks := []int{}
	for h, c := range counts {
		if float64(c) > threshold {
			peaks = append(peaks, h)
		}
	}
	return peaks
}

// BrowserDistribution counts records per browser; empty labels count as Unknown.
func BrowserDistribution(records []model.VisitorRecord) map[model.Browser]int {
	dist := make(map[model.Browser]int)
	for _, r := range records {
		b := r.Browser
		if b == "" {
			b = model.BrowserUnknown
		}
		dist[b]++
	}
	return dist
}

// ReturningVisitorRate is the share of distinct visitors seen more than
// once, or 0 when there are none.
func ReturningVisitorRate(records []model.VisitorRecord) float64 {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		if c, ok := counts[r.VisitorID]; !ok || r.VisitCount > c {
			counts[r.VisitorID] = r.VisitCount
		}
	}
	if len(counts) == 0 {
		return 0
	}
	var returning int
	for _, c := range counts {
		if c > 1 {
			returning++
		}
	}
	return float64(returning) / float64(len(counts))
}

// AverageSessionDuration groups each visitor's visits into sessions split
// by gaps longer than timeout. A session lasts from its first to its last
// visit, but never less than floor. The result is 0 without sessions.
func AverageSessionDuration(visits []Visit, timeout, floor time.Duration) time.Duration {
	byVisitor := make(map[string][]time.Time)
	for _, v := range visits {
		byVisitor[v.VisitorID] = append(byVisitor[v.VisitorID], v.At)
	}

	var total time.Duration
	var sessions int
	for _, times := range byVisitor {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		start, prev := times[0], times[0]
		for _, t := range times[1:] {
			if t.Sub(prev) > timeout {
				total += max(floor, prev.Sub(start))
				sessions++
				start = t
			}
			prev = t
		}
		total += max(floor, prev.Sub(start))
		sessions++
	}

	if sessions == 0 {
		return 0
	}
	return total / time.Duration(sessions)
}
