package model

import "math"

// GeoResponse is a resolved location. Region and City are optional.
type GeoResponse struct {
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city,omitempty"`
}

// UnknownLocation is returned when nothing better is known.
func UnknownLocation() GeoResponse {
	return GeoResponse{Country: DefaultCountry, CountryCode: DefaultCountryCode}
}

// IsUnknown reports whether g carries no usable country.
func (g GeoResponse) IsUnknown() bool {
	return g.Country == "" || g.Country == DefaultCountry
}

// AnomalyScore is the outcome of one anomaly evaluation.
type AnomalyScore struct {
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	IsAnomaly bool     `json:"isAnomaly"`
	Reasons   []string `json:"reasons"`
}

// Confidence scales the score into [0,1]; twice the threshold is full confidence.
func (a AnomalyScore) Confidence() float64 {
	if a.Threshold <= 0 || a.Score <= 0 {
		return 0
	}
	return math.Min(1, a.Score/(2*a.Threshold))
}

// PatternSummary aggregates behavior over a population of visits.
type PatternSummary struct {
	PeakHours            []int           `json:"peakHours"`
	HourlyDistribution   [24]int         `json:"hourlyDistribution"`
	BrowserPatterns      map[Browser]int `json:"browserPatterns"`
	ReturningVisitorRate float64         `json:"returningVisitorRate"`
	AverageVisitDuration float64         `json:"averageVisitDuration"`
	Anomalies            []AnomalyScore  `json:"anomalies"`
}

// EmptyPatternSummary is the safe default when analysis cannot run.
func EmptyPatternSummary() PatternSummary {
	return PatternSummary{
		PeakHours:       []int{},
		BrowserPatterns: map[Browser]int{},
		Anomalies:       []AnomalyScore{},
	}
}

// InsightScore is the narrow anomaly view used for single-visitor queries.
type InsightScore struct {
	IsAnomaly  bool    `json:"isAnomaly"`
	Confidence float64 `json:"confidence"`
}

// VisitorInsight describes one visitor.
type VisitorInsight struct {
	VisitorID        string       `json:"visitorId"`
	BehaviorPatterns []string     `json:"behaviorPatterns"`
	AnomalyScore     InsightScore `json:"anomalyScore"`
}

// ScoredVisit is emitted after a visit has been identified and scored.
type ScoredVisit struct {
	EventID     string       `json:"eventId,omitempty"`
	VisitorID   string       `json:"visitorId"`
	Browser     Browser      `json:"browser"`
	CountryCode string       `json:"countryCode"`
	VisitCount  int          `json:"visitCount"`
	Anomaly     AnomalyScore `json:"anomaly"`
	TimestampMs int64        `json:"timestamp"`
}
