package patterns

import "time"

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLocation sets the time zone for hour-of-day buckets.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithPeakMultipliers sets k for mean + k·std and m for mean × m.
func WithPeakMultipliers(stdK, meanM float64) Option {
	return func(a *Analyzer) {
		if stdK >= 0 {
			a.peakStdMultiplier = stdK
		}
		if meanM > 0 {
			a.peakMeanMultiplier = meanM
		}
	}
}

// WithSessionTimeout sets the gap that splits sessions and the minimum session length.
func WithSessionTimeout(timeout, floor time.Duration) Option {
	return func(a *Analyzer) {
		if timeout > 0 {
			a.sessionTimeout = timeout
		}
		if floor >= 0 {
			a.minSession = floor
		}
	}
}

// WithSpikeMultiplier sets how far above the hourly mean a spike must rise.
func WithSpikeMultiplier(m float64) Option {
	return func(a *Analyzer) {
		if m > 0 {
			a.spikeMultiplier = m
		}
	}
}

// WithHighFrequency sets the visit limit, look-back window and reported score.
func WithHighFrequency(visits int, window time.Duration, score float64) Option {
	return func(a *Analyzer) {
		if visits > 0 {
			a.highFrequencyVisits = visits
		}
		if window > 0 {
			a.highFrequencyWindow = window
		}
		if score > 0 {
			a.highFrequencyScore = score
		}
	}
}
