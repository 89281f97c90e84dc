package features

import "time"

// Option configures an Extractor.
type Option func(*Extractor)

// WithGeoFeature appends a hashed country component before padding.
func WithGeoFeature(enabled bool) Option {
	return func(e *Extractor) {
		e.geoFeature = enabled
	}
}

// WithLocation sets the time zone used for time-of-day components.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.location = loc
		}
	}
}
