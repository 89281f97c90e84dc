package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults substituted for missing or malformed observation fields.
const (
	DefaultScreenResolution = "1920x1080"
	DefaultCountry          = "Unknown"
	DefaultCountryCode      = "XX"
	DefaultTheme            = "light"
	DefaultLanguage         = "en"
)

// RawObservation is a visit as reported by a client, before validation.
// Every field may be empty.
type RawObservation struct {
	UserAgent        string
	ScreenResolution string
	Browser          string
	Country          string
	CountryCode      string
	TimestampMs      int64
}

// VisitObservation is a validated visit. All defaults are resolved, so
// consumers never need to re-check optional fields. UserAgent stays empty
// when unknown; the feature extractor maps that to a neutral block.
type VisitObservation struct {
	UserAgent        string
	ScreenResolution string
	Width            int
	Height           int
	Browser          Browser
	Country          string
	CountryCode      string
	Timestamp        time.Time
}

// NewVisitObservation validates raw and substitutes documented defaults.
// now is used when the raw timestamp is missing.
func NewVisitObservation(raw RawObservation, now time.Time) VisitObservation {
	obs := VisitObservation{
		UserAgent:   strings.TrimSpace(raw.UserAgent),
		Country:     strings.TrimSpace(raw.Country),
		CountryCode: strings.ToUpper(strings.TrimSpace(raw.CountryCode)),
	}

	obs.Browser = ParseBrowser(raw.Browser)
	if obs.Browser == BrowserUnknown {
		obs.Browser = DetectBrowser(obs.UserAgent)
	}

	w, h, ok := ParseResolution(raw.ScreenResolution)
	if !ok {
		w, h, _ = ParseResolution(DefaultScreenResolution)
	}
	obs.Width, obs.Height = w, h
	obs.ScreenResolution = FormatResolution(w, h)

	if obs.Country == "" {
		obs.Country = DefaultCountry
	}
	if obs.CountryCode == "" {
		obs.CountryCode = DefaultCountryCode
	}

	if raw.TimestampMs > 0 {
		obs.Timestamp = time.UnixMilli(raw.TimestampMs)
	} else {
		obs.Timestamp = now
	}
	return obs
}

// WithGeo returns a copy of o whose unknown location is filled from g.
func (o VisitObservation) WithGeo(g GeoResponse) VisitObservation {
	if o.Country == DefaultCountry && g.Country != "" {
		o.Country = g.Country
	}
	if o.CountryCode == DefaultCountryCode && g.CountryCode != "" {
		o.CountryCode = g.CountryCode
	}
	return o
}

// ParseResolution parses "WxH" into positive integer dimensions.
func ParseResolution(s string) (width, height int, ok bool) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// FormatResolution renders dimensions as "WxH".
func FormatResolution(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
