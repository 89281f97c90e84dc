package model

import "time"

// Preferences are client display settings stored with a visitor.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// VisitorRecord is the persisted state of one pseudo-identified visitor.
type VisitorRecord struct {
	VisitorID        string      `json:"visitorId"`
	FirstVisit       time.Time   `json:"firstVisit"`
	LastVisit        time.Time   `json:"lastVisit"`
	VisitCount       int         `json:"visitCount"`
	Browser          Browser     `json:"browser"`
	Country          string      `json:"country"`
	CountryCode      string      `json:"countryCode"`
	ScreenResolution string      `json:"screenResolution"`
	Preferences      Preferences `json:"preferences"`
	TimestampMs      int64       `json:"timestamp"`
}

// VisitorUpdate carries the fields written by one observation.
// Empty strings leave the stored value untouched.
type VisitorUpdate struct {
	At               time.Time
	Browser          Browser
	Country          string
	CountryCode      string
	ScreenResolution string
	Preferences      *Preferences
	// IncrementVisit bumps VisitCount on existing records.
	IncrementVisit bool
}

// NewVisitorRecord builds the first record for id from u with defaults applied.
func NewVisitorRecord(id string, u VisitorUpdate) VisitorRecord {
	rec := VisitorRecord{
		VisitorID:        id,
		FirstVisit:       u.At,
		LastVisit:        u.At,
		VisitCount:       1,
		Browser:          BrowserUnknown,
		Country:          DefaultCountry,
		CountryCode:      DefaultCountryCode,
		ScreenResolution: DefaultScreenResolution,
		Preferences:      Preferences{Theme: DefaultTheme, Language: DefaultLanguage},
		TimestampMs:      u.At.UnixMilli(),
	}
	rec.overwrite(u)
	return rec
}

// Apply folds u into an existing record and returns the result.
func (r VisitorRecord) Apply(u VisitorUpdate) VisitorRecord {
	if u.At.After(r.LastVisit) {
		r.LastVisit = u.At
		r.TimestampMs = u.At.UnixMilli()
	}
	if u.IncrementVisit {
		r.VisitCount++
	}
	r.overwrite(u)
	return r
}

func (r *VisitorRecord) overwrite(u VisitorUpdate) {
	if u.Browser != "" {
		r.Browser = u.Browser
	}
	if u.Country != "" {
		r.Country = u.Country
	}
	if u.CountryCode != "" {
		r.CountryCode = u.CountryCode
	}
	if u.ScreenResolution != "" {
		r.ScreenResolution = u.ScreenResolution
	}
	if u.Preferences != nil {
		if u.Preferences.Theme != "" {
			r.Preferences.Theme = u.Preferences.Theme
		}
		if u.Preferences.Language != "" {
			r.Preferences.Language = u.Preferences.Language
		}
	}
}

// IsReturning reports whether the visitor has been seen more than once.
func (r VisitorRecord) IsReturning() bool {
	return r.VisitCount > 1
}
