package model_test

import (
	"testing"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

const (
	uaChrome  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaSafari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
	uaEdge    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.2210.91"
	uaOpera   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 OPR/106.0.0.0"
)

func TestDetectBrowser(t *testing.T) {
	convey.Convey("Given common user agents", t, func() {
		convey.So(model.DetectBrowser(uaChrome), convey.ShouldEqual, model.BrowserChrome)
		convey.So(model.DetectBrowser(uaFirefox), convey.ShouldEqual, model.BrowserFirefox)
		convey.So(model.DetectBrowser(uaSafari), convey.ShouldEqual, model.BrowserSafari)
		convey.So(model.DetectBrowser(uaEdge), convey.ShouldEqual, model.BrowserEdge)
		convey.So(model.DetectBrowser(uaOpera), convey.ShouldEqual, model.BrowserOpera)
		convey.So(model.DetectBrowser(""), convey.ShouldEqual, model.BrowserUnknown)
		convey.So(model.DetectBrowser("curl/8.4.0"), convey.ShouldEqual, model.BrowserUnknown)
	})

	convey.Convey("Given browser labels", t, func() {
		convey.So(model.ParseBrowser("chrome"), convey.ShouldEqual, model.BrowserChrome)
		convey.So(model.ParseBrowser(" Edge "), convey.ShouldEqual, model.BrowserEdge)
		convey.So(model.ParseBrowser("Netscape"), convey.ShouldEqual, model.BrowserUnknown)
		convey.So(model.Browser("Netscape").Index(), convey.ShouldEqual, len(model.Browsers)-1)
		convey.So(model.BrowserChrome.Index(), convey.ShouldEqual, 0)
	})
}

func TestNewVisitObservation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	convey.Convey("Given an empty raw observation", t, func() {
		obs := model.NewVisitObservation(model.RawObservation{}, now)

		convey.Convey("Then every default is resolved", func() {
			convey.So(obs.UserAgent, convey.ShouldEqual, "")
			convey.So(obs.Browser, convey.ShouldEqual, model.BrowserUnknown)
			convey.So(obs.ScreenResolution, convey.ShouldEqual, "1920x1080")
			convey.So(obs.Width, convey.ShouldEqual, 1920)
			convey.So(obs.Height, convey.ShouldEqual, 1080)
			convey.So(obs.Country, convey.ShouldEqual, "Unknown")
			convey.So(obs.CountryCode, convey.ShouldEqual, "XX")
			convey.So(obs.Timestamp, convey.ShouldEqual, now)
		})
	})

	convey.Convey("Given malformed resolutions", t, func() {
		for _, res := range []string{"0x0", "abc", "1920", "-1x200", "10x", "x", "1920x1080x2"} {
			obs := model.NewVisitObservation(model.RawObservation{ScreenResolution: res}, now)
			convey.So(obs.ScreenResolution, convey.ShouldEqual, model.DefaultScreenResolution)
		}
	})

	convey.Convey("Given a browser label missing but a user agent present", t, func() {
		obs := model.NewVisitObservation(model.RawObservation{
			UserAgent:        uaFirefox,
			ScreenResolution: "2560X1440",
			CountryCode:      "de",
			TimestampMs:      now.Add(-time.Hour).UnixMilli(),
		}, now)

		convey.Convey("Then the browser is detected and fields normalized", func() {
			convey.So(obs.Browser, convey.ShouldEqual, model.BrowserFirefox)
			convey.So(obs.ScreenResolution, convey.ShouldEqual, "2560x1440")
			convey.So(obs.CountryCode, convey.ShouldEqual, "DE")
			convey.So(obs.Timestamp.Equal(now.Add(-time.Hour)), convey.ShouldBeTrue)
		})

		convey.Convey("And geo fills only unknown location fields", func() {
			enriched := obs.WithGeo(model.GeoResponse{Country: "Germany", CountryCode: "FR"})
			convey.So(enriched.Country, convey.ShouldEqual, "Germany")
			convey.So(enriched.CountryCode, convey.ShouldEqual, "DE")
		})
	})
}

func TestVisitorRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	convey.Convey("Given a first observation", t, func() {
		rec := model.NewVisitorRecord("v1", model.VisitorUpdate{At: at, Browser: model.BrowserSafari})

		convey.Convey("Then defaults are applied", func() {
			convey.So(rec.VisitCount, convey.ShouldEqual, 1)
			convey.So(rec.FirstVisit, convey.ShouldEqual, at)
			convey.So(rec.LastVisit, convey.ShouldEqual, at)
			convey.So(rec.Browser, convey.ShouldEqual, model.BrowserSafari)
			convey.So(rec.ScreenResolution, convey.ShouldEqual, "1920x1080")
			convey.So(rec.Preferences, convey.ShouldResemble, model.Preferences{Theme: "light", Language: "en"})
			convey.So(rec.IsReturning(), convey.ShouldBeFalse)
		})

		convey.Convey("When a later observation increments the visit", func() {
			later := at.Add(2 * time.Hour)
			next := rec.Apply(model.VisitorUpdate{
				At:             later,
				Country:        "Japan",
				Preferences:    &model.Preferences{Theme: "dark"},
				IncrementVisit: true,
			})

			convey.Convey("Then mutable fields advance", func() {
				convey.So(next.VisitCount, convey.ShouldEqual, 2)
				convey.So(next.LastVisit, convey.ShouldEqual, later)
				convey.So(next.FirstVisit, convey.ShouldEqual, at)
				convey.So(next.Country, convey.ShouldEqual, "Japan")
				convey.So(next.Browser, convey.ShouldEqual, model.BrowserSafari)
				convey.So(next.Preferences.Theme, convey.ShouldEqual, "dark")
				convey.So(next.Preferences.Language, convey.ShouldEqual, "en")
				convey.So(next.IsReturning(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an observation does not increment", func() {
			next := rec.Apply(model.VisitorUpdate{At: at.Add(time.Minute)})
			convey.So(next.VisitCount, convey.ShouldEqual, 1)
		})
	})
}

func TestAnomalyScoreConfidence(t *testing.T) {
	convey.Convey("Given anomaly scores", t, func() {
		convey.So(model.AnomalyScore{Score: 0, Threshold: 0.1}.Confidence(), convey.ShouldEqual, 0)
		convey.So(model.AnomalyScore{Score: 0.1, Threshold: 0.1}.Confidence(), convey.ShouldAlmostEqual, 0.5)
		convey.So(model.AnomalyScore{Score: 0.5, Threshold: 0.1}.Confidence(), convey.ShouldEqual, 1)
		convey.So(model.AnomalyScore{Score: 0.5}.Confidence(), convey.ShouldEqual, 0)
	})

	convey.Convey("Given location helpers", t, func() {
		convey.So(model.UnknownLocation().IsUnknown(), convey.ShouldBeTrue)
		convey.So(model.GeoResponse{Country: "Canada", CountryCode: "CA"}.IsUnknown(), convey.ShouldBeFalse)
		empty := model.EmptyPatternSummary()
		convey.So(empty.PeakHours, convey.ShouldBeEmpty)
		convey.So(empty.Anomalies, convey.ShouldBeEmpty)
	})
}
