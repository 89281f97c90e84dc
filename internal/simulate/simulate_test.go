package simulate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/footprint/internal/simulate"
	"github.com/okian/footprint/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// fakeService mimics the visit API: event ids are deduplicated and a
// visitor id is minted per user agent unless the client sends one.
type fakeService struct {
	mu       sync.Mutex
	events   map[string]string
	visitors map[string]int
	ips      map[string]bool
	// lieUnique makes analytics under-report unique visitors.
	lieUnique bool
}

func newFakeService() *fakeService {
	return &fakeService{events: map[string]string{}, visitors: map[string]int{}, ips: map[string]bool{}}
}

func (f *fakeService) addresses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ips)
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/healthz":
		w.WriteHeader(http.StatusOK)
	case "/v1/visits":
		var body struct {
			EventID   string `json:"event_id"`
			VisitorID string `json:"visitor_id"`
			UserAgent string `json:"user_agent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.ips[r.Header.Get("X-Forwarded-For")] = true
		if id, ok := f.events[body.EventID]; ok {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"eventId": body.EventID, "visitorId": id, "duplicate": true})
			return
		}
		id := body.VisitorID
		if id == "" {
			id = "fp-" + body.UserAgent + r.Header.Get("X-Forwarded-For")
		}
		f.events[body.EventID] = id
		f.visitors[id]++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"eventId": body.EventID, "visitorId": id})
	case "/v1/analytics":
		total := 0
		for _, n := range f.visitors {
			total += n
		}
		unique := len(f.visitors)
		if f.lieUnique {
			unique = 0
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"totalVisits": total, "uniqueVisitors": unique})
	default:
		http.NotFound(w, r)
	}
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := simulate.NewGenerator(42)
		b := simulate.NewGenerator(42)

		Convey("Then they produce the same devices", func() {
			So(a.Devices(20, 0.2), ShouldResemble, b.Devices(20, 0.2))
		})
	})

	Convey("Given generated devices", t, func() {
		g := simulate.NewGenerator(7)
		devices := g.Devices(10, 0)
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

		Convey("Then every device gets a visit before repeats", func() {
			visits := g.Visits(devices, 25, now, 0)
			So(len(visits), ShouldEqual, 25)
			for i := 0; i < len(devices); i++ {
				So(visits[i].Device, ShouldEqual, i)
				So(visits[i].Preferences, ShouldNotBeNil)
			}
		})

		Convey("Then timestamps fall within the previous day", func() {
			for _, v := range g.Visits(devices, 50, now, 0) {
				at := time.UnixMilli(v.Timestamp)
				So(at.After(now.Add(-24*time.Hour)), ShouldBeTrue)
				So(at.After(now), ShouldBeFalse)
			}
		})

		Convey("Then retries reuse the preceding event id", func() {
			visits := g.Visits(devices, 10, now, 1)
			So(len(visits), ShouldEqual, 20)
			for i := 1; i < len(visits); i += 2 {
				So(visits[i].Retry, ShouldBeTrue)
				So(visits[i].EventID, ShouldEqual, visits[i-1].EventID)
			}
		})

		Convey("Then an empty device list yields nothing", func() {
			So(g.Visits(nil, 10, now, 0), ShouldBeEmpty)
		})
	})

	Convey("Given an all-bot population", t, func() {
		devices := simulate.NewGenerator(3).Devices(5, 1)

		Convey("Then devices are scripted without a screen", func() {
			for _, d := range devices {
				So(d.Bot, ShouldBeTrue)
				So(d.ScreenResolution, ShouldEqual, "0x0")
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a consistent service", t, func() {
		fake := newFakeService()
		srv := httptest.NewServer(fake)
		defer srv.Close()

		cfg := &simulate.Config{
			BaseURL:    srv.URL,
			Devices:    8,
			Visits:     30,
			Workers:    3,
			Timeout:    5 * time.Second,
			Seed:       11,
			BotShare:   0.25,
			RetryShare: 0.3,
		}

		Convey("When the simulation runs", func() {
			stats, err := simulate.Run(context.Background(), cfg)

			Convey("Then every visit is accounted for", func() {
				So(err, ShouldBeNil)
				So(stats.VisitsFailed, ShouldEqual, 0)
				So(stats.VisitsSubmitted, ShouldEqual, stats.VisitsGenerated)
				So(stats.VisitsSuccessful, ShouldEqual, 30)
				So(stats.VisitsDuplicate, ShouldEqual, stats.VisitsGenerated-30)
				So(stats.VisitorIDs, ShouldBeLessThanOrEqualTo, 8)
			})

			Convey("Then device addresses are forwarded", func() {
				So(fake.addresses(), ShouldBeGreaterThan, 1)
			})
		})
	})

	Convey("Given a service whose analytics disagree", t, func() {
		fake := newFakeService()
		fake.lieUnique = true
		srv := httptest.NewServer(fake)
		defer srv.Close()

		_, err := simulate.Run(context.Background(), &simulate.Config{
			BaseURL: srv.URL, Devices: 3, Visits: 6, Workers: 2, Timeout: 5 * time.Second, Seed: 1,
		})

		Convey("Then verification fails", func() {
			So(errors.Is(err, simulate.ErrVerification), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := simulate.Run(context.Background(), &simulate.Config{
			BaseURL: url, Devices: 1, Visits: 1, Timeout: time.Second,
		})

		Convey("Then the health check fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given an empty workload", t, func() {
		_, err := simulate.Run(context.Background(), &simulate.Config{BaseURL: "http://127.0.0.1:1"})

		Convey("Then it is rejected before any request", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
