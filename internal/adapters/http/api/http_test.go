package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/footprint/internal/adapters/http/api"
	service "github.com/okian/footprint/internal/app"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDependencies struct {
	mu        sync.Mutex
	last      service.VisitRequest
	visitErr  error
	visitors  map[string]model.VisitorRecord
	analytics service.AnalyticsReport
}

func (m *mockDependencies) ProcessVisit(_ context.Context, req service.VisitRequest) (service.VisitResult, error) { //nolint:gocritic // matches interface
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = req
	if m.visitErr != nil {
		return service.VisitResult{}, m.visitErr
	}
	id := req.VisitorID
	if id == "" {
		id = "fp-1"
	}
	return service.VisitResult{
		VisitorID: id,
		Visitor:   model.VisitorRecord{VisitorID: id, VisitCount: 1},
		Patterns:  model.EmptyPatternSummary(),
	}, nil
}

func (m *mockDependencies) Visitor(_ context.Context, id string) (model.VisitorRecord, error) {
	rec, ok := m.visitors[id]
	if !ok {
		return model.VisitorRecord{}, fmt.Errorf("%w: %s", service.ErrVisitorNotFound, id)
	}
	return rec, nil
}

func (m *mockDependencies) VisitorInsight(ctx context.Context, id string) (model.VisitorInsight, error) {
	rec, err := m.Visitor(ctx, id)
	if err != nil {
		return model.VisitorInsight{}, err
	}
	return model.VisitorInsight{
		VisitorID:        rec.VisitorID,
		BehaviorPatterns: []string{"New visitor"},
		AnomalyScore:     model.InsightScore{Confidence: 0.25},
	}, nil
}

func (m *mockDependencies) Analytics(context.Context) (service.AnalyticsReport, error) {
	return m.analytics, nil
}

func (m *mockDependencies) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func (m *mockDependencies) lastRequest() service.VisitRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{
			visitors:  map[string]model.VisitorRecord{"v1": {VisitorID: "v1", VisitCount: 4}},
			analytics: service.AnalyticsReport{TotalVisits: 9, UniqueVisitors: 3},
		}
		h := api.NewServer(deps).Router()

		Convey("Then health serves metrics", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then stats serve JSON", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then docs and the spec are served", func() {
			So(serve(h, httptest.NewRequest(http.MethodGet, "/docs", http.NoBody)).Code, ShouldEqual, http.StatusOK)
			So(serve(h, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)).Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a known visitor is returned", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/visitors/v1", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["visitCount"], ShouldEqual, 4.0)
		})

		Convey("Then an unknown visitor is 404", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/visitors/nope", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")

			w = serve(h, httptest.NewRequest(http.MethodGet, "/v1/visitors/nope/patterns", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then visitor patterns use the narrow shape", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/visitors/v1/patterns", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["behaviorPatterns"], ShouldResemble, []interface{}{"New visitor"})
			So(body["anomalyScore"].(map[string]interface{})["confidence"], ShouldEqual, 0.25)
		})

		Convey("Then analytics are returned", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/v1/analytics", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["totalVisits"], ShouldEqual, 9.0)
		})

		Convey("Then unknown routes and methods get JSON errors", func() {
			w := serve(h, httptest.NewRequest(http.MethodGet, "/unknown", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")

			w = serve(h, httptest.NewRequest(http.MethodGet, "/v1/visits", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then CORS preflight is answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/v1/visits", http.NoBody)
			req.Header.Set("Origin", "https://example.org")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := serve(h, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestVisitsHandler(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps).Router()

		post := func(body string) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/v1/visits", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			return req
		}

		Convey("When a full visit is posted", func() {
			req := post(`{"event_id":"e-1","screen_resolution":"1280x720","timezone":"Europe/Berlin",
				"timestamp":1700000000000,"preferences":{"theme":"dark"},"increment_visit":false}`)
			req.Header.Set("User-Agent", "Mozilla/5.0 Firefox/121.0")
			req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
			w := serve(h, req)

			Convey("Then the service receives the mapped request", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				got := deps.lastRequest()
				So(got.EventID, ShouldEqual, "e-1")
				So(got.ClientIP, ShouldEqual, "198.51.100.1")
				So(got.Timezone, ShouldEqual, "Europe/Berlin")
				So(got.Raw.UserAgent, ShouldEqual, "Mozilla/5.0 Firefox/121.0")
				So(got.Raw.ScreenResolution, ShouldEqual, "1280x720")
				So(got.Raw.TimestampMs, ShouldEqual, int64(1700000000000))
				So(got.Preferences.Theme, ShouldEqual, "dark")
				So(*got.IncrementVisit, ShouldBeFalse)
			})

			Convey("Then the response carries the visitor id", func() {
				body := decode(w)
				So(body["visitorId"], ShouldEqual, "fp-1")
				So(body["eventId"], ShouldEqual, "e-1")
				So(body["duplicate"], ShouldEqual, false)
			})
		})

		Convey("When no event id is given", func() {
			w := serve(h, post(`{}`))
			So(w.Code, ShouldEqual, http.StatusOK)
			got := deps.lastRequest()
			_, err := uuid.Parse(got.EventID)
			So(err, ShouldBeNil)
			So(got.EventIDGenerated, ShouldBeTrue)
			So(got.IncrementVisit, ShouldBeNil)
			So(decode(w)["eventId"], ShouldEqual, got.EventID)
		})

		Convey("When the idempotency header is set", func() {
			req := post(`{}`)
			req.Header.Set("Idempotency-Key", "retry-7")
			serve(h, req)
			So(deps.lastRequest().EventID, ShouldEqual, "retry-7")
			So(deps.lastRequest().EventIDGenerated, ShouldBeFalse)
		})

		Convey("When the body is empty", func() {
			w := serve(h, httptest.NewRequest(http.MethodPost, "/v1/visits", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the body is malformed", func() {
			w := serve(h, post(`{"timestamp":"soon"`))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the event id is too long", func() {
			w := serve(h, post(fmt.Sprintf(`{"event_id":%q}`, strings.Repeat("x", 200))))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the store write fails", func() {
			deps.visitErr = fmt.Errorf("%w: timeout", service.ErrStoreWrite)
			w := serve(h, post(`{}`))
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(decode(w)["code"], ShouldEqual, "store_unavailable")
		})

		Convey("When the fingerprint model fails", func() {
			deps.visitErr = fmt.Errorf("%w: size mismatch", service.ErrFingerprint)
			w := serve(h, post(`{}`))
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["code"], ShouldEqual, "model_error")
		})
	})
}

func TestClientIP(t *testing.T) {
	Convey("Given requests from behind different proxies", t, func() {
		req := func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/v1/visits", http.NoBody)
			r.RemoteAddr = "192.0.2.1:4321"
			return r
		}

		Convey("Then the remote address is the fallback", func() {
			So(api.ClientIP(req()), ShouldEqual, "192.0.2.1")
		})

		Convey("Then the query override beats the remote address", func() {
			r := httptest.NewRequest(http.MethodGet, "/v1/visits?ip=203.0.113.9", http.NoBody)
			So(api.ClientIP(r), ShouldEqual, "203.0.113.9")
		})

		Convey("Then headers are checked in order", func() {
			r := req()
			r.Header.Set("True-Client-IP", "203.0.113.6")
			r.Header.Set("CF-Connecting-IP", "203.0.113.4")
			So(api.ClientIP(r), ShouldEqual, "203.0.113.4")

			r.Header.Set("X-Real-IP", "203.0.113.2")
			So(api.ClientIP(r), ShouldEqual, "203.0.113.2")

			r.Header.Set("X-Forwarded-For", " 203.0.113.1 ,10.0.0.1")
			So(api.ClientIP(r), ShouldEqual, "203.0.113.1")
		})
	})
}
