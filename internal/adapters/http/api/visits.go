package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	service "github.com/okian/footprint/internal/app"
	"github.com/okian/footprint/internal/domain/model"
)

const (
	maxBodyBytes   = 64 << 10
	maxEventIDSize = 128
)

// VisitDependencies defines what the visits handler needs.
type VisitDependencies interface {
	ProcessVisit(ctx context.Context, req service.VisitRequest) (service.VisitResult, error)
}

// visitRequest mirrors the OpenAPI schema for POST /v1/visits. Every field
// is optional.
type visitRequest struct {
	EventID          string             `json:"event_id"`
	VisitorID        string             `json:"visitor_id"`
	UserAgent        string             `json:"user_agent"`
	ScreenResolution string             `json:"screen_resolution"`
	Browser          string             `json:"browser"`
	Country          string             `json:"country"`
	CountryCode      string             `json:"country_code"`
	Timezone         string             `json:"timezone"`
	Timestamp        int64              `json:"timestamp"`
	Preferences      *model.Preferences `json:"preferences"`
	IncrementVisit   *bool              `json:"increment_visit"`
}

func (v visitRequest) validate() error {
	switch {
	case len(v.EventID) > maxEventIDSize:
		return fmt.Errorf("event_id longer than %d characters", maxEventIDSize)
	case v.Timestamp < 0:
		return errors.New("timestamp must be milliseconds since epoch")
	}
	return nil
}

type visitResponse struct {
	EventID   string               `json:"eventId"`
	VisitorID string               `json:"visitorId"`
	Duplicate bool                 `json:"duplicate"`
	Visitor   model.VisitorRecord  `json:"visitor"`
	Anomaly   model.AnomalyScore   `json:"anomaly"`
	Patterns  model.PatternSummary `json:"patterns"`
}

// VisitsHandler handles visit ingestion.
type VisitsHandler struct {
	deps VisitDependencies
}

// NewVisitsHandler creates a new visits handler.
func NewVisitsHandler(deps VisitDependencies) *VisitsHandler {
	return &VisitsHandler{deps: deps}
}

// HandlePostVisit handles POST /v1/visits requests.
func (h *VisitsHandler) HandlePostVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	eventID := strings.TrimSpace(req.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	}
	generated := eventID == ""
	if generated {
		eventID = uuid.NewString()
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = r.UserAgent()
	}

	res, err := h.deps.ProcessVisit(r.Context(), service.VisitRequest{
		EventID:          eventID,
		EventIDGenerated: generated,
		VisitorID:        req.VisitorID,
		ClientIP:         ClientIP(r),
		Timezone:         req.Timezone,
		Raw: model.RawObservation{
			UserAgent:        userAgent,
			ScreenResolution: req.ScreenResolution,
			Browser:          req.Browser,
			Country:          req.Country,
			CountryCode:      req.CountryCode,
			TimestampMs:      req.Timestamp,
		},
		Preferences:    req.Preferences,
		IncrementVisit: req.IncrementVisit,
	})
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}

	writeJSON(w, http.StatusOK, visitResponse{
		EventID:   eventID,
		VisitorID: res.VisitorID,
		Duplicate: res.Duplicate,
		Visitor:   res.Visitor,
		Anomaly:   res.Anomaly,
		Patterns:  res.Patterns,
	})
}
