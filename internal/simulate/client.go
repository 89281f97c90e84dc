package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// VisitResponse is the part of the visit response the simulator checks.
type VisitResponse struct {
	EventID   string `json:"eventId"`
	VisitorID string `json:"visitorId"`
	Duplicate bool   `json:"duplicate"`
	Anomaly   struct {
		Score     float64 `json:"score"`
		IsAnomaly bool    `json:"isAnomaly"`
	} `json:"anomaly"`
}

// AnalyticsResponse is the part of the analytics report the simulator checks.
type AnalyticsResponse struct {
	TotalVisits    int64 `json:"totalVisits"`
	UniqueVisitors int   `json:"uniqueVisitors"`
	Returning      int   `json:"returningVisitors"`
	Partial        bool  `json:"partial"`
}

// Client talks to the footprint API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// PostVisit submits a visit on behalf of the visit's device address.
func (c *Client) PostVisit(ctx context.Context, v Visit) (VisitResponse, error) { //nolint:gocritic // passed by value as a snapshot
	body, err := json.Marshal(v)
	if err != nil {
		return VisitResponse{}, fmt.Errorf("failed to marshal visit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/visits", bytes.NewReader(body))
	if err != nil {
		return VisitResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", v.UserAgent)
	if v.IP != "" {
		req.Header.Set("X-Forwarded-For", v.IP)
	}

	var out VisitResponse
	if err := c.do(req, &out); err != nil {
		return VisitResponse{}, err
	}
	return out, nil
}

// Analytics fetches the analytics report.
func (c *Client) Analytics(ctx context.Context) (AnalyticsResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/analytics", http.NoBody)
	if err != nil {
		return AnalyticsResponse{}, err
	}
	var out AnalyticsResponse
	if err := c.do(req, &out); err != nil {
		return AnalyticsResponse{}, err
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
