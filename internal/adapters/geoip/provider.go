// Package geoip implements HTTP location providers for the geo resolver.
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/model"
)

// UserAgent is sent with every lookup.
const UserAgent = "Anonymous Site Visitor/1.0"

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 16

// Provider names accepted by FromNames.
const (
	NameGeoJS   = "geojs"
	NameIPWhois = "ipwhois"
	NameIPAPI   = "ipapi"
)

type decodeFunc func(body []byte) (model.GeoResponse, error)

type provider struct {
	name   string
	base   string
	path   func(ip string) string
	decode decodeFunc
	client *http.Client
}

func (p *provider) Name() string { return p.name }

// Lookup queries the provider for ip. Non-2xx statuses, malformed bodies,
// explicit error flags and empty countries are all failures.
func (p *provider) Lookup(ctx context.Context, ip string) (model.GeoResponse, error) {
	endpoint := strings.TrimRight(p.base, "/") + p.path(url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.GeoResponse{}, fmt.Errorf("%s: %w", p.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return model.GeoResponse{}, fmt.Errorf("%s: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.GeoResponse{}, fmt.Errorf("%w: %s returned %d", ErrBadStatus, p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return model.GeoResponse{}, fmt.Errorf("%s: read body: %w", p.name, err)
	}

	g, err := p.decode(body)
	if err != nil {
		return model.GeoResponse{}, fmt.Errorf("%s: %w", p.name, err)
	}
	if strings.TrimSpace(g.Country) == "" {
		return model.GeoResponse{}, fmt.Errorf("%w: %s", ErrNoCountry, p.name)
	}
	return g, nil
}

func decodeJSON(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// FromNames builds providers in the given order. urls maps a provider name
// to its base URL; a missing entry uses the public endpoint.
func FromNames(names []string, urls map[string]string, client *http.Client) ([]geo.Provider, error) {
	out := make([]geo.Provider, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		base := urls[name]
		switch name {
		case NameGeoJS:
			out = append(out, NewGeoJS(base, client))
		case NameIPWhois:
			out = append(out, NewIPWhois(base, client))
		case NameIPAPI:
			out = append(out, NewIPAPI(base, client))
		case "":
			continue
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
		}
	}
	return out, nil
}

func withDefaults(base, fallback string, client *http.Client) (string, *http.Client) {
	if base == "" {
		base = fallback
	}
	if client == nil {
		client = http.DefaultClient
	}
	return base, client
}
