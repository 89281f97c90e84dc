package geoip

import (
	"fmt"
	"net/http"

	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/model"
)

// DefaultIPWhoisURL is the public ipwho.is endpoint.
const DefaultIPWhoisURL = "https://ipwho.is"

type ipWhoisResponse struct {
	Success     *bool  `json:"success"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// NewIPWhois returns a provider for {base}/{ip}. A success flag of false is
// a failure; a missing flag is not.
func NewIPWhois(base string, client *http.Client) geo.Provider {
	base, client = withDefaults(base, DefaultIPWhoisURL, client)
	return &provider{
		name:   NameIPWhois,
		base:   base,
		client: client,
		path:   func(ip string) string { return "/" + ip },
		decode: func(body []byte) (model.GeoResponse, error) {
			var r ipWhoisResponse
			if err := decodeJSON(body, &r); err != nil {
				return model.GeoResponse{}, err
			}
			if r.Success != nil && !*r.Success {
				return model.GeoResponse{}, fmt.Errorf("%w: %s", ErrProviderError, r.Message)
			}
			return model.GeoResponse{Country: r.Country, CountryCode: r.CountryCode, Region: r.Region, City: r.City}, nil
		},
	}
}
