package geoip

import (
	"fmt"
	"net/http"

	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/model"
)

// DefaultIPAPIURL is the public ipapi.co endpoint.
const DefaultIPAPIURL = "https://ipapi.co"

type ipAPIResponse struct {
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// NewIPAPI returns a provider for {base}/{ip}/json/.
func NewIPAPI(base string, client *http.Client) geo.Provider {
	base, client = withDefaults(base, DefaultIPAPIURL, client)
	return &provider{
		name:   NameIPAPI,
		base:   base,
		client: client,
		path:   func(ip string) string { return "/" + ip + "/json/" },
		decode: func(body []byte) (model.GeoResponse, error) {
			var r ipAPIResponse
			if err := decodeJSON(body, &r); err != nil {
				return model.GeoResponse{}, err
			}
			if r.Error {
				return model.GeoResponse{}, fmt.Errorf("%w: %s", ErrProviderError, r.Reason)
			}
			return model.GeoResponse{Country: r.CountryName, CountryCode: r.CountryCode, Region: r.Region, City: r.City}, nil
		},
	}
}
