package geoip

import (
	"net/http"

	"github.com/okian/footprint/internal/domain/geo"
	"github.com/okian/footprint/internal/domain/model"
)

// DefaultGeoJSURL is the public GeoJS endpoint.
const DefaultGeoJSURL = "https://get.geojs.io"

type geoJSResponse struct {
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
	Region      string `json:"region"`
	City        string `json:"city"`
}

// NewGeoJS returns a provider for {base}/v1/ip/geo/{ip}.json.
func NewGeoJS(base string, client *http.Client) geo.Provider {
	base, client = withDefaults(base, DefaultGeoJSURL, client)
	return &provider{
		name:   NameGeoJS,
		base:   base,
		client: client,
		path:   func(ip string) string { return "/v1/ip/geo/" + ip + ".json" },
		decode: func(body []byte) (model.GeoResponse, error) {
			var r geoJSResponse
			if err := decodeJSON(body, &r); err != nil {
				return model.GeoResponse{}, err
			}
			return model.GeoResponse{Country: r.Country, CountryCode: r.CountryCode, Region: r.Region, City: r.City}, nil
		},
	}
}
